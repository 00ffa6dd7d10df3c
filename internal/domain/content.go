package domain

import "time"

type Article struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Summary   string    `gorm:"size:500" json:"summary"`
	Body      string    `gorm:"type:text" json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Quiz struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ArticleID   uint      `gorm:"index" json:"article_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"size:500" json:"description"`
	Questions   int       `json:"questions"`
	CreatedAt   time.Time `json:"created_at"`
}
