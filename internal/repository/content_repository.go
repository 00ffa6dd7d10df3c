package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"

	"gorm.io/gorm"
)

var ErrQuizNotFound = errors.New("quiz not found")

type ContentRepository interface {
	ListArticles(ctx context.Context, page PageRequest) (PageResult[domain.Article], error)
	FindQuiz(ctx context.Context, id uint) (*domain.Quiz, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats backs the admin analytics endpoint.
type Stats struct {
	Accounts       int64 `json:"accounts"`
	Admins         int64 `json:"admins"`
	ActiveSessions int64 `json:"active_sessions"`
	Articles       int64 `json:"articles"`
	Quizzes        int64 `json:"quizzes"`
}

type GormContentRepository struct{ db *gorm.DB }

func NewContentRepository(db *gorm.DB) *GormContentRepository { return &GormContentRepository{db: db} }

func (r *GormContentRepository) ListArticles(ctx context.Context, page PageRequest) (PageResult[domain.Article], error) {
	page = normalizePageRequest(page)
	result := PageResult[domain.Article]{Page: page.Page, PageSize: page.PageSize, Items: []domain.Article{}}
	db := r.db.WithContext(ctx).Model(&domain.Article{})
	if err := db.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "content", "list_articles", "error")
		return result, err
	}
	err := r.db.WithContext(ctx).
		Select("id", "title", "summary", "created_at").
		Order("id ASC").
		Offset(page.offset()).
		Limit(page.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "content", "list_articles", "error")
		return result, err
	}
	result.TotalPages = calcTotalPages(result.Total, page.PageSize)
	observability.RecordRepositoryOperation(ctx, "content", "list_articles", "success")
	return result, nil
}

func (r *GormContentRepository) FindQuiz(ctx context.Context, id uint) (*domain.Quiz, error) {
	var q domain.Quiz
	if err := r.db.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "content", "find_quiz", "not_found")
			return nil, ErrQuizNotFound
		}
		observability.RecordRepositoryOperation(ctx, "content", "find_quiz", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "content", "find_quiz", "success")
	return &q, nil
}

func (r *GormContentRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := r.db.WithContext(ctx)
	counts := []struct {
		model any
		where string
		args  []any
		dst   *int64
	}{
		{model: &domain.Account{}, dst: &s.Accounts},
		{model: &domain.Account{}, where: "role = ?", args: []any{domain.RoleAdmin}, dst: &s.Admins},
		{model: &domain.RefreshSession{}, where: "revoked_at IS NULL", dst: &s.ActiveSessions},
		{model: &domain.Article{}, dst: &s.Articles},
		{model: &domain.Quiz{}, dst: &s.Quizzes},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			observability.RecordRepositoryOperation(ctx, "content", "stats", "error")
			return s, err
		}
	}
	observability.RecordRepositoryOperation(ctx, "content", "stats", "success")
	return s, nil
}

// SeedContent inserts sample articles and quizzes into an empty database.
func SeedContent(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Article{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	articles := []domain.Article{
		{Title: "Getting started with fractions", Summary: "Halves, thirds and quarters with pictures."},
		{Title: "The water cycle", Summary: "Evaporation, condensation and precipitation."},
		{Title: "Intro to photosynthesis", Summary: "How plants turn light into sugar."},
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&articles).Error; err != nil {
			return err
		}
		quizzes := make([]domain.Quiz, 0, len(articles))
		for _, a := range articles {
			quizzes = append(quizzes, domain.Quiz{ArticleID: a.ID, Title: a.Title + " quiz", Questions: 5})
		}
		return tx.Create(&quizzes).Error
	})
}
