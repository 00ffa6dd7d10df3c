package domain

import (
	"strconv"
	"time"
)

// Account is a persisted user record of the remote API emulator.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Role         string    `gorm:"size:32;index" json:"role,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Account) Profile() User {
	return User{ID: UserID(strconv.FormatUint(uint64(a.ID), 10)), Name: a.Name, Email: a.Email, Role: a.Role}
}

// RefreshSession tracks one issued refresh token of the emulator. Only the peppered hash is stored.
type RefreshSession struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AccountID        uint       `gorm:"index;not null" json:"account_id"`
	RefreshTokenHash string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	TokenID          *string    `gorm:"size:64;uniqueIndex" json:"-"`
	FamilyID         *string    `gorm:"size:64;index" json:"-"`
	ParentTokenID    *string    `gorm:"size:64;index" json:"-"`
	ExpiresAt        time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt        *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason    *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	ReuseDetectedAt  *time.Time `gorm:"index" json:"reuse_detected_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
