package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("refresh session not found")

type RefreshSessionRepository interface {
	Create(ctx context.Context, s *domain.RefreshSession) error
	FindByHash(ctx context.Context, hash string) (*domain.RefreshSession, error)
	RotateSession(ctx context.Context, oldHash string, next *domain.RefreshSession) (*domain.RefreshSession, error)
	MarkReuseDetectedByHash(ctx context.Context, hash string) error
	RevokeByFamilyID(ctx context.Context, familyID, reason string) (int64, error)
	RevokeByAccountID(ctx context.Context, accountID uint, reason string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type GormRefreshSessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRefreshSessionRepository(db *gorm.DB) *GormRefreshSessionRepository {
	return &GormRefreshSessionRepository{db: db, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (r *GormRefreshSessionRepository) WithClock(now func() time.Time) *GormRefreshSessionRepository {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *GormRefreshSessionRepository) Create(ctx context.Context, s *domain.RefreshSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "create", "success")
	return nil
}

func (r *GormRefreshSessionRepository) FindByHash(ctx context.Context, hash string) (*domain.RefreshSession, error) {
	var s domain.RefreshSession
	err := r.db.WithContext(ctx).Where("refresh_token_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "refresh_session", "find_by_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "refresh_session", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "find_by_hash", "success")
	return &s, nil
}

// RotateSession revokes the active session identified by oldHash and inserts next in one
// transaction. It returns ErrSessionNotFound when oldHash is unknown, revoked or expired.
func (r *GormRefreshSessionRepository) RotateSession(ctx context.Context, oldHash string, next *domain.RefreshSession) (*domain.RefreshSession, error) {
	var rotated *domain.RefreshSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.RefreshSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("refresh_token_hash = ? AND revoked_at IS NULL AND expires_at > ?", oldHash, r.now()).
			First(&s).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		now := r.now().UTC()
		reason := "rotated"
		res := tx.Model(&domain.RefreshSession{}).
			Where("id = ? AND revoked_at IS NULL", s.ID).
			Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		s.RevokedAt = &now
		s.RevokedReason = &reason
		rotated = &s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(ctx, "refresh_session", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "refresh_session", "rotate", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "rotate", "success")
	return rotated, nil
}

func (r *GormRefreshSessionRepository) MarkReuseDetectedByHash(ctx context.Context, hash string) error {
	err := r.db.WithContext(ctx).Model(&domain.RefreshSession{}).
		Where("refresh_token_hash = ?", hash).
		Updates(map[string]any{"reuse_detected_at": r.now().UTC(), "revoked_reason": "reuse_detected"}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_session", "mark_reuse_detected", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "mark_reuse_detected", "success")
	return nil
}

func (r *GormRefreshSessionRepository) RevokeByFamilyID(ctx context.Context, familyID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshSession{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Updates(map[string]any{"revoked_at": r.now().UTC(), "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_session", "revoke_by_family_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "revoke_by_family_id", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshSessionRepository) RevokeByAccountID(ctx context.Context, accountID uint, reason string) error {
	err := r.db.WithContext(ctx).Model(&domain.RefreshSession{}).
		Where("account_id = ? AND revoked_at IS NULL", accountID).
		Updates(map[string]any{"revoked_at": r.now().UTC(), "revoked_reason": reason}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_session", "revoke_by_account_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "revoke_by_account_id", "success")
	return nil
}

func (r *GormRefreshSessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&domain.RefreshSession{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "refresh_session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
