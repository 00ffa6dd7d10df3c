package devapi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/repository"
	"github.com/sandeepkv93/learning-portal-client/internal/security"
)

var (
	ErrInvalidRefreshToken       = errors.New("invalid refresh token")
	ErrRefreshTokenReuseDetected = errors.New("refresh token reuse detected")
)

// TokenService issues access/refresh pairs and rotates refresh tokens. Every rotation revokes
// the presented token; presenting a revoked token again revokes its whole family.
type TokenService struct {
	jwtMgr     *security.JWTManager
	sessions   repository.RefreshSessionRepository
	pepper     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(jwtMgr *security.JWTManager, sessions repository.RefreshSessionRepository, pepper string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, sessions: sessions, pepper: pepper, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *TokenService) Issue(ctx context.Context, account *domain.Account) (domain.TokenPair, error) {
	familyID := uuid.NewString()
	pair, tokenID, err := s.mint(account, familyID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	err = s.sessions.Create(ctx, &domain.RefreshSession{
		AccountID:        account.ID,
		RefreshTokenHash: security.HashRefreshToken(pair.Refresh, s.pepper),
		TokenID:          ptr(tokenID),
		FamilyID:         ptr(familyID),
		ExpiresAt:        s.now().Add(s.refreshTTL),
	})
	if err != nil {
		observability.RecordDevAPITokenEvent(ctx, "issue", "error")
		return domain.TokenPair{}, err
	}
	observability.RecordDevAPITokenEvent(ctx, "issue", "success")
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair. fetch loads the account so role changes
// take effect on the next access token.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, fetch func(ctx context.Context, id uint) (*domain.Account, error)) (domain.TokenPair, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		observability.RecordDevAPITokenEvent(ctx, "rotate", "invalid")
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	current, err := s.sessions.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordDevAPITokenEvent(ctx, "rotate", "unknown")
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, err
	}
	if current.AccountID != accountID || getString(current.TokenID) != claims.ID {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	familyID := getString(current.FamilyID)
	if current.RevokedAt != nil {
		reason := getString(current.RevokedReason)
		if reason == "" || reason == "rotated" || reason == "reuse_detected" {
			_ = s.sessions.MarkReuseDetectedByHash(ctx, hash)
			if familyID != "" {
				_, _ = s.sessions.RevokeByFamilyID(ctx, familyID, "reuse_detected")
			}
			observability.RecordDevAPITokenEvent(ctx, "rotate", "reuse_detected")
			return domain.TokenPair{}, ErrRefreshTokenReuseDetected
		}
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	if !current.ExpiresAt.After(s.now()) {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	account, err := fetch(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, err
	}
	pair, tokenID, err := s.mint(account, familyID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	_, err = s.sessions.RotateSession(ctx, hash, &domain.RefreshSession{
		AccountID:        account.ID,
		RefreshTokenHash: security.HashRefreshToken(pair.Refresh, s.pepper),
		TokenID:          ptr(tokenID),
		FamilyID:         ptr(familyID),
		ParentTokenID:    ptr(claims.ID),
		ExpiresAt:        s.now().Add(s.refreshTTL),
	})
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		observability.RecordDevAPITokenEvent(ctx, "rotate", "error")
		return domain.TokenPair{}, err
	}
	observability.RecordDevAPITokenEvent(ctx, "rotate", "success")
	return pair, nil
}

func (s *TokenService) RevokeAll(ctx context.Context, accountID uint, reason string) error {
	return s.sessions.RevokeByAccountID(ctx, accountID, reason)
}

func (s *TokenService) mint(account *domain.Account, familyID string) (domain.TokenPair, string, error) {
	tokenID := uuid.NewString()
	refresh, err := s.jwtMgr.SignRefreshToken(account.ID, familyID, tokenID, s.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	access, err := s.jwtMgr.SignAccessToken(account.ID, account.Role, s.accessTTL)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, tokenID, nil
}

func ptr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
