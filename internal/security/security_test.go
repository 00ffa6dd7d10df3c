package security

import (
	"errors"
	"testing"
	"time"
)

func newTestJWTManager(now func() time.Time) *JWTManager {
	return NewJWTManager(
		"iss",
		"aud",
		"abcdefghijklmnopqrstuvwxyz123456",
		"abcdefghijklmnopqrstuvwxyz654321",
	).WithClock(now)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWTManager(time.Now)
	token, err := m.SignAccessToken(42, "admin", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, err := claims.AccountID()
	if err != nil || id != 42 || claims.Role != "admin" {
		t.Fatalf("unexpected claims id=%d role=%q err=%v", id, claims.Role, err)
	}
	if _, err := m.ParseRefreshToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not parse as refresh token, got %v", err)
	}
}

func TestRefreshTokenCarriesFamily(t *testing.T) {
	m := newTestJWTManager(time.Now)
	token, err := m.SignRefreshToken(7, "fam-1", "tok-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.FamilyID != "fam-1" || claims.ID != "tok-1" {
		t.Fatalf("unexpected lineage %+v", claims)
	}
}

func TestTokenExpiryFollowsClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestJWTManager(func() time.Time { return now })
	token, err := m.SignAccessToken(1, "", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseAccessToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.ParseAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	a := newTestJWTManager(time.Now)
	b := NewJWTManager("iss", "aud", "zyxwvutsrqponmlkjihgfedcba123456", "zyxwvutsrqponmlkjihgfedcba654321")
	token, err := a.SignAccessToken(1, "", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := b.ParseAccessToken(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestHashRefreshTokenIsPeppered(t *testing.T) {
	h1 := HashRefreshToken("tok", "pepper-a")
	if h1 != HashRefreshToken("tok", "pepper-a") {
		t.Fatal("hash must be deterministic")
	}
	if h1 == HashRefreshToken("tok", "pepper-b") {
		t.Fatal("pepper must change the hash")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(h1))
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckPassword(hash, "battery staple"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
