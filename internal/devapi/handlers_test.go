package devapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
)

type countingMissCache struct {
	*InMemoryMissCache
	sets atomic.Int64
}

func (c *countingMissCache) Set(ctx context.Context, namespace, key string, ttl time.Duration) error {
	c.sets.Add(1)
	return c.InMemoryMissCache.Set(ctx, namespace, key, ttl)
}

func newServerForTest(t *testing.T, misses MissCache) http.Handler {
	t.Helper()
	srv, err := NewServer(context.Background(), newDBForTest(t), Options{
		Config: config.DevAPIConfig{
			BasePath:      "/api",
			JWTIssuer:     "iss",
			JWTAudience:   "aud",
			AccessSecret:  "abcdefghijklmnopqrstuvwxyz123456",
			RefreshSecret: "abcdefghijklmnopqrstuvwxyz654321",
			RefreshPepper: "pepper",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			MissCacheTTL:  time.Minute,
		},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		MissCache: misses,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler()
}

func call(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLoginRejectsUnknownAccountWithDetail(t *testing.T) {
	h := newServerForTest(t, nil)
	rr := call(h, http.MethodPost, "/api/auth/login", "", `{"email":"nobody@example.com","password":"whatever"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["detail"] == "" {
		t.Fatalf("expected detail body, got %s", rr.Body.String())
	}

	rr = call(h, http.MethodPost, "/api/auth/login", "", `{"email":""}`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), `"email":["This field is required."]`) {
		t.Fatalf("expected field errors, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterDuplicateAndWeakPassword(t *testing.T) {
	h := newServerForTest(t, nil)
	if rr := call(h, http.MethodPost, "/api/auth/register", "", `{"email":"ada@example.com","password":"analytical"}`); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	rr := call(h, http.MethodPost, "/api/auth/register", "", `{"email":"ADA@example.com","password":"analytical"}`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "already exists") {
		t.Fatalf("expected duplicate email error, got %d %s", rr.Code, rr.Body.String())
	}
	rr = call(h, http.MethodPost, "/api/auth/register", "", `{"email":"bo@example.com","password":"short"}`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), `"password"`) {
		t.Fatalf("expected password error, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownEmailMissIsCachedUntilRegistration(t *testing.T) {
	misses := &countingMissCache{InMemoryMissCache: NewInMemoryMissCache(nil)}
	h := newServerForTest(t, misses)
	login := `{"email":"late@example.com","password":"late-comer"}`

	for i := 0; i < 3; i++ {
		if rr := call(h, http.MethodPost, "/api/auth/login", "", login); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rr.Code)
		}
	}
	if got := misses.sets.Load(); got != 1 {
		t.Fatalf("expected one cached miss for repeated attempts, got %d", got)
	}

	if rr := call(h, http.MethodPost, "/api/auth/register", "", login); rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	rr := call(h, http.MethodPost, "/api/auth/login", "", login)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login after registration to bypass the stale miss, got %d", rr.Code)
	}

	var out authResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if rr := call(h, http.MethodGet, "/api/quizzes/999", out.Data.Tokens.Access, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	}
	if hit, _ := misses.Get(context.Background(), nsMissingQuiz, "999"); !hit {
		t.Fatal("expected missing quiz to be cached")
	}
	if rr := call(h, http.MethodGet, "/api/quizzes/1", out.Data.Tokens.Access, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected seeded quiz, got %d", rr.Code)
	}
}
