package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware admits requests carrying a valid bearer access token.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordDevAPITokenEvent(r.Context(), "validate_access", "missing")
				response.Error(w, r, http.StatusUnauthorized, "not_authenticated", "Authentication credentials were not provided.", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				observability.RecordDevAPITokenEvent(r.Context(), "validate_access", "invalid")
				response.Error(w, r, http.StatusUnauthorized, "token_not_valid", "Given token not valid for any token type", nil)
				return
			}
			observability.RecordDevAPITokenEvent(r.Context(), "validate_access", "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
