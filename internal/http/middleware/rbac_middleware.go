package middleware

import (
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
)

// RequireRole must run after AuthMiddleware. Roles are compared exactly.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "not_authenticated", "missing auth context", nil)
				return
			}
			if claims.Role != role {
				response.Error(w, r, http.StatusForbidden, "permission_denied", "You do not have permission to perform this action.", map[string]string{"required_role": role})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
