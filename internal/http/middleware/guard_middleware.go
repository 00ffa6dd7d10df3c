package middleware

import (
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/guard"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

// StateSource supplies the session snapshot guards decide on.
type StateSource interface {
	Snapshot() session.State
}

// Guard renders the wrapped page when g admits the current session and otherwise answers with
// a 303 redirect to the guard's target.
func Guard(src StateSource, g guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.Decide(src.Snapshot())
			observability.RecordGuardDecision(r.Context(), g.Name(), decision.Outcome())
			if !decision.Render {
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
