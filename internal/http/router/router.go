package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/guard"
	"github.com/sandeepkv93/learning-portal-client/internal/http/handler"
	"github.com/sandeepkv93/learning-portal-client/internal/http/middleware"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

// APIPrefix is where shell data calls are proxied to the remote API.
const APIPrefix = "/api"

type Dependencies struct {
	Session        handler.SessionSource
	Auth           service.AuthServiceInterface
	API            handler.DataClient
	Notifications  handler.NotificationSource
	Paths          guard.Paths
	Logger         *slog.Logger
	EnableOTelHTTP bool
}

// NewRouter builds the local UI shell: guarded pages, session actions, the session event stream
// and the data proxy.
func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paths := dep.Paths.WithDefaults()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger(logger))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		state := dep.Session.Snapshot()
		if state.Status() == session.StatusUnknown {
			response.Error(w, r, http.StatusServiceUnavailable, "BOOTSTRAPPING", "session is being restored", nil)
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "session": state.Status()})
	})

	publicOnly := middleware.Guard(dep.Session, guard.PublicOnly(paths))
	authenticated := middleware.Guard(dep.Session, guard.Authenticated(paths))
	adminOnly := middleware.Guard(dep.Session, guard.RoleGated(domain.RoleAdmin, paths))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, paths.Home, http.StatusSeeOther)
	})
	r.With(publicOnly).Get(paths.Login, handler.Page("login", dep.Session))
	r.With(publicOnly).Get("/register", handler.Page("register", dep.Session))
	r.With(authenticated).Get(paths.Home, handler.Page("home", dep.Session))
	r.With(authenticated).Get("/profile", handler.Page("profile", dep.Session))
	r.With(adminOnly).Get("/admin", handler.Page("admin", dep.Session))
	r.Get(paths.Unauthorized, handler.Page("unauthorized", dep.Session))

	sessions := handler.NewSessionHandler(dep.Auth, dep.Session)
	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessions.Current)
		r.Post("/login", sessions.Login)
		r.Post("/register", sessions.Register)
		r.Post("/logout", sessions.Logout)
		r.Patch("/profile", sessions.UpdateProfile)
	})
	r.Method(http.MethodGet, "/events", handler.NewEventsHandler(dep.Session, dep.Notifications, logger))
	r.Handle(APIPrefix+"/*", handler.NewProxyHandler(dep.API, APIPrefix))

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "ui.server")
	}
	return h
}
