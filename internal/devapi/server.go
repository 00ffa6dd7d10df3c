// Package devapi emulates the learning portal's remote API for local development and tests.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/http/middleware"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/repository"
	"github.com/sandeepkv93/learning-portal-client/internal/security"
)

type Options struct {
	Config         config.DevAPIConfig
	EnableOTelHTTP bool
	Logger         *slog.Logger
	// Now overrides the clock for token signing and expiry checks.
	Now func() time.Time
	// MissCache defaults to an in-process cache.
	MissCache MissCache
}

type Server struct {
	db       *gorm.DB
	handler  http.Handler
	tokens   *TokenService
	accounts *repository.GormAccountRepository
	cfg      config.DevAPIConfig
	logger   *slog.Logger
	closers  []func() error
}

// Open connects to cfg.DatabaseURL (and cfg.RedisAddr for the miss cache when set), migrates
// and seeds the database, and builds the HTTP handler.
func Open(ctx context.Context, opts Options) (*Server, error) {
	db, err := repository.Open(ctx, opts.Config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	closers := []func() error{func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}}
	if opts.MissCache == nil && opts.Config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.Config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = closers[0]()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		opts.MissCache = NewRedisMissCache(client, "")
		closers = append(closers, client.Close)
	}
	s, err := NewServer(ctx, db, opts)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// Close releases connections opened by Open.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewServer(ctx context.Context, db *gorm.DB, opts Options) (*Server, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if err := repository.Migrate(ctx, db); err != nil {
		return nil, err
	}
	if err := repository.SeedContent(ctx, db); err != nil {
		return nil, fmt.Errorf("seed content: %w", err)
	}

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessSecret, cfg.RefreshSecret).WithClock(now)
	sessions := repository.NewRefreshSessionRepository(db).WithClock(now)
	accounts := repository.NewAccountRepository(db)
	tokens := NewTokenService(jwtMgr, sessions, cfg.RefreshPepper, cfg.AccessTTL, cfg.RefreshTTL).WithClock(now)
	misses := opts.MissCache
	if misses == nil {
		misses = NewInMemoryMissCache(now)
	}
	handlers := NewHandlers(accounts, repository.NewContentRepository(db), tokens, misses, cfg.MissCacheTTL, logger)

	if removed, err := sessions.CleanupExpired(ctx); err != nil {
		logger.WarnContext(ctx, "cleanup expired refresh sessions", "error", err)
	} else if removed > 0 {
		logger.InfoContext(ctx, "removed expired refresh sessions", "count", removed)
	}

	s := &Server{db: db, tokens: tokens, accounts: accounts, cfg: cfg, logger: logger}
	if err := s.seedAdmin(ctx); err != nil {
		return nil, err
	}
	s.handler = NewRouter(RouterDeps{
		Handlers:       handlers,
		JWTManager:     jwtMgr,
		BasePath:       cfg.BasePath,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPM:   cfg.RateLimitRPM,
		EnableOTelHTTP: opts.EnableOTelHTTP,
	})
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// CreateAccount registers an account directly, bypassing the HTTP surface.
func (s *Server) CreateAccount(ctx context.Context, email, name, role, password string) (*domain.Account, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := &domain.Account{Email: email, Name: name, Role: role, PasswordHash: hash}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Server) seedAdmin(ctx context.Context) error {
	if s.cfg.SeedAdmin == "" {
		return nil
	}
	_, err := s.CreateAccount(ctx, s.cfg.SeedAdmin, "Administrator", domain.RoleAdmin, s.cfg.SeedPassword)
	if err != nil && !errors.Is(err, repository.ErrEmailTaken) {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devapi listening", "addr", s.cfg.Addr, "base_path", s.cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type RouterDeps struct {
	Handlers       *Handlers
	JWTManager     *security.JWTManager
	BasePath       string
	CORSOrigins    []string
	RateLimitRPM   int
	EnableOTelHTTP bool
}

func NewRouter(dep RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   dep.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(dep.RateLimitRPM, time.Minute))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := func(r chi.Router) {
		auth := middleware.AuthMiddleware(dep.JWTManager)
		r.Post("/auth/login", dep.Handlers.Login)
		r.Post("/auth/register", dep.Handlers.Register)
		r.Post("/auth/token/refresh/", dep.Handlers.Refresh)
		r.With(auth).Post("/auth/logout", dep.Handlers.Logout)

		r.With(auth).Get("/account/", dep.Handlers.Account)
		r.With(auth).Patch("/account/", dep.Handlers.UpdateAccount)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/articles", dep.Handlers.Articles)
			r.Get("/quizzes/{id}", dep.Handlers.Quiz)
			r.Post("/uploads/", dep.Handlers.Upload)
			r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/admin/analytics", dep.Handlers.Analytics)
		})
	}
	if dep.BasePath == "" {
		api(r)
	} else {
		r.Route(dep.BasePath, api)
	}

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "devapi.server")
	}
	return h
}
