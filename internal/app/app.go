package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

// App is the assembled client process: session store, gateway and auth service, plus the UI shell
// server used by `portal serve`.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Observability *observability.Runtime
	Store         *session.Store
	Gateway       *gateway.Gateway
	Auth          *service.AuthService
	Server        *http.Server

	ShutdownTimeout              time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	runtime *observability.Runtime,
	store *session.Store,
	gw *gateway.Gateway,
	auth *service.AuthService,
	server *http.Server,
) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Observability:                runtime,
		Store:                        store,
		Gateway:                      gw,
		Auth:                         auth,
		Server:                       server,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
	}
}

// Bootstrap restores a persisted session. A rejected session is not an error for the caller;
// the store has already been cleared.
func (a *App) Bootstrap(ctx context.Context) session.State {
	state, err := a.Auth.Bootstrap(ctx)
	if err != nil {
		a.Logger.InfoContext(ctx, "session bootstrap finished without a session", "error", err)
	}
	return state
}

// Serve runs the UI shell until ctx is cancelled. The persisted session is restored in the
// background so guarded pages answer while it is in flight.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener. Requests inherit ctx, so open event streams end
// when it is cancelled.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	a.Server.BaseContext = func(net.Listener) context.Context { return ctx }
	go a.Bootstrap(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("ui shell listening", "addr", ln.Addr().String(), "api_base_url", a.Config.APIBaseURL)
		errCh <- a.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("ui shell shutdown failed", "error", err)
		return err
	}
	return nil
}

// Close flushes telemetry. It is safe to call on an App without an observability runtime.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownObservabilityTimeout)
	defer cancel()
	return a.Observability.Shutdown(ctx)
}
