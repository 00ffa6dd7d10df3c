package di

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"

	"github.com/sandeepkv93/learning-portal-client/internal/app"
	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/http/router"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
	"github.com/sandeepkv93/learning-portal-client/internal/storage"
)

var ProviderSet = wire.NewSet(
	provideLogger,
	provideObservability,
	provideTokenStore,
	provideSessionStore,
	provideNotifier,
	provideGateway,
	provideAuthService,
	wire.Bind(new(service.APIClient), new(*gateway.Gateway)),
	provideUIServer,
	app.New,
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg, os.Stderr)
}

// provideObservability carries the otel-bridged logger when log export is on, so the session store,
// gateway and UI shell log through it. App.Close flushes it.
func provideObservability(ctx context.Context, cfg *config.Config, base *slog.Logger) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, base)
}

func provideTokenStore(ctx context.Context, cfg *config.Config) (storage.TokenStore, func(), error) {
	return storage.Open(ctx, cfg)
}

func provideSessionStore(durable storage.TokenStore, rt *observability.Runtime) *session.Store {
	return session.NewStore(durable, rt.Logger)
}

// provideNotifier logs every gateway notification, forwards it to the caller's notifier (nil for the
// UI shell) and publishes it on the shell's event stream.
func provideNotifier(rt *observability.Runtime, notifier gateway.Notifier) *gateway.Hub {
	return gateway.NewHub(rt.Logger, notifier)
}

func provideGateway(cfg *config.Config, store *session.Store, hub *gateway.Hub, rt *observability.Runtime) (*gateway.Gateway, error) {
	return gateway.NewFromConfig(cfg, store, hub, rt.Logger)
}

func provideAuthService(store *session.Store, api service.APIClient, rt *observability.Runtime) *service.AuthService {
	return service.NewAuthService(store, api, rt.Logger)
}

func provideUIServer(cfg *config.Config, store *session.Store, auth *service.AuthService, gw *gateway.Gateway, hub *gateway.Hub, rt *observability.Runtime) *http.Server {
	return &http.Server{
		Addr: cfg.UIAddr,
		Handler: router.NewRouter(router.Dependencies{
			Session:        store,
			Auth:           auth,
			API:            gw,
			Notifications:  hub,
			Logger:         rt.Logger,
			EnableOTelHTTP: cfg.EnableOTelHTTP,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
