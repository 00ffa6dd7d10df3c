package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/http/router"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
	"github.com/sandeepkv93/learning-portal-client/internal/storage"
)

func newAppForTest(t *testing.T, apiURL string, durable storage.TokenStore) *App {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL:                   apiURL,
		ShutdownTimeout:              2 * time.Second,
		ShutdownObservabilityTimeout: time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(durable, logger)
	gw, err := gateway.New(store, gateway.Options{BaseURL: apiURL, Logger: logger})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	auth := service.NewAuthService(store, gw, logger)
	server := &http.Server{
		Handler:           router.NewRouter(router.Dependencies{Session: store, Auth: auth, API: gw, Logger: logger}),
		ReadHeaderTimeout: time.Second,
	}
	return New(cfg, logger, nil, store, gw, auth, server)
}

func TestNewCopiesShutdownTimeouts(t *testing.T) {
	a := newAppForTest(t, "http://127.0.0.1:1", storage.NewInMemoryTokenStore())
	if a.ShutdownTimeout != 2*time.Second || a.ShutdownObservabilityTimeout != time.Second {
		t.Fatal("expected app shutdown timeouts copied from config")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close without runtime: %v", err)
	}
}

func TestServeRestoresSessionAndStopsOnCancel(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/" || r.Header.Get("Authorization") != "Bearer persisted" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.User{ID: "3", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin})
	}))
	defer api.Close()

	durable := storage.NewInMemoryTokenStore()
	if err := durable.Save(context.Background(), domain.TokenPair{Access: "persisted", Refresh: "r"}); err != nil {
		t.Fatalf("seed durable: %v", err)
	}
	a := newAppForTest(t, api.URL, durable)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	client := &http.Client{
		Timeout:       time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := client.Get(base + "/admin")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("admin page never rendered after bootstrap")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
