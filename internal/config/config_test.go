package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8081/api" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.TokenStore != TokenStoreFile || cfg.TokenStorageKey != "auth_tokens" {
		t.Fatalf("unexpected token store defaults: %q %q", cfg.TokenStore, cfg.TokenStorageKey)
	}
	if cfg.HTTPTimeout != 20*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.HTTPTimeout)
	}
	if cfg.DevAPI.BasePath != "/api" || cfg.DevAPI.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected devapi defaults: %+v", cfg.DevAPI)
	}
}

func TestLoadFromNormalizesValues(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"API_BASE_URL":     "https://portal.example.com/api/",
		"TOKEN_STORE":      " Redis ",
		"DEVAPI_BASE_PATH": "/",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://portal.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.TokenStore != TokenStoreRedis {
		t.Fatalf("expected normalized token store, got %q", cfg.TokenStore)
	}
	if cfg.DevAPI.BasePath != "" {
		t.Fatalf("expected root base path to collapse, got %q", cfg.DevAPI.BasePath)
	}
}

func TestLoadFromValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "relative base url", env: map[string]string{"API_BASE_URL": "/api"}, want: "API_BASE_URL"},
		{name: "bad scheme", env: map[string]string{"API_BASE_URL": "ftp://x"}, want: "scheme"},
		{name: "unknown store", env: map[string]string{"TOKEN_STORE": "cookie"}, want: "TOKEN_STORE"},
		{name: "refresh path", env: map[string]string{"API_REFRESH_PATH": "auth/refresh"}, want: "API_REFRESH_PATH"},
		{name: "short secret", env: map[string]string{"DEVAPI_JWT_ACCESS_SECRET": "short"}, want: "at least 32 bytes"},
		{name: "zero shutdown", env: map[string]string{"SHUTDOWN_TIMEOUT": "0s"}, want: "SHUTDOWN_TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(tc.env))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "validate config:") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadFromParseError(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{"HTTP_TIMEOUT": "soon"}))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !errors.Is(err, ErrEnvironment) || errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrEnvironment only, got %v", err)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "portal.env")
	if err := os.WriteFile(file, []byte("TOKEN_STORE=memory\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("TOKEN_STORE")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(context.Background(), file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenStore != TokenStoreMemory || cfg.LogLevel != "debug" {
		t.Fatalf("expected env file values, got store=%q level=%q", cfg.TokenStore, cfg.LogLevel)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.env"))
	if !errors.Is(err, ErrEnvFile) {
		t.Fatalf("expected ErrEnvFile for missing env file, got %v", err)
	}
}
