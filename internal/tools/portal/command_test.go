package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/devapi"
)

type ciLine struct {
	OK      bool     `json:"ok"`
	Command string   `json:"command"`
	Details []string `json:"details"`
	Error   string   `json:"error"`
}

func startDevAPI(t *testing.T) string {
	t.Helper()
	dsn := fmt.Sprintf("file:portal_cli_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	srv, err := devapi.NewServer(context.Background(), db, devapi.Options{
		Config: config.DevAPIConfig{
			BasePath:      "/api",
			JWTIssuer:     "iss",
			JWTAudience:   "aud",
			AccessSecret:  "abcdefghijklmnopqrstuvwxyz123456",
			RefreshSecret: "abcdefghijklmnopqrstuvwxyz654321",
			RefreshPepper: "pepper",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			SeedAdmin:     "root@example.com",
			SeedPassword:  "root-password",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("devapi: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func execute(t *testing.T, args ...string) (ciLine, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--ci", "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	var line ciLine
	if decodeErr := json.Unmarshal(out.Bytes(), &line); decodeErr != nil {
		t.Fatalf("decode ci output %q: %v", out.String(), decodeErr)
	}
	return line, err
}

func TestCommandsDriveThePersistedSession(t *testing.T) {
	t.Setenv("API_BASE_URL", startDevAPI(t))
	t.Setenv("TOKEN_STORE", "file")
	t.Setenv("TOKEN_FILE_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	line, err := execute(t, "login", "--email", "root@example.com", "--password", "wrong")
	if !errors.Is(err, ErrFailed) || line.OK {
		t.Fatalf("expected failed login, got %+v err=%v", line, err)
	}

	line, err = execute(t, "login", "--email", "root@example.com", "--password", "root-password")
	if err != nil || !line.OK || !strings.Contains(strings.Join(line.Details, " "), "role=admin") {
		t.Fatalf("unexpected login result %+v err=%v", line, err)
	}

	line, err = execute(t, "whoami")
	if err != nil || !strings.Contains(strings.Join(line.Details, " "), "status=authenticated") {
		t.Fatalf("expected restored session, got %+v err=%v", line, err)
	}

	line, err = execute(t, "request", "get", "/articles", "--query", "page_size=1")
	if err != nil || !strings.Contains(strings.Join(line.Details, " "), `"total":3`) {
		t.Fatalf("unexpected request result %+v err=%v", line, err)
	}

	upload := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(upload, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	line, err = execute(t, "request", "POST", "/uploads/", "--file", upload)
	if err != nil || !strings.Contains(strings.Join(line.Details, " "), `"name":"notes.txt"`) {
		t.Fatalf("unexpected upload result %+v err=%v", line, err)
	}

	if _, err := execute(t, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	line, _ = execute(t, "whoami")
	if !strings.Contains(strings.Join(line.Details, " "), "status=unauthenticated") {
		t.Fatalf("expected no session after logout, got %+v", line)
	}
}

func TestBuildRequestOptions(t *testing.T) {
	opts, err := buildRequestOptions(&requestFlags{query: []string{"a=1", "a=2", "b="}, data: `{"x":1}`})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := opts.Query["a"]; len(got) != 2 || opts.Query.Get("b") != "" {
		t.Fatalf("unexpected query %v", opts.Query)
	}
	if opts.Binary || string(opts.Body.(json.RawMessage)) != `{"x":1}` {
		t.Fatalf("unexpected body %#v", opts.Body)
	}

	if _, err := buildRequestOptions(&requestFlags{query: []string{"novalue"}}); err == nil {
		t.Fatal("expected error for query without =")
	}
	if _, err := buildRequestOptions(&requestFlags{data: "{"}); err == nil {
		t.Fatal("expected error for invalid json")
	}

	file := filepath.Join(t.TempDir(), "a.bin")
	if err := os.WriteFile(file, []byte{0, 1, 2}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts, err = buildRequestOptions(&requestFlags{file: file, field: "attachment"})
	if err != nil {
		t.Fatalf("build multipart: %v", err)
	}
	body, _ := opts.Body.([]byte)
	if !opts.Binary || !strings.HasPrefix(opts.ContentType, "multipart/form-data; boundary=") || !bytes.Contains(body, []byte(`name="attachment"; filename="a.bin"`)) {
		t.Fatalf("unexpected multipart options %q", opts.ContentType)
	}
}
