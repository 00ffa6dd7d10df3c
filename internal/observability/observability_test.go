package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
)

func TestStatusClass(t *testing.T) {
	cases := map[int]string{
		0:   "none",
		200: "2xx",
		204: "2xx",
		302: "3xx",
		401: "4xx",
		500: "5xx",
		100: "other",
	}
	for status, want := range cases {
		if got := StatusClass(status); got != want {
			t.Fatalf("StatusClass(%d)=%q want %q", status, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNewLoggerJSONAndAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf)
	Audit(context.Background(), logger, "session.signed_out", "reason", "user")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "audit" || entry["event"] != "session.signed_out" || entry["reason"] != "user" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestNewLoggerAddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf).With("component", "gateway")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "traced")
	logger.InfoContext(context.Background(), "untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %q", buf.String())
	}
	var traced, untraced map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &traced); err != nil {
		t.Fatalf("decode traced line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &untraced); err != nil {
		t.Fatalf("decode untraced line: %v", err)
	}
	if traced["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" || traced["span_id"] != "00f067aa0ba902b7" || traced["component"] != "gateway" {
		t.Fatalf("unexpected traced entry: %+v", traced)
	}
	if _, ok := untraced["trace_id"]; ok {
		t.Fatalf("untraced entry must not carry trace_id: %+v", untraced)
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.Config{LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRecordHelpersAreNoopsWithoutInit(t *testing.T) {
	ctx := context.Background()
	RecordGatewayRequest(ctx, "GET", 200, "success")
	RecordTokenRefresh(ctx, "success")
	RecordSignIn(ctx, "password", "success")
	RecordSessionCleared(ctx, "signed_out")
	RecordGuardDecision(ctx, "authenticated", "render")
	RecordRepositoryOperation(ctx, "account", "create", "success")
	RecordDevAPITokenEvent(ctx, "rotate", "success")
}

func TestInitRuntimeDisabledProviders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rt, err := InitRuntime(context.Background(), &config.Config{}, logger)
	if err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	if rt.MeterProvider == nil || rt.TracerProvider == nil {
		t.Fatal("expected noop providers when exporters are disabled")
	}
	if rt.LoggerProvider != nil || rt.Logger != logger {
		t.Fatal("expected fallback logger when otel logs are disabled")
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
