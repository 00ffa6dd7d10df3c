package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
)

const meterName = "learning-portal-client"

type AppMetrics struct {
	gatewayRequestCounter metric.Int64Counter
	tokenRefreshCounter   metric.Int64Counter
	signInCounter         metric.Int64Counter
	sessionClearedCounter metric.Int64Counter
	guardDecisionCounter  metric.Int64Counter
	repositoryOpCounter   metric.Int64Counter
	devAPITokenCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	requestCounter, err := meter.Int64Counter("gateway.requests")
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return nil, err
	}
	signInCounter, err := meter.Int64Counter("auth.signin.attempts")
	if err != nil {
		return nil, err
	}
	clearedCounter, err := meter.Int64Counter("session.cleared")
	if err != nil {
		return nil, err
	}
	guardCounter, err := meter.Int64Counter("guard.decisions")
	if err != nil {
		return nil, err
	}
	repoCounter, err := meter.Int64Counter("devapi.repository.operations")
	if err != nil {
		return nil, err
	}
	tokenCounter, err := meter.Int64Counter("devapi.token.events")
	if err != nil {
		return nil, err
	}
	return &AppMetrics{
		gatewayRequestCounter: requestCounter,
		tokenRefreshCounter:   refreshCounter,
		signInCounter:         signInCounter,
		sessionClearedCounter: clearedCounter,
		guardDecisionCounter:  guardCounter,
		repositoryOpCounter:   repoCounter,
		devAPITokenCounter:    tokenCounter,
	}, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordGatewayRequest(ctx context.Context, method string, status int, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.gatewayRequestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_class", StatusClass(status)),
		attribute.String("outcome", outcome),
	))
}

func RecordTokenRefresh(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.tokenRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordSignIn(ctx context.Context, method, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.signInCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	))
}

func RecordSessionCleared(ctx context.Context, reason string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionClearedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordGuardDecision(ctx context.Context, guard, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.guardDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard", guard),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordDevAPITokenEvent counts emulator token issuance, rotation and rejection.
func RecordDevAPITokenEvent(ctx context.Context, event, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.devAPITokenCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

// StatusClass buckets an HTTP status; 0 means no response was received.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "none"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
