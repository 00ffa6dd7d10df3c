package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const loadEventsMetric = "config.load.events"

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordLoadOutcome counts one Load/LoadFrom call by profile, outcome and failure stage.
func recordLoadOutcome(ctx context.Context, profile string, err error) {
	loadMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("learning-portal-client/config").Int64Counter(loadEventsMetric,
			metric.WithDescription("Configuration loads by outcome and failure stage"))
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("stage", loadFailureStage(err)),
	))
}

func profileLabel(profile string) string {
	if v := strings.ToLower(strings.TrimSpace(profile)); v != "" {
		return v
	}
	return "unknown"
}

// loadFailureStage names the step a load failed at: env_file, environment or validation.
func loadFailureStage(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidConfig):
		return "validation"
	case errors.Is(err, ErrEnvironment):
		return "environment"
	case errors.Is(err, ErrEnvFile):
		return "env_file"
	default:
		return "unknown"
	}
}
