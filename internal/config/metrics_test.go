package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLoadFailureStage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "none", err: nil, want: "none"},
		{name: "validation", err: fmt.Errorf("%w: TOKEN_STORE must be one of file", ErrInvalidConfig), want: "validation"},
		{name: "environment", err: fmt.Errorf("%w: HTTP_TIMEOUT: invalid duration", ErrEnvironment), want: "environment"},
		{name: "env file", err: fmt.Errorf("%w portal.env: no such file", ErrEnvFile), want: "env_file"},
		{name: "foreign", err: errors.New("validate config: looks similar"), want: "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := loadFailureStage(tc.err); got != tc.want {
				t.Fatalf("loadFailureStage()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestProfileLabel(t *testing.T) {
	if got := profileLabel("  Staging "); got != "staging" {
		t.Fatalf("expected staging, got %q", got)
	}
	if got := profileLabel(" "); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestLoadOutcomesAreCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	cases := []struct {
		name    string
		load    func(ctx context.Context) error
		outcome string
		stage   string
	}{
		{
			name: "success",
			load: func(ctx context.Context) error {
				_, err := LoadFrom(ctx, envconfig.MapLookuper(map[string]string{"TOKEN_STORE": "memory"}))
				return err
			},
			outcome: "success", stage: "none",
		},
		{
			name: "unknown token store",
			load: func(ctx context.Context) error {
				_, err := LoadFrom(ctx, envconfig.MapLookuper(map[string]string{"TOKEN_STORE": "cookie"}))
				return err
			},
			outcome: "failure", stage: "validation",
		},
		{
			name: "unparsable timeout",
			load: func(ctx context.Context) error {
				_, err := LoadFrom(ctx, envconfig.MapLookuper(map[string]string{"HTTP_TIMEOUT": "soon"}))
				return err
			},
			outcome: "failure", stage: "environment",
		},
		{
			name: "missing env file",
			load: func(ctx context.Context) error {
				_, err := Load(ctx, filepath.Join(t.TempDir(), "missing.env"))
				return err
			},
			outcome: "failure", stage: "env_file",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			before := loadEvents(t, reader, tc.outcome, tc.stage)
			err := tc.load(ctx)
			if (err == nil) != (tc.outcome == "success") {
				t.Fatalf("unexpected load result: %v", err)
			}
			if got := loadEvents(t, reader, tc.outcome, tc.stage) - before; got != 1 {
				t.Fatalf("expected one %s/%s event, got %d", tc.outcome, tc.stage, got)
			}
		})
	}
}

func loadEvents(t *testing.T, reader *sdkmetric.ManualReader, outcome, stage string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != loadEventsMetric {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				o, _ := dp.Attributes.Value(attribute.Key("outcome"))
				s, _ := dp.Attributes.Value(attribute.Key("stage"))
				if o.AsString() == outcome && s.AsString() == stage {
					total += dp.Value
				}
			}
		}
	}
	return total
}
