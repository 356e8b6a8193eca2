// Package telemetry installs the global OpenTelemetry providers. Metrics
// are exported through the Prometheus registry and surface on /metrics;
// traces stay in-process so span contexts still flow through logs.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Config configures telemetry.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// MetricsEnabled wires the Prometheus exporter. When false only the
	// tracer provider is installed.
	MetricsEnabled bool
}

// Init installs the global tracer and meter providers and returns a
// shutdown function to flush them.
func Init(cfg *Config, logger *zap.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		cfg = &Config{ServiceName: "annotationd"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standalone resource to avoid schema URL conflicts with
	// resource.Default(), which uses a different semconv version.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	var mp *metric.MeterProvider
	if cfg.MetricsEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: create prometheus exporter: %w", err)
		}
		mp = metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)
		logger.Info("metrics exporter installed", zap.String("service", cfg.ServiceName))
	}

	return func(ctx context.Context) error {
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				return err
			}
		}
		return tp.Shutdown(ctx)
	}, nil
}
