package otelcol

import (
	"context"
	"fmt"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs a global tracer provider backed by the configured OTLP
// exporter and flushes it on shutdown.
var Module = fx.Module("otelcol",
	fx.Provide(NewExporter, newTraceProvider),
	fx.Invoke(Register),
)

func NewExporter(cfg *config.Config) (trace.SpanExporter, error) {
	switch cfg.Otel.Exporter {
	case "http":
		return exporters.ProvideHttp(cfg)
	case "grpc":
		return exporters.ProvideGrpc(cfg)
	default:
		return nil, fmt.Errorf("unsupported otel exporter %q", cfg.Otel.Exporter)
	}
}

func defaultTraceProviderOption(cfg *config.Config) []trace.TracerProviderOption {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	)
	merged, err := resource.Merge(resource.Default(), res)
	if err != nil {
		merged = resource.Default()
	}

	return []trace.TracerProviderOption{
		trace.WithResource(merged),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.Otel.SampleRatio))),
	}
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	opts = append(opts, trace.WithBatcher(exporter))
	return trace.NewTracerProvider(opts...)
}

func newTraceProvider(cfg *config.Config, exporter trace.SpanExporter) *trace.TracerProvider {
	return ProvideTrace(exporter, defaultTraceProviderOption(cfg)...)
}

func Register(lc fx.Lifecycle, cfg *config.Config, tp *trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	zap.L().Info("[Otel] Tracing enabled",
		zap.String("exporter", cfg.Otel.Exporter),
		zap.String("endpoint", cfg.Otel.Endpoint),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}
