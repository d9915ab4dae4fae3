package otelcol

import (
	"context"
	"testing"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewExporterRejectsUnknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Exporter = "zipkin"

	_, err := NewExporter(cfg)
	require.ErrorContains(t, err, "zipkin")
}

func TestNewExporterHTTP(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Exporter = "http"
	cfg.Otel.Endpoint = "localhost:4318"
	cfg.Otel.Insecure = true

	exp, err := NewExporter(cfg)
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
}

func TestProvideTraceRecordsSpans(t *testing.T) {
	cfg := &config.Config{AppName: "ticketsync", AppEnv: "test"}
	cfg.Otel.SampleRatio = 1

	exp := tracetest.NewInMemoryExporter()
	tp := ProvideTrace(exp, append(defaultTraceProviderOption(cfg), trace.WithSyncer(exp))...)

	_, span := tp.Tracer("test").Start(context.Background(), "cycle")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.NotEmpty(t, spans)
	require.Equal(t, "cycle", spans[0].Name)
	require.NoError(t, tp.Shutdown(context.Background()))
}
