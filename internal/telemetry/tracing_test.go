package telemetry

import (
	"context"
	"testing"

	"github.com/eventviewer/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false, SampleRate: 5}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{"sample rate above one", config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 1.5}},
		{"negative sample rate", config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: -0.1}},
		{"unknown exporter", config.TracingConfig{Enabled: true, Exporter: "jaeger", SampleRate: 1}},
		{"otlp without endpoint", config.TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(context.Background(), tt.cfg, "test")
			assert.Error(t, err)
		})
	}
}

func TestInitTracingNoneExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "none",
		ServiceName: "eventviewer-test",
		SampleRate:  1,
	}, "v0.0.0")
	require.NoError(t, err)

	_, span := Tracer("telemetry-test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
