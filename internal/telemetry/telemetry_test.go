package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		envEndpoint:    "localhost:4317",
		envInsecure:    "true",
		envService:     "bolt-ci",
		envDialTimeout: "10s",
		envHeaders:     "x-api-key=secret, x-tenant = demo",
	}
	cfg := ConfigFromEnv(func(key string) string { return env[key] })

	assert.True(t, cfg.Enabled())
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "bolt-ci", cfg.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, map[string]string{"x-api-key": "secret", "x-tenant": "demo"}, cfg.Headers)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	env := map[string]string{
		envInsecure:    "maybe",
		envDialTimeout: "soon",
		envHeaders:     "novalue",
	}
	cfg := ConfigFromEnv(func(key string) string { return env[key] })

	assert.False(t, cfg.Enabled())
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "bolt", cfg.ServiceName)
	assert.Zero(t, cfg.DialTimeout)
	assert.Nil(t, cfg.Headers)
}

func TestParseHeaders(t *testing.T) {
	headers, err := ParseHeaders("a=1, b=2,empty=")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "empty": ""}, headers)

	headers, err = ParseHeaders("   ")
	require.NoError(t, err)
	assert.Nil(t, headers)

	_, err = ParseHeaders("=x")
	assert.Error(t, err)
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NotNil(t, p.TracerProvider())

	// Spans from a no-op provider are not recording
	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "x")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_WithSpanProcessor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	p, err := New(Config{ServiceName: "bolt-test", Version: "test"}, WithSpanProcessor(recorder))
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "bolt.save_state")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "bolt.save_state", spans[0].Name())

	var service string
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "bolt-test", service)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}
