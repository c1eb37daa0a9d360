package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &m), "expected JSON line, got %q", out)
	return m
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	assert.Equal(t, EnvDev, DetectEnv())

	t.Setenv("APP_ENV", "Staging")
	assert.Equal(t, EnvStage, DetectEnv())

	t.Setenv("APP_ENV", "preprod")
	assert.Equal(t, EnvStage, DetectEnv())

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, EnvProd, DetectEnv())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})

	l.Info("Hello world")

	out := buf.String()
	assert.NotContains(t, out, "{")
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "service=demo")
	assert.Contains(t, out, "env=dev")
}

func TestInit_StageStd_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{Service: "demo", Env: EnvStage, Backend: BackendStd, Output: &buf})

	l.Debug("hidden")
	l.Info("shown")

	m := decodeLine(t, buf.String())
	assert.Equal(t, "shown", m["msg"])
	assert.Equal(t, "stage", m["env"])
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              EnvProd,
		Backend:          BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	l.Info("booted", slog.String("k", "v"))

	m := decodeLine(t, buf.String())
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "demo", m["service"])
	assert.Equal(t, "prod", m["env"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "v", m["k"])
	assert.NotEmpty(t, m["instance_id"])
}

func TestInit_AddsTraceIDsFromContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	var buf bytes.Buffer
	l := Init(Config{Service: "demo", Env: EnvProd, Backend: BackendZap, Output: &buf})

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	l.InfoContext(ctx, "with trace")
	span.End()

	m := decodeLine(t, buf.String())
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	assert.Nil(t, AttrsFromCtx(context.Background()))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := Init(Config{Env: EnvDev, Backend: BackendStd, Output: &buf})

	assert.Same(t, base, FromContext(context.Background()))

	reqLog := base.With("req_id", "r-1")
	ctx := WithContext(context.Background(), reqLog)
	FromContext(ctx).Info("scoped")
	assert.Contains(t, buf.String(), "req_id=r-1")
}

func TestAttrHelpers(t *testing.T) {
	assert.Equal(t, slog.String(KeyRoom, "alice_bob"), Room("alice_bob"))
	assert.Equal(t, slog.String(KeyUser, "alice"), User("alice"))
	assert.True(t, Err(nil).Equal(slog.Attr{}))
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, EnvProd, ParseEnv(" Production "))
	assert.Equal(t, "dev", Env("").String())
}
