package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	tc := CaptureTraceContext(ctx)
	if tc.Empty() {
		t.Fatalf("expected traceparent")
	}

	got := trace.SpanContextFromContext(tc.Into(context.Background()))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id mismatch: %s vs %s", got.TraceID(), span.SpanContext().TraceID())
	}
	if !got.IsRemote() {
		t.Fatalf("restored span context should be remote")
	}
}

func TestCaptureWithoutSpanIsEmpty(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tc := CaptureTraceContext(context.Background())
	if !tc.Empty() {
		t.Fatalf("expected empty trace context, got %#v", tc)
	}
	ctx := context.Background()
	if tc.Into(ctx) != ctx {
		t.Fatalf("empty trace context must not change ctx")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("DEPLOY_ENV", "staging")
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.ServiceName != "booking-service" || cfg.Environment != "staging" {
		t.Fatalf("unexpected config %#v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	if cfg := ConfigFromEnv("x"); cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio should fall back, got %v", cfg.SampleRatio)
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
