package kafkax

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "tenant.settings.updated.v1", Key: []byte("k-1")})
	if meta.EventID != "k-1" || meta.EventType != "tenant.settings.updated.v1" {
		t.Fatalf("unexpected meta %#v", meta)
	}

	msg := kafka.Message{Topic: "x", Headers: EventMeta{EventID: "e-1", EventType: "booking.reserved.v1"}.Headers()}
	meta = ExtractEventMeta(msg)
	if meta.EventID != "e-1" || meta.EventType != "booking.reserved.v1" {
		t.Fatalf("unexpected meta %#v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %#v", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("e-1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %#v", headers)
	}

	extracted := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	if trace.SpanContextFromContext(extracted).TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id not propagated")
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(" , ")(context.Background()); !errors.Is(err, ErrNoBrokers) {
		t.Fatalf("expected ErrNoBrokers, got %v", err)
	}
}

func TestReadyCheckReportsEveryBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := ReadyCheck("127.0.0.1:1,127.0.0.1:2")(ctx)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") || !strings.Contains(err.Error(), "127.0.0.1:2") {
		t.Fatalf("error should name both brokers: %v", err)
	}
}

func TestEventMetaHeadersSkipEmptyFields(t *testing.T) {
	meta := EventMeta{EventID: "e-1", EventType: "booking.reserved.v1", AggregateType: "booking", AggregateID: "b-1"}
	got := ExtractEventMeta(kafka.Message{Topic: "ignored", Headers: meta.Headers()})
	if got != meta {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if n := len(EventMeta{EventID: "e-1"}.Headers()); n != 1 {
		t.Fatalf("expected only the event id header, got %d", n)
	}
}

func TestStartConsumeSpanContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, producer := tp.Tracer("test").Start(context.Background(), "publish")
	msg := kafka.Message{Topic: "booking.reserved.v1", Headers: InjectTraceHeaders(ctx, nil)}
	producer.End()

	_, span := StartConsumeSpan(context.Background(), msg)
	defer span.End()
	if span.SpanContext().TraceID() != producer.SpanContext().TraceID() {
		t.Fatalf("consumer span should join the producer trace")
	}
}
