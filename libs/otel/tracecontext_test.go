package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	ctx := TraceContext{Traceparent: parent}.Restore(context.Background())
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("restored span context invalid: %+v", sc)
	}
	if got := Capture(ctx); got.Traceparent != parent {
		t.Fatalf("captured %q, want %q", got.Traceparent, parent)
	}
}

func TestEmptyTraceContextLeavesContext(t *testing.T) {
	ctx := context.Background()
	if got := (TraceContext{}).Restore(ctx); got != ctx {
		t.Fatalf("empty trace context should not wrap ctx")
	}
	if !Capture(ctx).Empty() {
		t.Fatalf("background context should capture nothing")
	}
}

func TestSampleRatioBounds(t *testing.T) {
	for raw, want := range map[string]float64{"0.25": 0.25, "2": 1, "bogus": 1, " 0 ": 0} {
		if got := sampleRatio(raw); got != want {
			t.Fatalf("sampleRatio(%q) = %v, want %v", raw, got, want)
		}
	}
}
