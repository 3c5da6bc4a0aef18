package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/objectrunner/objectrunner/state"
)

// SpanObserver implements state.TransitionObserver by opening one span
// per state occupancy: OnEnter starts it, OnExit closes it with the
// transition outcome and any error recorded as span attributes/status.
type SpanObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span // keyed by objectKey, one in flight at a time per object
}

// NewSpanObserver wraps tracer (e.g. otel.Tracer("objectrunner")).
func NewSpanObserver(tracer trace.Tracer) *SpanObserver {
	return &SpanObserver{tracer: tracer, spans: make(map[string]trace.Span)}
}

func (o *SpanObserver) OnEnter(ctx context.Context, objectKey, label string) {
	_, span := o.tracer.Start(ctx, label,
		trace.WithAttributes(
			attribute.String("object.key", objectKey),
			attribute.String("state.label", label),
		),
	)
	o.mu.Lock()
	o.spans[objectKey] = span
	o.mu.Unlock()
}

func (o *SpanObserver) OnExit(ctx context.Context, objectKey, label string, outcome state.Outcome, err error) {
	o.mu.Lock()
	span, ok := o.spans[objectKey]
	delete(o.spans, objectKey)
	o.mu.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
