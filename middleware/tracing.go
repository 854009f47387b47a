package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidelang/tide/job"
)

// tracerName is the instrumentation scope name for tide tracing.
const tracerName = "github.com/tidelang/tide"

// Tracing returns middleware that wraps each pipeline phase in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span names follow "tide.job.<phase>". Attributes include tide.job.id,
// tide.fn.id and tide.job.status. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, phase string, next Handler) error {
		ctx, span := tracer.Start(ctx, "tide.job."+phase,
			trace.WithAttributes(
				attribute.String("tide.job.id", j.ID().String()),
				attribute.String("tide.fn.id", j.Function().ID.String()),
				attribute.String("tide.job.status", j.Status().String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
