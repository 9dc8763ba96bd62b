package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const instrumentationName = "github.com/angelmondragon/storefront-backend"

// Recorder receives the outcome of a finished operation.
type Recorder interface {
	Observe(operation string, started time.Time, err error)
}

// Start opens a span on the global tracer provider. Without an installed SDK
// provider the span is a no-op.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Finish records err on span and ends it.
func Finish(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		if typed := pkgerrors.As(err); typed != nil {
			span.SetAttributes(attribute.String("error.code", string(typed.Code())))
			if reason := typed.Reason(); reason != "" {
				span.SetAttributes(attribute.String("error.reason", string(reason)))
			}
		}
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Operation starts a span named "UC."+name and returns a done func that ends
// it and reports the outcome to rec. Call done exactly once with the final error.
func Operation(ctx context.Context, rec Recorder, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := Start(ctx, "UC."+name, append(attrs, attribute.String("use_case", name))...)
	return ctx, func(err error) {
		Finish(span, err)
		if rec != nil {
			rec.Observe(name, started, err)
		}
	}
}
