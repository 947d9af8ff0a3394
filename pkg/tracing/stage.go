package tracing

import (
	"context"

	"github.com/richxcame/trip-quote/pkg/geo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for quote pipeline spans
const TracerName = "github.com/richxcame/trip-quote/quote"

// StartStage opens an internal span named "quote.<stage>"
func StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer(TracerName).Start(ctx, "quote."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, attribute.String("quote.stage", stage))...),
	)
}

// EndStage records the outcome of a stage and ends its span.
// reason is attached as quote.failure_reason when err is non-nil.
func EndStage(span trace.Span, err error, reason string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if reason != "" {
			span.SetAttributes(attribute.String("quote.failure_reason", reason))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// UpstreamCall wraps a call to an external provider in a client span
func UpstreamCall(ctx context.Context, provider, operation string, fn func(context.Context) error) error {
	ctx, span := GetTracer(TracerName).Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.provider", provider),
			attribute.String("upstream.operation", operation),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// CoordinateAttributes describes a point as prefix.latitude and prefix.longitude
func CoordinateAttributes(prefix string, c geo.Coordinate) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(prefix+".latitude", c.Latitude),
		attribute.Float64(prefix+".longitude", c.Longitude),
	}
}
