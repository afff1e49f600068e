package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals // attribute keys are shared by spans and metric views
var (
	AttrPackageKey = attribute.Key("modeltranslation_package")
	AttrMethodKey  = attribute.Key("modeltranslation_method")
	AttrStatusKey  = attribute.Key("modeltranslation_status")
	AttrErrorKey   = attribute.Key("modeltranslation_error")
)

type contextKey string

func (c contextKey) String() string {
	return "modeltranslation/telemetry/" + string(c)
}

const (
	startTimeContextKey  = contextKey("spanStartTime")
	methodNameContextKey = contextKey("methodName")
)

// Tracer wraps operations in spans and records their latency.
type Tracer interface {
	Start(ctx context.Context, methodName string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}

type tracer struct {
	name           string
	tracer         trace.Tracer
	latencyMeasure metric.Float64Histogram
}

// NewTracer creates a tracer for the package name. Spans go to the global tracer provider.
func NewTracer(name string, options ...trace.TracerOption) Tracer {
	return &tracer{
		name:           name,
		tracer:         otel.Tracer(name, options...),
		latencyMeasure: LatencyMeasure(name),
	}
}

// Start begins a span named methodName. The caller ends it with End.
//
//nolint:spancheck // the span is ended by the caller through End
func (t *tracer) Start(
	ctx context.Context,
	methodName string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(AttrMethodKey.String(methodName)))

	sCtx, span := t.tracer.Start(ctx, methodName, options...)
	sCtx = context.WithValue(sCtx, startTimeContextKey, time.Now())
	return context.WithValue(sCtx, methodNameContextKey, t.name+"/"+methodName), span
}

// End completes span, marking it failed when err is set, and records the call latency.
func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	if err != nil {
		options = append(options, trace.WithStackTrace(true))
		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	startTime, ok := ctx.Value(startTimeContextKey).(time.Time)
	if !ok {
		util.Log(ctx).Warn("End -- span context was not created by Start, latency not recorded")
		return
	}
	methodName, _ := ctx.Value(methodNameContextKey).(string)

	t.latencyMeasure.Record(ctx,
		float64(time.Since(startTime).Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrMethodKey.String(methodName)),
	)
}

// ErrorCode classifies err for the status attribute.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
