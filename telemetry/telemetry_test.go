package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/telemetry"
)

func TestErrorCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "canceled", err: fmt.Errorf("run: %w", context.Canceled), want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "deadline exceeded"},
		{name: "other", err: errors.New("boom"), want: "err"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, telemetry.ErrorCode(tc.err))
		})
	}
}

func TestDisabledManager(t *testing.T) {
	m := telemetry.NewManager(&config.ConfigurationDefault{OpenTelemetryDisable: true})
	require.True(t, m.Disabled())
	require.NoError(t, m.Init(t.Context()))
	require.Nil(t, m.LogHandler())
	require.NoError(t, m.Shutdown(t.Context()))
}

func TestTracerRecordsSpansAndLatency(t *testing.T) {
	ctx := t.Context()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	m := telemetry.NewManager(&config.ConfigurationDefault{OpenTelemetryTraceRatio: 1},
		telemetry.WithServiceName("modeltranslation-test"),
		telemetry.WithTraceExporter(spans),
		telemetry.WithTraceSampler(sdktrace.AlwaysSample()),
		telemetry.WithMetricsReader(reader),
		telemetry.WithViews("modeltranslation/test"),
	)
	require.False(t, m.Disabled())
	require.NoError(t, m.Init(ctx))
	require.NotNil(t, m.LogHandler())

	tracer := telemetry.NewTracer("modeltranslation/test")

	okCtx, okSpan := tracer.Start(ctx, "Discover")
	tracer.End(okCtx, okSpan, nil)

	failCtx, failSpan := tracer.Start(ctx, "Sync")
	tracer.End(failCtx, failSpan, errors.New("column clash"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			names[metric.Name] = true
		}
	}
	require.True(t, names["modeltranslation/test/latency"])
	require.True(t, names["modeltranslation/test/completed_calls"])

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(ctx))

	recorded := spans.GetSpans()
	require.Len(t, recorded, 2)
	require.Equal(t, "Discover", recorded[0].Name)
	require.Equal(t, codes.Ok, recorded[0].Status.Code)
	require.Equal(t, "Sync", recorded[1].Name)
	require.Equal(t, codes.Error, recorded[1].Status.Code)

	require.NoError(t, m.Shutdown(ctx))
}
