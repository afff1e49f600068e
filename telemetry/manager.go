// Package telemetry sets up OpenTelemetry providers and offers a tracer that
// records the latency of discovery, schema sync and backfill runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.40.0"

	"github.com/pitabwire/modeltranslation/config"
)

type Manager interface {
	Init(ctx context.Context) error
	Disabled() bool
	// LogHandler exports log records through the logs provider, nil before Init.
	LogHandler() slog.Handler
	// Shutdown flushes and stops the providers installed by Init.
	Shutdown(ctx context.Context) error
}

type manager struct {
	serviceName        string
	serviceVersion     string
	serviceEnvironment string

	cfg config.ConfigurationTelemetry

	disableTracing bool
	viewPackages   []string

	traceTextMap      propagation.TextMapPropagator
	traceExporter     sdktrace.SpanExporter
	traceSampler      sdktrace.Sampler
	metricsReader     sdkmetrics.Reader
	traceLogsExporter sdklogs.Exporter

	logHandler slog.Handler
	shutdowns  []func(context.Context) error
}

// NewManager creates a telemetry manager, disabled when cfg says so.
func NewManager(cfg config.ConfigurationTelemetry, opts ...Option) Manager {
	m := &manager{cfg: cfg}
	if cfg != nil && cfg.DisableOpenTelemetry() {
		m.disableTracing = true
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) LogHandler() slog.Handler {
	return m.logHandler
}

func (m *manager) Disabled() bool {
	return m.disableTracing
}

func (m *manager) Init(ctx context.Context) error {
	if m.Disabled() {
		return nil
	}

	res, err := m.setupResource()
	if err != nil {
		return err
	}

	m.setupTextMapPropagator()
	m.setupTraceSampler()

	if err = m.setupExporters(ctx); err != nil {
		return err
	}

	m.setupProviders(res)
	return nil
}

func (m *manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range m.shutdowns {
		errs = append(errs, shutdown(ctx))
	}
	m.shutdowns = nil
	return errors.Join(errs...)
}

func (m *manager) setupResource() (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(m.serviceName),
		semconv.ServiceVersion(m.serviceVersion),
		semconv.ServiceNamespace(m.serviceEnvironment),
		semconv.DeploymentEnvironmentName(m.serviceEnvironment),
		semconv.ProcessPID(os.Getpid()),
		semconv.ProcessRuntimeName("go"),
		semconv.ProcessRuntimeVersion(runtime.Version()),
	}

	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

func (m *manager) setupTextMapPropagator() {
	if m.traceTextMap == nil {
		m.traceTextMap = autoprop.NewTextMapPropagator()
	}
}

func (m *manager) setupTraceSampler() {
	if m.traceSampler != nil {
		return
	}

	traceIDRatio := 1.0
	if m.cfg != nil {
		traceIDRatio = m.cfg.SamplingRatio()
	}
	m.traceSampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(traceIDRatio))
}

// setupExporters builds the exporters not given as options from the standard
// OTEL_{TRACES,METRICS,LOGS}_EXPORTER variables, exporting nothing when they are unset.
func (m *manager) setupExporters(ctx context.Context) error {
	var err error
	if m.traceExporter == nil {
		exportNoneByDefault("OTEL_TRACES_EXPORTER")
		if m.traceExporter, err = autoexport.NewSpanExporter(ctx); err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
	}
	if m.metricsReader == nil {
		exportNoneByDefault("OTEL_METRICS_EXPORTER")
		if m.metricsReader, err = autoexport.NewMetricReader(ctx); err != nil {
			return fmt.Errorf("metrics reader: %w", err)
		}
	}
	if m.traceLogsExporter == nil {
		exportNoneByDefault("OTEL_LOGS_EXPORTER")
		if m.traceLogsExporter, err = autoexport.NewLogExporter(ctx); err != nil {
			return fmt.Errorf("logs exporter: %w", err)
		}
	}
	return nil
}

func exportNoneByDefault(variable string) {
	if os.Getenv(variable) == "" {
		_ = os.Setenv(variable, "none")
	}
}

func (m *manager) setupProviders(res *resource.Resource) {
	otel.SetTextMapPropagator(m.traceTextMap)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(m.traceSampler),
		sdktrace.WithBatcher(m.traceExporter),
		sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	var views []sdkmetrics.View
	for _, pkg := range m.viewPackages {
		views = append(views, Views(pkg)...)
	}

	mp := sdkmetrics.NewMeterProvider(
		sdkmetrics.WithReader(m.metricsReader),
		sdkmetrics.WithResource(res),
		sdkmetrics.WithView(views...),
	)
	otel.SetMeterProvider(mp)

	lp := sdklogs.NewLoggerProvider(
		sdklogs.WithResource(res),
		sdklogs.WithProcessor(sdklogs.NewBatchProcessor(m.traceLogsExporter)),
	)
	global.SetLoggerProvider(lp)

	m.logHandler = otelslog.NewHandler(m.serviceName,
		otelslog.WithSource(true),
		otelslog.WithLoggerProvider(lp),
		otelslog.WithAttributes(res.Attributes()...))

	m.shutdowns = append(m.shutdowns, tp.Shutdown, mp.Shutdown, lp.Shutdown)
}
