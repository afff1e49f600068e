package telemetry

import (
	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Option func(m *manager)

// WithDisableTracing turns Init into a no-op.
func WithDisableTracing() Option {
	return func(m *manager) {
		m.disableTracing = true
	}
}

func WithServiceName(name string) Option {
	return func(m *manager) {
		m.serviceName = name
	}
}

func WithServiceVersion(version string) Option {
	return func(m *manager) {
		m.serviceVersion = version
	}
}

func WithServiceEnvironment(env string) Option {
	return func(m *manager) {
		m.serviceEnvironment = env
	}
}

// WithPropagationTextMap specifies the trace baggage carrier to use.
func WithPropagationTextMap(carrier propagation.TextMapPropagator) Option {
	return func(m *manager) {
		m.traceTextMap = carrier
	}
}

func WithTraceExporter(exporter sdktrace.SpanExporter) Option {
	return func(m *manager) {
		m.traceExporter = exporter
	}
}

func WithTraceSampler(sampler sdktrace.Sampler) Option {
	return func(m *manager) {
		m.traceSampler = sampler
	}
}

func WithMetricsReader(reader sdkmetrics.Reader) Option {
	return func(m *manager) {
		m.metricsReader = reader
	}
}

func WithTraceLogsExporter(exporter sdklogs.Exporter) Option {
	return func(m *manager) {
		m.traceLogsExporter = exporter
	}
}

// WithViews registers the latency views of the named packages on the meter provider.
func WithViews(packages ...string) Option {
	return func(m *manager) {
		m.viewPackages = append(m.viewPackages, packages...)
	}
}
