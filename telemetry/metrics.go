package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units follow the Unified Code for Units of Measure, http://unitsofmeasure.org/ucum.html.
const unitMilliseconds = "ms"

//nolint:gochecknoglobals // histogram boundaries shared by every latency view
var defaultMillisecondsBoundaries = []float64{
	0.0, 0.1, 0.2, 0.4, 0.6, 0.8, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 8.0, 10.0, 13.0, 16.0, 20.0, 25.0,
	30.0, 40.0, 50.0, 65.0, 80.0, 100.0, 130.0, 160.0, 200.0, 250.0, 300.0, 400.0, 500.0, 650.0,
	800.0, 1000.0, 2000.0, 5000.0, 10000.0,
}

func latencyName(pkg string) string {
	return pkg + "/latency"
}

// Views shapes the latency histogram of pkg and derives a completed calls counter from it.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != latencyName(pkg) {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        inst.Name,
				Description: "Distribution of method latency, by package and method.",
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: defaultMillisecondsBoundaries,
				},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrPackageKey || kv.Key == AttrMethodKey
				},
			}, true
		},

		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != latencyName(pkg) {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        strings.Replace(inst.Name, "/latency", "/completed_calls", 1),
				Description: "Count of method calls by method and status.",
				Aggregation: sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
				},
			}, true
		},
	}
}

// LatencyMeasure returns the method latency histogram of pkg.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	pkgMeter := otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Float64Histogram(
		latencyName(pkg),
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail here
		panic(fmt.Sprintf("latency histogram for %q: %v", pkg, err))
	}
	return m
}
