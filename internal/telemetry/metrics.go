package telemetry

import (
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/wolfeidau/countries-bundler"
)

// Metrics holds the OpenTelemetry instruments of the bundler.
type Metrics struct {
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram
	OutputBytes      metric.Int64Histogram
	VendorChunks     metric.Int64Gauge

	DevServerRequestsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the instruments registered with the global meter
// provider. Until InitTelemetry runs they record nothing.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics, _ = NewMetrics(otel.GetMeterProvider())
	})
	return metrics
}

// NewMetrics registers the instruments with provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(instrumentationName)

	m := &Metrics{}
	var err, errs error

	m.BuildsTotal, err = meter.Int64Counter(
		"bundler.builds.total",
		metric.WithDescription("Total number of completed builds, including watch rebuilds"),
		metric.WithUnit("{build}"),
	)
	errs = errors.Join(errs, err)

	m.BuildErrorsTotal, err = meter.Int64Counter(
		"bundler.builds.errors.total",
		metric.WithDescription("Total number of builds that reported errors"),
		metric.WithUnit("{build}"),
	)
	errs = errors.Join(errs, err)

	m.BuildDuration, err = meter.Float64Histogram(
		"bundler.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)
	errs = errors.Join(errs, err)

	m.OutputBytes, err = meter.Int64Histogram(
		"bundler.outputs.bytes",
		metric.WithDescription("Size of each output file"),
		metric.WithUnit("By"),
	)
	errs = errors.Join(errs, err)

	m.VendorChunks, err = meter.Int64Gauge(
		"bundler.vendor_chunks",
		metric.WithDescription("Number of vendor chunks planned by the last production build"),
		metric.WithUnit("{chunk}"),
	)
	errs = errors.Join(errs, err)

	m.DevServerRequestsTotal, err = meter.Int64Counter(
		"bundler.devserver.requests.total",
		metric.WithDescription("Total number of requests served by the dev server"),
		metric.WithUnit("{request}"),
	)
	errs = errors.Join(errs, err)

	return m, errs
}
