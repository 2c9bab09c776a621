package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrument names one autoscan metric.
type instrument struct {
	name string
	desc string
	unit string
}

// durationBuckets spans 1ms to 30s. Crash logs parse in milliseconds;
// the upper buckets catch FCX runs on slow disks.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// instrumentSet creates instruments on one meter and keeps the first
// failure, so a constructor fills a whole struct and checks err once.
type instrumentSet struct {
	meter metric.Meter
	err   error
}

func newInstrumentSet(mt metric.Meter) *instrumentSet {
	return &instrumentSet{meter: mt}
}

func (s *instrumentSet) counter(in instrument) metric.Int64Counter {
	c, err := s.meter.Int64Counter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	s.fail(in.name, err)

	return c
}

// seconds creates a duration histogram over durationBuckets.
func (s *instrumentSet) seconds(in instrument) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(in.name,
		metric.WithDescription(in.desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	s.fail(in.name, err)

	return h
}

func (s *instrumentSet) upDown(in instrument) metric.Int64UpDownCounter {
	c, err := s.meter.Int64UpDownCounter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	s.fail(in.name, err)

	return c
}

// observed creates a gauge that reports read() on every collection.
// It returns nil once any instrument in the set has failed.
func (s *instrumentSet) observed(in instrument, read func() int64) metric.Registration {
	g, err := s.meter.Int64ObservableGauge(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	s.fail(in.name, err)

	if s.err != nil {
		return nil
	}

	reg, err := s.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(g, read())

		return nil
	}, g)
	if err != nil {
		s.err = fmt.Errorf("register %s callback: %w", in.name, err)

		return nil
	}

	return reg
}

func (s *instrumentSet) fail(name string, err error) {
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("create %s: %w", name, err)
	}
}
