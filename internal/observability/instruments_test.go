package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	errFirstInstrument  = errors.New("first instrument failed")
	errSecondInstrument = errors.New("second instrument failed")
)

func TestInstrumentSet_CreatesEveryKind(t *testing.T) {
	t.Parallel()

	s := newInstrumentSet(noopmetric.NewMeterProvider().Meter("test"))

	c := s.counter(instrument{"t.counter", "counter", "{file}"})
	h := s.seconds(instrument{name: "t.duration", desc: "duration"})
	u := s.upDown(instrument{"t.updown", "updown", "{file}"})
	reg := s.observed(instrument{"t.gauge", "gauge", "{entry}"}, func() int64 { return 1 })

	require.NoError(t, s.err)
	assert.NotNil(t, c)
	assert.NotNil(t, h)
	assert.NotNil(t, u)
	assert.NotNil(t, reg)
}

func TestInstrumentSet_ObservedReportsOnCollect(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	s := newInstrumentSet(mp.Meter("test"))
	value := int64(3)

	reg := s.observed(instrument{"t.gauge", "gauge", "{entry}"}, func() int64 { return value })
	require.NoError(t, s.err)
	require.NotNil(t, reg)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	gauge, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)

	require.NoError(t, reg.Unregister())
}

func TestInstrumentSet_KeepsFirstError(t *testing.T) {
	t.Parallel()

	s := newInstrumentSet(noopmetric.NewMeterProvider().Meter("test"))

	s.fail("ok.metric", nil)
	require.NoError(t, s.err)

	s.fail("first.metric", errFirstInstrument)
	s.fail("second.metric", errSecondInstrument)

	require.ErrorIs(t, s.err, errFirstInstrument)
	require.NotErrorIs(t, s.err, errSecondInstrument)
	assert.Contains(t, s.err.Error(), "first.metric")

	assert.Nil(t, s.observed(instrument{"t.gauge", "gauge", "{entry}"}, func() int64 { return 0 }),
		"no callback is registered after a failure")
}
