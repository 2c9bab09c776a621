package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/autoscan/internal/observability"
	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/cache"
	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
	"github.com/Sumatoshi-tech/autoscan/pkg/scan"
)

var _ scan.Recorder = (*observability.ScanMetrics)(nil)

func setupScanMeter(t *testing.T) (*observability.ScanMetrics, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sm, err := observability.NewScanMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return sm, reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for i := range rm.ScopeMetrics {
		for j := range rm.ScopeMetrics[i].Metrics {
			if rm.ScopeMetrics[i].Metrics[j].Name == name {
				return &rm.ScopeMetrics[i].Metrics[j]
			}
		}
	}

	return nil
}

// sumByAttr returns the counter value for the data point whose key equals value.
func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			return dp.Value
		}
	}

	return 0
}

func TestScanMetrics_FileScanned(t *testing.T) {
	t.Parallel()

	sm, reader, _ := setupScanMeter(t)
	ctx := context.Background()

	sm.FileScanned(ctx, "completed", 20*time.Millisecond)
	sm.FileScanned(ctx, "completed", 40*time.Millisecond)
	sm.FileScanned(ctx, "failed", time.Millisecond)

	rm := collectMetrics(t, reader)

	files := findMetric(rm, "autoscan.scan.files.total")
	assert.Equal(t, int64(2), sumByAttr(t, files, "status", "completed"))
	assert.Equal(t, int64(1), sumByAttr(t, files, "status", "failed"))

	dur := findMetric(rm, "autoscan.scan.file.duration.seconds")
	require.NotNil(t, dur)

	hist, ok := dur.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}

	assert.Equal(t, uint64(3), count)
}

func TestScanMetrics_AnalyzerAndCache(t *testing.T) {
	t.Parallel()

	sm, reader, _ := setupScanMeter(t)
	ctx := context.Background()

	sm.AnalyzerRun(ctx, "suspects", scan.OutcomeOK, time.Millisecond)
	sm.AnalyzerRun(ctx, "suspects", scan.OutcomeCached, 0)
	sm.AnalyzerRun(ctx, "fcx", scan.OutcomeFailed, time.Millisecond)
	sm.AnalyzerRun(ctx, "settings", scan.OutcomeDegraded, time.Millisecond)
	sm.CacheLookup(ctx, true)
	sm.CacheLookup(ctx, false)
	sm.CacheLookup(ctx, false)
	sm.Retried(ctx, "fcx", 2)
	sm.Retried(ctx, "fcx", 0)
	sm.ReportWritten(ctx, true)
	sm.ReportWritten(ctx, false)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "autoscan.analyzer.runs.total")
	assert.Equal(t, int64(1), sumByAttr(t, runs, "outcome", scan.OutcomeFailed))
	assert.Equal(t, int64(1), sumByAttr(t, runs, "outcome", scan.OutcomeCached))
	assert.Equal(t, int64(1), sumByAttr(t, runs, "outcome", scan.OutcomeDegraded))

	lookups := findMetric(rm, "autoscan.cache.lookups.total")
	assert.Equal(t, int64(1), sumByAttr(t, lookups, "result", "hit"))
	assert.Equal(t, int64(2), sumByAttr(t, lookups, "result", "miss"))

	retries := findMetric(rm, "autoscan.analyzer.retries.total")
	assert.Equal(t, int64(2), sumByAttr(t, retries, "analyzer", "fcx"))

	reports := findMetric(rm, "autoscan.reports.written.total")
	assert.Equal(t, int64(1), sumByAttr(t, reports, "result", "ok"))
	assert.Equal(t, int64(1), sumByAttr(t, reports, "result", "error"))
}

func TestScanMetrics_Inflight(t *testing.T) {
	t.Parallel()

	sm, reader, _ := setupScanMeter(t)
	ctx := context.Background()

	sm.InflightFiles(ctx, 1)
	sm.InflightFiles(ctx, 1)
	sm.InflightFiles(ctx, -1)

	m := findMetric(collectMetrics(t, reader), "autoscan.scan.inflight")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	assert.False(t, sum.IsMonotonic)
}

func TestScanMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *observability.ScanMetrics

	ctx := context.Background()

	assert.NotPanics(t, func() {
		sm.FileScanned(ctx, "completed", time.Second)
		sm.AnalyzerRun(ctx, "a", scan.OutcomeOK, time.Second)
		sm.CacheLookup(ctx, true)
		sm.Retried(ctx, "a", 1)
		sm.ReportWritten(ctx, true)
		sm.InflightFiles(ctx, 1)
	})
}

func TestObserveCache(t *testing.T) {
	t.Parallel()

	_, reader, mp := setupScanMeter(t)

	c := cache.New(cache.WithShards(1))
	id := fingerprint.FileID{Path: "/logs/crash-1.log", Fingerprint: fingerprint.Fingerprint{Size: 1, ModTime: 1}}
	c.Put(id, "suspects", analyze.Result{Success: true})
	c.Put(id, "records", analyze.Result{Success: true})

	reg, err := observability.ObserveCache(mp.Meter("test"), c)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, reg.Unregister()) })

	m := findMetric(collectMetrics(t, reader), "autoscan.cache.entries")
	require.NotNil(t, m)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}
