package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/autoscan/pkg/cache"
)

var (
	instFilesTotal       = instrument{"autoscan.scan.files.total", "Crash logs processed, by final status", "{file}"}
	instFileDuration     = instrument{name: "autoscan.scan.file.duration.seconds", desc: "Wall time per crash log"}
	instAnalyzerRuns     = instrument{"autoscan.analyzer.runs.total", "Analyzer invocations, by outcome", "{run}"}
	instAnalyzerDuration = instrument{name: "autoscan.analyzer.duration.seconds", desc: "Analyzer run time"}
	instCacheLookups     = instrument{"autoscan.cache.lookups.total", "Result cache lookups, by hit or miss", "{lookup}"}
	instRetries          = instrument{"autoscan.analyzer.retries.total", "Analyzer retries after transient failures", "{retry}"}
	instReportsWritten   = instrument{"autoscan.reports.written.total", "Reports written to disk, by result", "{report}"}
	instInflightFiles    = instrument{"autoscan.scan.inflight", "Crash logs currently being processed", "{file}"}
	instCacheEntries     = instrument{"autoscan.cache.entries", "Analyzer results held by the result cache", "{entry}"}
)

const (
	attrStatus   = "status"
	attrAnalyzer = "analyzer"
	attrOutcome  = "outcome"
	attrResult   = "result"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

// ScanMetrics records pipeline measurements as OTel instruments. A nil
// *ScanMetrics is a valid no-op recorder.
type ScanMetrics struct {
	filesTotal       metric.Int64Counter
	fileDuration     metric.Float64Histogram
	analyzerRuns     metric.Int64Counter
	analyzerDuration metric.Float64Histogram
	cacheLookups     metric.Int64Counter
	retries          metric.Int64Counter
	reportsWritten   metric.Int64Counter
	inflightFiles    metric.Int64UpDownCounter
}

// NewScanMetrics creates the scan instruments on mt.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	s := newInstrumentSet(mt)

	sm := &ScanMetrics{
		filesTotal:       s.counter(instFilesTotal),
		fileDuration:     s.seconds(instFileDuration),
		analyzerRuns:     s.counter(instAnalyzerRuns),
		analyzerDuration: s.seconds(instAnalyzerDuration),
		cacheLookups:     s.counter(instCacheLookups),
		retries:          s.counter(instRetries),
		reportsWritten:   s.counter(instReportsWritten),
		inflightFiles:    s.upDown(instInflightFiles),
	}

	if s.err != nil {
		return nil, s.err
	}

	return sm, nil
}

// FileScanned records one finished crash log.
func (sm *ScanMetrics) FileScanned(ctx context.Context, status string, d time.Duration) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	sm.filesTotal.Add(ctx, 1, attrs)
	sm.fileDuration.Record(ctx, d.Seconds(), attrs)
}

// AnalyzerRun records one analyzer invocation.
func (sm *ScanMetrics) AnalyzerRun(ctx context.Context, analyzer, outcome string, d time.Duration) {
	if sm == nil {
		return
	}

	sm.analyzerRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAnalyzer, analyzer),
		attribute.String(attrOutcome, outcome),
	))
	sm.analyzerDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// CacheLookup records a result cache hit or miss.
func (sm *ScanMetrics) CacheLookup(ctx context.Context, hit bool) {
	if sm == nil {
		return
	}

	result := resultMiss
	if hit {
		result = resultHit
	}

	sm.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// Retried records the retries an analyzer needed.
func (sm *ScanMetrics) Retried(ctx context.Context, analyzer string, retries int) {
	if sm == nil || retries <= 0 {
		return
	}

	sm.retries.Add(ctx, int64(retries), metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// ReportWritten records a report write attempt.
func (sm *ScanMetrics) ReportWritten(ctx context.Context, ok bool) {
	if sm == nil {
		return
	}

	result := resultError
	if ok {
		result = resultOK
	}

	sm.reportsWritten.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// InflightFiles adjusts the in-flight gauge.
func (sm *ScanMetrics) InflightFiles(ctx context.Context, delta int64) {
	if sm == nil {
		return
	}

	sm.inflightFiles.Add(ctx, delta)
}

// ObserveCache publishes the cache entry count on every collection.
// Unregister the returned registration when the cache goes away.
func ObserveCache(mt metric.Meter, c *cache.ResultCache) (metric.Registration, error) {
	s := newInstrumentSet(mt)

	reg := s.observed(instCacheEntries, func() int64 { return int64(c.Stats().Entries) })
	if s.err != nil {
		return nil, s.err
	}

	return reg, nil
}
