package scan

import (
	"context"
	"time"
)

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FileScanned(ctx context.Context, status string, d time.Duration)
	AnalyzerRun(ctx context.Context, analyzer, outcome string, d time.Duration)
	CacheLookup(ctx context.Context, hit bool)
	Retried(ctx context.Context, analyzer string, retries int)
	ReportWritten(ctx context.Context, ok bool)
	InflightFiles(ctx context.Context, delta int64)
}

// Analyzer run outcomes passed to Recorder.AnalyzerRun.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
	OutcomePanicked = "panicked"
	// OutcomeDegraded is a failure the retry policy continued past.
	OutcomeDegraded = "degraded"
)

type nopRecorder struct{}

func (nopRecorder) FileScanned(context.Context, string, time.Duration)         {}
func (nopRecorder) AnalyzerRun(context.Context, string, string, time.Duration) {}
func (nopRecorder) CacheLookup(context.Context, bool)                          {}
func (nopRecorder) Retried(context.Context, string, int)                       {}
func (nopRecorder) ReportWritten(context.Context, bool)                        {}
func (nopRecorder) InflightFiles(context.Context, int64)                       {}
