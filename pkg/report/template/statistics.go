package template

import (
	"time"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
)

// Statistics aggregates a result set.
type Statistics struct {
	Total  int
	Failed int

	// Counts is indexed by severity.
	Counts [analyze.SeverityCritical + 1]int

	TotalDuration   time.Duration
	AverageDuration time.Duration
	Slowest         string
	SlowestDuration time.Duration
	Fastest         string
	FastestDuration time.Duration
}

// ComputeStatistics folds results into Statistics. Ties on duration keep the
// earliest result so the outcome depends only on input order.
func ComputeStatistics(results []analyze.Result) Statistics {
	var stats Statistics

	stats.Total = len(results)

	for i, r := range results {
		if !r.Success {
			stats.Failed++
		}

		if r.Severity >= analyze.SeverityNone && r.Severity <= analyze.SeverityCritical {
			stats.Counts[r.Severity]++
		}

		stats.TotalDuration += r.Duration

		if i == 0 || r.Duration > stats.SlowestDuration {
			stats.Slowest = r.AnalyzerName
			stats.SlowestDuration = r.Duration
		}

		if i == 0 || r.Duration < stats.FastestDuration {
			stats.Fastest = r.AnalyzerName
			stats.FastestDuration = r.Duration
		}
	}

	if stats.Total > 0 {
		stats.AverageDuration = stats.TotalDuration / time.Duration(stats.Total)
	}

	return stats
}

// Count returns the number of results at severity s.
func (s Statistics) Count(sev analyze.Severity) int {
	if sev < analyze.SeverityNone || sev > analyze.SeverityCritical {
		return 0
	}

	return s.Counts[sev]
}

// Problems is the number of results at Error or above.
func (s Statistics) Problems() int {
	return s.Counts[analyze.SeverityError] + s.Counts[analyze.SeverityCritical]
}

// HasErrors reports whether any result is Error or above, or failed outright.
func (s Statistics) HasErrors() bool {
	return s.Problems() > 0 || s.Failed > 0
}

// HasWarnings reports whether any result is a Warning.
func (s Statistics) HasWarnings() bool {
	return s.Counts[analyze.SeverityWarning] > 0
}
