package scan

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
)

// Status is the terminal outcome of one file.
type Status int

// File statuses.
const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var statusNames = [...]string{"pending", "completed", "failed", "cancelled"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a step of the per-file state machine.
type State int

// Pipeline states. Cancelled is reachable from any state and Failed from
// Received, Parsed or Analyzing.
const (
	StateReceived State = iota
	StateParsed
	StateAnalyzing
	StateAggregating
	StateCached
	StateReported
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	"received", "parsed", "analyzing", "aggregating", "cached", "reported", "completed", "failed", "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Result is the aggregate outcome for one crash log.
type Result struct {
	ScanID     string        `json:"scan_id"`
	LogPath    string        `json:"log_path"`
	OutputPath string        `json:"output_path,omitempty"`
	Status     Status        `json:"status"`
	Duration   time.Duration `json:"duration"`
	Errors     []string      `json:"errors,omitempty"`

	// Results are ordered by analyzer priority, never by completion.
	Results    []analyze.Result `json:"-"`
	ReportText string           `json:"-"`

	// Written is true when the report file was saved.
	Written bool `json:"written"`

	// CacheHits counts analyzers served from the result cache.
	CacheHits int `json:"cache_hits"`

	// Requests is how many batch submissions this single execution satisfied.
	Requests int `json:"requests"`
}

// Succeeded reports whether the file completed.
func (r Result) Succeeded() bool { return r.Status == StatusCompleted }

// MaxSeverity returns the most severe analyzer finding.
func (r Result) MaxSeverity() analyze.Severity {
	maxSev := analyze.SeverityNone

	for _, ar := range r.Results {
		maxSev = max(maxSev, ar.Severity)
	}

	return maxSev
}
