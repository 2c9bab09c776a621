// Package analyze defines the analyzer contract, analysis results and the
// ordered analyzer set the scan pipeline fans out over.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/report"
)

// Severity ranks how serious a finding is.
type Severity int

// Severity levels, least to most serious.
const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = [...]string{"none", "info", "warning", "error", "critical"}

// ErrUnknownSeverity is returned by ParseSeverity for unrecognized names.
var ErrUnknownSeverity = errors.New("unknown severity")

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}

	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses a severity name (case-insensitive).
func ParseSeverity(name string) (Severity, error) {
	idx := slices.Index(severityNames[:], strings.ToLower(strings.TrimSpace(name)))
	if idx < 0 {
		return SeverityNone, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
	}

	return Severity(idx), nil
}

// Well-known metadata keys.
const (
	MetaTitle = "title"
	MetaFix   = "fix"
	MetaCache = "cache"
)

// Result is the output of one analyzer run against one crash log.
type Result struct {
	AnalyzerName string
	Success      bool
	Severity     Severity
	Lines        []string
	Metadata     map[string]string
	Duration     time.Duration

	// Fragment is optional pre-built report content for this result.
	Fragment *report.Fragment
}

// Clone returns a deep copy; fragments are immutable and shared.
func (r Result) Clone() Result {
	out := r
	out.Lines = slices.Clone(r.Lines)
	out.Metadata = maps.Clone(r.Metadata)

	return out
}

// HasFindings reports whether the result carries any report lines or fragment content.
func (r Result) HasFindings() bool {
	return len(r.Lines) > 0 || !r.Fragment.IsEmpty()
}

// Title returns the display title of the result.
func (r Result) Title() string {
	if t, ok := r.Metadata[MetaTitle]; ok && t != "" {
		return t
	}

	return r.AnalyzerName
}

// Analyzer is one independent unit of pattern-based diagnosis.
type Analyzer interface {
	Name() string
	Description() string

	// Priority orders results; lower values aggregate first.
	Priority() int

	// ParallelSafe reports whether Analyze may run concurrently with other analyzers.
	ParallelSafe() bool

	Analyze(ctx context.Context, log *crashlog.CrashLog) (Result, error)
}

// AnalyzerError wraps an analyzer fault.
type AnalyzerError struct {
	Analyzer string
	Err      error
	Panicked bool
}

func (e *AnalyzerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("analyzer %s panicked: %v", e.Analyzer, e.Err)
	}

	return fmt.Sprintf("analyzer %s: %v", e.Analyzer, e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// FailedResult converts an analyzer fault into an error-severity result.
func FailedResult(name string, err error) Result {
	msg := fmt.Sprintf("%s could not complete: %v", name, err)

	return Result{
		AnalyzerName: name,
		Success:      false,
		Severity:     SeverityError,
		Lines:        []string{msg},
		Metadata:     map[string]string{"error": err.Error()},
	}
}
