package analyzers

import (
	"context"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// Suspects matches known crash signatures against the main error and call stack.
type Suspects struct {
	db *rules.DB
}

// NewSuspects creates the crash suspect analyzer.
func NewSuspects(db *rules.DB) *Suspects { return &Suspects{db: db} }

// Name implements analyze.Analyzer.
func (a *Suspects) Name() string { return "suspects" }

// Description implements analyze.Analyzer.
func (a *Suspects) Description() string { return "Matches known crash signatures on the call stack." }

// Priority implements analyze.Analyzer.
func (a *Suspects) Priority() int { return PrioritySuspects }

// ParallelSafe implements analyze.Analyzer.
func (a *Suspects) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *Suspects) Analyze(ctx context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	var hits []hit

	for _, s := range a.db.Suspects {
		if err := ctx.Err(); err != nil {
			return analyze.Result{}, err
		}

		detail := s.Description

		if line, ok := s.MatchStack(log.CallStack); ok {
			detail = joinDetail(detail, "matched `"+line+"`")
		} else if !s.MatchMainError(log.MainError) {
			continue
		}

		hits = append(hits, hit{title: s.Title, severity: s.Level(), detail: detail, fix: s.Fix})
	}

	return resultOf(a.Name(), "Crash Suspects", hits), nil
}

func joinDetail(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " (" + b + ")"
	}
}
