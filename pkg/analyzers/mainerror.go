package analyzers

import (
	"context"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// MainError classifies the unhandled exception line against known crash types.
type MainError struct {
	db *rules.DB
}

// NewMainError creates the main error analyzer.
func NewMainError(db *rules.DB) *MainError { return &MainError{db: db} }

// Name implements analyze.Analyzer.
func (a *MainError) Name() string { return "mainerror" }

// Description implements analyze.Analyzer.
func (a *MainError) Description() string { return "Classifies the unhandled exception." }

// Priority implements analyze.Analyzer.
func (a *MainError) Priority() int { return PriorityMainError }

// ParallelSafe implements analyze.Analyzer.
func (a *MainError) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *MainError) Analyze(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	if log.MainError == "" {
		return resultOf(a.Name(), "Main Error", nil), nil
	}

	for _, rule := range a.db.MainErrors {
		if !rule.Matches(log.MainError) {
			continue
		}

		res := resultOf(a.Name(), "Main Error: "+rule.Title, []hit{{
			title:    rule.Title,
			severity: rule.Level(),
			detail:   rule.Description,
			fix:      rule.Fix,
		}})
		res.Lines = append(res.Lines, "", "`"+log.MainError+"`")

		return res, nil
	}

	return resultOf(a.Name(), "Main Error", []hit{{
		title:    "Unrecognized Exception",
		severity: analyze.SeverityInfo,
		detail:   "`" + log.MainError + "`",
	}}), nil
}
