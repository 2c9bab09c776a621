package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

const defaultMaxRecords = 20

// Records lists the named game records referenced on the call stack.
type Records struct {
	db *rules.DB
}

// NewRecords creates the named record analyzer.
func NewRecords(db *rules.DB) *Records { return &Records{db: db} }

// Name implements analyze.Analyzer.
func (a *Records) Name() string { return "records" }

// Description implements analyze.Analyzer.
func (a *Records) Description() string { return "Lists named records found on the call stack." }

// Priority implements analyze.Analyzer.
func (a *Records) Priority() int { return PriorityRecords }

// ParallelSafe implements analyze.Analyzer.
func (a *Records) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *Records) Analyze(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	cfg := a.db.Records

	limit := cfg.MaxListed
	if limit <= 0 {
		limit = defaultMaxRecords
	}

	var order []string

	counts := make(map[string]int)

	for _, line := range log.CallStack {
		record, ok := extractRecord(line, cfg)
		if !ok {
			continue
		}

		if counts[record] == 0 {
			order = append(order, record)
		}

		counts[record]++
	}

	res := analyze.Result{
		AnalyzerName: a.Name(),
		Success:      true,
		Metadata:     map[string]string{analyze.MetaTitle: "Named Records"},
	}

	if len(order) == 0 {
		return res, nil
	}

	res.Severity = analyze.SeverityInfo
	res.Lines = []string{"These records were involved in the crash and may point at the mod responsible:", ""}

	for i, record := range order {
		if i == limit {
			res.Lines = append(res.Lines, fmt.Sprintf("- ...and %d more", len(order)-limit))

			break
		}

		res.Lines = append(res.Lines, fmt.Sprintf("- `%s` (x%d)", record, counts[record]))
	}

	return res, nil
}

func extractRecord(line string, cfg rules.Records) (string, bool) {
	marked := false

	for _, m := range cfg.Markers {
		if strings.Contains(line, m) {
			marked = true

			break
		}
	}

	if !marked {
		return "", false
	}

	for _, ign := range cfg.Ignore {
		if strings.Contains(line, ign) {
			return "", false
		}
	}

	if _, after, ok := strings.Cut(line, "->"); ok {
		line = after
	}

	record := strings.TrimSpace(line)

	return record, record != ""
}
