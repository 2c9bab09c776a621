package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/autoscan/pkg/messages"
	"github.com/Sumatoshi-tech/autoscan/pkg/scan"
)

// fileSummary is one line of JSON output.
type fileSummary struct {
	scan.Result

	MaxSeverity string `json:"max_severity"`
	Findings    int    `json:"findings"`
}

func summarize(r scan.Result) fileSummary {
	findings := 0

	for _, ar := range r.Results {
		if ar.Success && len(ar.Lines) > 0 {
			findings++
		}
	}

	return fileSummary{Result: r, MaxSeverity: r.MaxSeverity().String(), Findings: findings}
}

// sortResults orders results by path. Batches stream in completion order.
func sortResults(results []scan.Result) {
	slices.SortFunc(results, func(a, b scan.Result) int { return strings.Compare(a.LogPath, b.LogPath) })
}

func countFailed(results []scan.Result) int {
	n := 0

	for _, r := range results {
		if r.Status == scan.StatusFailed {
			n++
		}
	}

	return n
}

func writeJSON(w io.Writer, results []scan.Result) error {
	out := make([]fileSummary, len(results))
	for i, r := range results {
		out[i] = summarize(r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	return nil
}

// announce prints one message per file.
func announce(msgs *messages.Messenger, results []scan.Result) {
	for _, r := range results {
		name := filepath.Base(r.LogPath)

		switch r.Status {
		case scan.StatusCompleted:
			if r.Written {
				msgs.Success("%s: %s", name, filepath.Base(r.OutputPath))
			} else {
				msgs.Success("%s: scanned", name)
			}
		case scan.StatusFailed:
			msgs.Error("%s: %s", name, strings.Join(r.Errors, "; "))
		default:
			msgs.Warning("%s: %s", name, r.Status)
		}
	}
}

// writeSummary renders the per-file table and a totals line.
func writeSummary(w io.Writer, results []scan.Result) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Crash log", "Status", "Severity", "Findings", "Cached", "Time"})

	var total time.Duration

	for _, r := range results {
		s := summarize(r)
		total += r.Duration

		tbl.AppendRow(table.Row{
			filepath.Base(r.LogPath),
			r.Status.String(),
			s.MaxSeverity,
			s.Findings,
			r.CacheHits,
			r.Duration.Round(time.Millisecond).String(),
		})
	}

	tbl.Render()

	fmt.Fprintf(w, "%s crash log(s), %s failed, %s total scan time\n",
		humanize.Comma(int64(len(results))),
		humanize.Comma(int64(countFailed(results))),
		total.Round(time.Millisecond))
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
