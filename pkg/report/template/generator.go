package template

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/report"
)

// sectionOrderStep spaces section order keys so callers can slot fragments between them.
const sectionOrderStep = 10

// footerOrder keeps the footer after every section.
const footerOrder = 1 << 20

// Input is everything the generator needs for one report.
type Input struct {
	Source  string
	Log     *crashlog.CrashLog
	Results []analyze.Result
	ScanID  string
}

// Options configures a Generator.
type Options struct {
	Template Template
	Verbose  bool

	// Timings adds durations to the report. Off by default so that report
	// text depends only on the ordered results.
	Timings bool

	// Clock stamps the footer when set.
	Clock func() time.Time

	// Version is printed in the footer.
	Version string
}

// Generator composes reports from analysis results.
type Generator struct {
	opts Options
}

// New creates a Generator. A zero Template selects Full.
func New(opts Options) *Generator {
	if len(opts.Template.Sections) == 0 {
		opts.Template = Full
	}

	return &Generator{opts: opts}
}

// Template returns the template in use.
func (g *Generator) Template() Template { return g.opts.Template }

// Compose renders the report for in.
func (g *Generator) Compose(in Input) string {
	doc, rc := g.Build(in)

	return report.Render(doc, rc)
}

// Build returns the document tree and the render context derived from the results.
func (g *Generator) Build(in Input) (*report.Fragment, report.RenderContext) {
	stats := ComputeStatistics(in.Results)
	rc := report.RenderContext{
		HasErrors:   stats.HasErrors(),
		HasWarnings: stats.HasWarnings(),
		Verbose:     g.opts.Verbose,
	}

	sections := make([]*report.Fragment, 0, len(g.opts.Template.Sections)+2)

	for i, id := range g.opts.Template.Sections {
		spec := id.Spec()
		filtered := filterBySeverity(in.Results, spec.MinSeverity)

		body := g.buildSection(id, in, filtered, stats)
		if body.IsEmpty() {
			continue
		}

		opts := []report.Option{report.WithOrder((i + 1) * sectionOrderStep)}
		if id == SectionAppendix {
			opts = append(opts, report.WithVisibility(report.VisibleVerbose))
		}

		sections = append(sections, report.WithHeader(body, spec.Title, opts...))
	}

	if g.opts.Template.IncludeTOC {
		sections = append(sections, tableOfContents(sections, rc))
	}

	if g.opts.Template.IncludeFooter {
		sections = append(sections, g.footer(in))
	}

	return report.Header(documentTitle(in.Source), "", report.WithChildren(sections...)), rc
}

// ComposeFailure renders the error block reported for a file that could not be analyzed.
func (g *Generator) ComposeFailure(source string, errs []string) string {
	var sb strings.Builder

	sb.WriteString("The crash log could not be analyzed.\n")

	if len(errs) > 0 {
		sb.WriteByte('\n')

		for _, e := range errs {
			sb.WriteString("- ")
			sb.WriteString(e)
			sb.WriteByte('\n')
		}
	}

	children := []*report.Fragment{report.Error("Scan Failed", sb.String())}
	if g.opts.Template.IncludeFooter {
		children = append(children, g.footer(Input{Source: source}))
	}

	doc := report.Header(documentTitle(source), "", report.WithChildren(children...))

	return report.Render(doc, report.RenderContext{HasErrors: true, Verbose: g.opts.Verbose})
}

func documentTitle(source string) string {
	if source == "" {
		return "Crash Log Report"
	}

	return "Crash Log Report: " + filepath.Base(source)
}

func filterBySeverity(results []analyze.Result, minSev analyze.Severity) []analyze.Result {
	if minSev <= analyze.SeverityNone {
		return results
	}

	out := make([]analyze.Result, 0, len(results))

	for _, r := range results {
		if r.Severity >= minSev {
			out = append(out, r)
		}
	}

	return out
}

func (g *Generator) buildSection(id SectionID, in Input, results []analyze.Result, stats Statistics) *report.Fragment {
	switch id {
	case SectionExecutiveSummary:
		return executiveSummary(in, stats)
	case SectionOverview:
		return overview(in)
	case SectionCriticalIssues:
		return findings(results, func(s analyze.Severity) bool { return s >= analyze.SeverityError })
	case SectionWarnings:
		return findings(results, func(s analyze.Severity) bool { return s == analyze.SeverityWarning })
	case SectionInformation:
		return findings(results, func(s analyze.Severity) bool { return s == analyze.SeverityInfo })
	case SectionTechnicalDetails:
		return technicalDetails(results)
	case SectionRecommendations:
		return recommendations(results)
	case SectionPerformance:
		if !g.opts.Timings {
			return report.Empty()
		}

		return performance(results)
	case SectionStatistics:
		return statistics(stats, g.opts.Timings)
	case SectionAppendix:
		return appendix(results)
	default:
		return report.Empty()
	}
}

func executiveSummary(in Input, stats Statistics) *report.Fragment {
	if stats.Total == 0 {
		return report.Section("", "No analyzers produced results.")
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Ran %d analyzer(s)", stats.Total)

	if in.Source != "" {
		fmt.Fprintf(&sb, " against `%s`", filepath.Base(in.Source))
	}

	sb.WriteString(".\n\n")

	problems := stats.Problems()
	warnings := stats.Count(analyze.SeverityWarning)
	infos := stats.Count(analyze.SeverityInfo)

	switch {
	case problems == 0 && warnings == 0:
		sb.WriteString("**Status:** no known problems were detected.")
	case problems > 0:
		fmt.Fprintf(&sb, "**Status:** %d critical issue(s) and %d warning(s) need attention.", problems, warnings)
	default:
		fmt.Fprintf(&sb, "**Status:** %d warning(s) need attention.", warnings)
	}

	if infos > 0 {
		fmt.Fprintf(&sb, " %d informational finding(s).", infos)
	}

	if stats.Failed > 0 {
		fmt.Fprintf(&sb, "\n\n%d analyzer(s) could not complete.", stats.Failed)
	}

	return report.Section("", sb.String())
}

func overview(in Input) *report.Fragment {
	var lines []string

	if in.Source != "" {
		lines = append(lines, fmt.Sprintf("- **File:** `%s`", filepath.Base(in.Source)))
	}

	if log := in.Log; log != nil {
		if log.GameVersion != "" {
			lines = append(lines, "- **Game:** "+log.GameVersion)
		}

		if log.Generator != "" {
			lines = append(lines, strings.TrimSpace(fmt.Sprintf("- **Crash generator:** %s %s", log.Generator, log.GeneratorVersion)))
		}

		if log.MainError != "" {
			lines = append(lines, fmt.Sprintf("- **Main error:** `%s`", log.MainError))
		}

		lines = append(lines,
			fmt.Sprintf("- **Plugins:** %s (%s full, %s light)",
				humanize.Comma(int64(len(log.PluginOrder))),
				humanize.Comma(int64(log.FullPluginCount())),
				humanize.Comma(int64(log.LightPluginCount()))),
			"- **Call stack lines:** "+humanize.Comma(int64(len(log.CallStack))),
		)

		if log.Incomplete {
			lines = append(lines, "- **Note:** the log has no plugin list; plugin checks were limited.")
		}
	}

	return report.Section("", strings.Join(lines, "\n"))
}

func entryFor(r analyze.Result, order int) *report.Fragment {
	body := strings.Join(r.Lines, "\n")

	if fix := r.Metadata[analyze.MetaFix]; fix != "" {
		body = strings.TrimRight(body, "\n") + "\n\n**Fix:** " + fix
	}

	opts := []report.Option{report.WithOrder(order)}
	if !r.Fragment.IsEmpty() {
		opts = append(opts, report.WithChildren(r.Fragment))
	}

	switch {
	case r.Severity >= analyze.SeverityError:
		return report.Error(r.Title(), body, opts...)
	case r.Severity == analyze.SeverityWarning:
		return report.Warning(r.Title(), body, opts...)
	case r.Severity == analyze.SeverityInfo:
		return report.Info(r.Title(), body, opts...)
	default:
		return report.Section(r.Title(), body, opts...)
	}
}

func findings(results []analyze.Result, match func(analyze.Severity) bool) *report.Fragment {
	entries := make([]*report.Fragment, 0, len(results))

	for i, r := range results {
		if match(r.Severity) && r.HasFindings() {
			entries = append(entries, entryFor(r, i))
		}
	}

	return report.Compose(entries...)
}

func newMarkdownTable(header table.Row) table.Writer {
	tbl := table.NewWriter()
	tbl.AppendHeader(header)

	return tbl
}

func technicalDetails(results []analyze.Result) *report.Fragment {
	if len(results) == 0 {
		return report.Empty()
	}

	tbl := newMarkdownTable(table.Row{"Analyzer", "Status", "Severity", "Findings"})

	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}

		tbl.AppendRow(table.Row{r.AnalyzerName, status, r.Severity.String(), len(r.Lines)})
	}

	return report.Section("", tbl.RenderMarkdown())
}

func recommendations(results []analyze.Result) *report.Fragment {
	var lines []string

	for _, r := range results {
		if fix := r.Metadata[analyze.MetaFix]; fix != "" {
			lines = append(lines, fmt.Sprintf("- **%s:** %s", r.Title(), fix))
		}
	}

	return report.Section("", strings.Join(lines, "\n"))
}

func performance(results []analyze.Result) *report.Fragment {
	if len(results) == 0 {
		return report.Empty()
	}

	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b analyze.Result) int {
		switch {
		case a.Duration > b.Duration:
			return -1
		case a.Duration < b.Duration:
			return 1
		default:
			return 0
		}
	})

	tbl := newMarkdownTable(table.Row{"Analyzer", "Duration"})
	for _, r := range sorted {
		tbl.AppendRow(table.Row{r.AnalyzerName, r.Duration.Round(time.Microsecond).String()})
	}

	return report.Section("", tbl.RenderMarkdown())
}

func statistics(stats Statistics, timings bool) *report.Fragment {
	if stats.Total == 0 {
		return report.Empty()
	}

	tbl := newMarkdownTable(table.Row{"Metric", "Value"})

	for sev := analyze.SeverityCritical; sev >= analyze.SeverityNone; sev-- {
		tbl.AppendRow(table.Row{capitalize(sev.String()), stats.Count(sev)})
	}

	tbl.AppendRow(table.Row{"Analyzers", stats.Total})
	tbl.AppendRow(table.Row{"Failed", stats.Failed})

	if timings {
		tbl.AppendRow(table.Row{"Total duration", stats.TotalDuration.Round(time.Microsecond).String()})
		tbl.AppendRow(table.Row{"Average duration", stats.AverageDuration.Round(time.Microsecond).String()})
		tbl.AppendRow(table.Row{"Slowest", fmt.Sprintf("%s (%s)", stats.Slowest, stats.SlowestDuration.Round(time.Microsecond))})
		tbl.AppendRow(table.Row{"Fastest", fmt.Sprintf("%s (%s)", stats.Fastest, stats.FastestDuration.Round(time.Microsecond))})
	}

	return report.Section("", tbl.RenderMarkdown())
}

func appendix(results []analyze.Result) *report.Fragment {
	entries := make([]*report.Fragment, 0, len(results))

	for i, r := range results {
		if len(r.Lines) == 0 {
			continue
		}

		body := "```\n" + strings.Join(r.Lines, "\n") + "\n```"
		entries = append(entries, report.Section(r.AnalyzerName, body, report.WithOrder(i)))
	}

	return report.Compose(entries...)
}

func tableOfContents(sections []*report.Fragment, rc report.RenderContext) *report.Fragment {
	var lines []string

	for _, s := range sections {
		if s.Title() == "" || !rc.Visible(s) {
			continue
		}

		lines = append(lines, fmt.Sprintf("- [%s](#%s)", s.Title(), anchor(s.Title())))
	}

	return report.Section("Contents", strings.Join(lines, "\n"), report.WithOrder(0))
}

func (g *Generator) footer(in Input) *report.Fragment {
	var sb strings.Builder

	sb.WriteString("---\n\n_Generated by autoscan")

	if g.opts.Version != "" {
		sb.WriteString(" ")
		sb.WriteString(g.opts.Version)
	}

	if g.opts.Clock != nil {
		sb.WriteString(" on ")
		sb.WriteString(g.opts.Clock().UTC().Format(time.RFC3339))

		if in.ScanID != "" {
			sb.WriteString(" (scan ")
			sb.WriteString(in.ScanID)
			sb.WriteString(")")
		}
	}

	sb.WriteString("_")

	return report.Section("", sb.String(), report.WithOrder(footerOrder))
}

// anchor converts a heading into its markdown link fragment.
func anchor(title string) string {
	var sb strings.Builder

	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == ' ' || r == '-':
			sb.WriteByte('-')
		}
	}

	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
