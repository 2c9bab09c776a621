// Package analyzers provides the built-in crash log analyzers and a
// registry for selecting them by name or glob pattern.
package analyzers

import (
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
)

// Fixed priorities of the built-in analyzers. Lower values report first.
const (
	PriorityMainError = 10
	PrioritySuspects  = 20
	PrioritySettings  = 30
	PriorityPlugins   = 40
	PriorityVersion   = 50
	PriorityRecords   = 60
	PriorityFCX       = 70
)

// hit is one matched rule inside an analyzer run.
type hit struct {
	title    string
	severity analyze.Severity
	detail   string
	fix      string
}

func (h hit) line() string {
	var sb strings.Builder

	sb.WriteString("- **")
	sb.WriteString(h.title)
	sb.WriteString("**")

	if h.detail != "" {
		sb.WriteString(": ")
		sb.WriteString(h.detail)
	}

	return sb.String()
}

// resultOf folds hits into one result. The result takes the highest hit
// severity and the fix of the first hit at that severity; the other fixes
// stay inline with their findings.
func resultOf(name, title string, hits []hit) analyze.Result {
	res := analyze.Result{
		AnalyzerName: name,
		Success:      true,
		Metadata:     map[string]string{analyze.MetaTitle: title},
	}

	if len(hits) == 0 {
		return res
	}

	lead := 0

	for i, h := range hits {
		if h.severity > hits[lead].severity {
			lead = i
		}
	}

	res.Severity = hits[lead].severity
	res.Lines = make([]string, 0, len(hits))

	for i, h := range hits {
		line := h.line()
		if i != lead && h.fix != "" {
			line += " _Fix:_ " + h.fix
		}

		res.Lines = append(res.Lines, line)
	}

	if fix := hits[lead].fix; fix != "" {
		res.Metadata[analyze.MetaFix] = fix
	}

	return res
}
