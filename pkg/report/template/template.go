// Package template turns analysis results into a complete markdown report
// using named templates that select and order standard report sections.
package template

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/levenshtein"
)

// SectionID identifies a standard report section.
type SectionID int

// Standard sections in document order.
const (
	SectionExecutiveSummary SectionID = iota
	SectionOverview
	SectionCriticalIssues
	SectionWarnings
	SectionInformation
	SectionTechnicalDetails
	SectionRecommendations
	SectionPerformance
	SectionStatistics
	SectionAppendix
)

// SectionSpec describes one standard section.
type SectionSpec struct {
	ID    SectionID
	Title string

	// MinSeverity drops results below this severity before the section is built.
	MinSeverity analyze.Severity
}

var sectionSpecs = map[SectionID]SectionSpec{
	SectionExecutiveSummary: {ID: SectionExecutiveSummary, Title: "Executive Summary", MinSeverity: analyze.SeverityNone},
	SectionOverview:         {ID: SectionOverview, Title: "Overview", MinSeverity: analyze.SeverityNone},
	SectionCriticalIssues:   {ID: SectionCriticalIssues, Title: "Critical Issues", MinSeverity: analyze.SeverityError},
	SectionWarnings:         {ID: SectionWarnings, Title: "Warnings", MinSeverity: analyze.SeverityWarning},
	SectionInformation:      {ID: SectionInformation, Title: "Information", MinSeverity: analyze.SeverityInfo},
	SectionTechnicalDetails: {ID: SectionTechnicalDetails, Title: "Technical Details", MinSeverity: analyze.SeverityNone},
	SectionRecommendations:  {ID: SectionRecommendations, Title: "Recommendations", MinSeverity: analyze.SeverityWarning},
	SectionPerformance:      {ID: SectionPerformance, Title: "Performance", MinSeverity: analyze.SeverityNone},
	SectionStatistics:       {ID: SectionStatistics, Title: "Statistics", MinSeverity: analyze.SeverityNone},
	SectionAppendix:         {ID: SectionAppendix, Title: "Appendix", MinSeverity: analyze.SeverityNone},
}

// Spec returns the standard definition of a section.
func (id SectionID) Spec() SectionSpec { return sectionSpecs[id] }

func (id SectionID) String() string {
	if spec, ok := sectionSpecs[id]; ok {
		return spec.Title
	}

	return fmt.Sprintf("section(%d)", int(id))
}

// Template is a named, ordered selection of sections.
type Template struct {
	Name     string
	Sections []SectionID

	// IncludeTOC adds a table of contents after the document header.
	IncludeTOC bool

	// IncludeFooter appends the scan id, generator version and timestamp.
	IncludeFooter bool
}

// Has reports whether the template includes the section.
func (t Template) Has(id SectionID) bool {
	return slices.Contains(t.Sections, id)
}

// Built-in templates.
var (
	Executive = Template{
		Name: "executive",
		Sections: []SectionID{
			SectionExecutiveSummary, SectionCriticalIssues, SectionWarnings, SectionRecommendations,
		},
		IncludeFooter: true,
	}

	Technical = Template{
		Name: "technical",
		Sections: []SectionID{
			SectionOverview, SectionCriticalIssues, SectionWarnings, SectionInformation,
			SectionTechnicalDetails, SectionPerformance, SectionStatistics,
		},
		IncludeFooter: true,
	}

	Summary = Template{
		Name: "summary",
		Sections: []SectionID{
			SectionExecutiveSummary, SectionCriticalIssues, SectionWarnings, SectionInformation,
		},
	}

	Full = Template{
		Name: "full",
		Sections: []SectionID{
			SectionExecutiveSummary, SectionOverview, SectionCriticalIssues, SectionWarnings,
			SectionInformation, SectionTechnicalDetails, SectionRecommendations,
			SectionPerformance, SectionStatistics, SectionAppendix,
		},
		IncludeTOC:    true,
		IncludeFooter: true,
	}
)

// ErrUnknownTemplate is returned by Lookup for names that are not built in.
var ErrUnknownTemplate = errors.New("unknown report template")

// Names lists the built-in template names.
func Names() []string {
	return []string{Executive.Name, Technical.Name, Summary.Name, Full.Name}
}

// Lookup returns the built-in template with the given name (case-insensitive).
func Lookup(name string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Executive.Name:
		return Executive, nil
	case Technical.Name:
		return Technical, nil
	case Summary.Name:
		return Summary, nil
	case Full.Name, "":
		return Full, nil
	default:
		if hint, ok := levenshtein.Closest(name, Names()); ok {
			return Template{}, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownTemplate, name, hint)
		}

		return Template{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTemplate, name, strings.Join(Names(), ", "))
	}
}
