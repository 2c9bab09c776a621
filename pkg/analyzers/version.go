package analyzers

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// Version reports an outdated or unrecognized crash generator.
type Version struct {
	db *rules.DB
}

// NewVersion creates the crash generator version analyzer.
func NewVersion(db *rules.DB) *Version { return &Version{db: db} }

// Name implements analyze.Analyzer.
func (a *Version) Name() string { return "version" }

// Description implements analyze.Analyzer.
func (a *Version) Description() string { return "Checks the crash generator version." }

// Priority implements analyze.Analyzer.
func (a *Version) Priority() int { return PriorityVersion }

// ParallelSafe implements analyze.Analyzer.
func (a *Version) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *Version) Analyze(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	gen := a.db.Generator

	if log.Generator == "" {
		return resultOf(a.Name(), "Crash Generator", nil), nil
	}

	if !strings.EqualFold(log.Generator, gen.Name) {
		return resultOf(a.Name(), "Crash Generator", []hit{{
			title:    "Unrecognized Crash Generator",
			severity: analyze.SeverityInfo,
			detail:   fmt.Sprintf("%s v%s is not %s; some checks may not apply.", log.Generator, log.GeneratorVersion, gen.Name),
		}}), nil
	}

	have, latest := "v"+log.GeneratorVersion, "v"+gen.LatestVersion
	if !semver.IsValid(have) || !semver.IsValid(latest) || semver.Compare(have, latest) >= 0 {
		return resultOf(a.Name(), "Crash Generator", nil), nil
	}

	fix := "Update " + gen.Name + " to v" + gen.LatestVersion + "."
	if gen.DownloadURL != "" {
		fix = "Update " + gen.Name + " to v" + gen.LatestVersion + " from " + gen.DownloadURL + "."
	}

	return resultOf(a.Name(), "Crash Generator", []hit{{
		title:    "Outdated " + gen.Name,
		severity: analyze.SeverityWarning,
		detail:   fmt.Sprintf("Installed v%s, latest is v%s.", log.GeneratorVersion, gen.LatestVersion),
		fix:      fix,
	}}), nil
}
