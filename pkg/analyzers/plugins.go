package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// Plugins checks load order capacity and known conflicting plugin pairs.
type Plugins struct {
	db *rules.DB
}

// NewPlugins creates the plugin analyzer.
func NewPlugins(db *rules.DB) *Plugins { return &Plugins{db: db} }

// Name implements analyze.Analyzer.
func (a *Plugins) Name() string { return "plugins" }

// Description implements analyze.Analyzer.
func (a *Plugins) Description() string { return "Checks plugin limits and known plugin conflicts." }

// Priority implements analyze.Analyzer.
func (a *Plugins) Priority() int { return PriorityPlugins }

// ParallelSafe implements analyze.Analyzer.
func (a *Plugins) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *Plugins) Analyze(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	if log.Incomplete {
		return resultOf(a.Name(), "Plugins", []hit{{
			title:    "Plugin List Missing",
			severity: analyze.SeverityInfo,
			detail:   "The crash log ends before the plugin list, so plugin checks were skipped.",
		}}), nil
	}

	hits := a.limitHits(log)

	for _, conflict := range a.db.PluginConflicts {
		if !allLoaded(log, conflict.Plugins) {
			continue
		}

		detail := strings.Join(conflict.Plugins, " + ")
		if conflict.Description != "" {
			detail += ". " + conflict.Description
		}

		hits = append(hits, hit{title: conflict.Title, severity: conflict.Level(), detail: detail, fix: conflict.Fix})
	}

	return resultOf(a.Name(), "Plugins", hits), nil
}

func (a *Plugins) limitHits(log *crashlog.CrashLog) []hit {
	limits := a.db.PluginLimits
	full := log.FullPluginCount()
	light := log.LightPluginCount()

	var hits []hit

	switch {
	case full > limits.Full:
		hits = append(hits, hit{
			title:    "Plugin Limit Exceeded",
			severity: analyze.SeverityError,
			detail:   fmt.Sprintf("%d full plugins are loaded; the game supports %d.", full, limits.Full),
			fix:      "Merge or disable plugins, or convert eligible ones to light plugins.",
		})
	case limits.FullWarning > 0 && full >= limits.FullWarning:
		hits = append(hits, hit{
			title:    "Close To Plugin Limit",
			severity: analyze.SeverityWarning,
			detail:   fmt.Sprintf("%d of %d full plugin slots are used.", full, limits.Full),
		})
	}

	if light > limits.Light {
		hits = append(hits, hit{
			title:    "Light Plugin Limit Exceeded",
			severity: analyze.SeverityError,
			detail:   fmt.Sprintf("%d light plugins are loaded; the game supports %d.", light, limits.Light),
			fix:      "Disable light plugins until the count is within the limit.",
		})
	}

	return hits
}

func allLoaded(log *crashlog.CrashLog, plugins []string) bool {
	for _, p := range plugins {
		if !log.HasPlugin(p) {
			return false
		}
	}

	return len(plugins) > 0
}
