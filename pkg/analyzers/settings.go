package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// Settings flags crash generator setting values that conflict with the
// installed script extender plugins.
type Settings struct {
	db *rules.DB
}

// NewSettings creates the crash generator settings analyzer.
func NewSettings(db *rules.DB) *Settings { return &Settings{db: db} }

// Name implements analyze.Analyzer.
func (a *Settings) Name() string { return "settings" }

// Description implements analyze.Analyzer.
func (a *Settings) Description() string { return "Checks crash generator settings against installed mods." }

// Priority implements analyze.Analyzer.
func (a *Settings) Priority() int { return PrioritySettings }

// ParallelSafe implements analyze.Analyzer.
func (a *Settings) ParallelSafe() bool { return true }

// Analyze implements analyze.Analyzer.
func (a *Settings) Analyze(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	var hits []hit

	for _, rule := range a.db.Settings {
		if !settingApplies(rule, log) {
			continue
		}

		detail := fmt.Sprintf("`%s` is `%s`.", crashlog.SettingKey(rule.Section, rule.Key), rule.Value)
		if rule.Description != "" {
			detail += " " + rule.Description
		}

		hits = append(hits, hit{title: rule.Title, severity: rule.Level(), detail: detail, fix: rule.Fix})
	}

	return resultOf(a.Name(), "Crash Generator Settings", hits), nil
}

func settingApplies(rule rules.SettingRule, log *crashlog.CrashLog) bool {
	value, ok := log.Setting(rule.Section, rule.Key)
	if !ok || !strings.EqualFold(value, rule.Value) {
		return false
	}

	if rule.RequiresXSEPlugin != "" && !log.HasXSEPlugin(rule.RequiresXSEPlugin) {
		return false
	}

	if rule.ForbidsXSEPlugin != "" && log.HasXSEPlugin(rule.ForbidsXSEPlugin) {
		return false
	}

	if rule.RequiresPlugin != "" && !log.HasPlugin(rule.RequiresPlugin) {
		return false
	}

	return true
}
