package analyzers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/gamefiles"
	"github.com/Sumatoshi-tech/autoscan/pkg/retry"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// FCX inspects game settings files on disk. It reads the filesystem, so it
// runs in the sequential group.
type FCX struct {
	db        *rules.DB
	gameRoot  *gamefiles.Dir
	iniFolder *gamefiles.Dir
	plugins   *gamefiles.Dir
}

// maxMissingListed caps the plugin names spelled out in one finding.
const maxMissingListed = 10

// FCXOption configures optional FCX folders.
type FCXOption func(*FCX)

// WithPluginsFolder checks that every plugin in the crash log's load order
// exists in dir.
func WithPluginsFolder(dir *gamefiles.Dir) FCXOption {
	return func(a *FCX) {
		if dir != nil {
			a.plugins = dir
		}
	}
}

// NewFCX creates the file check analyzer. gameRoot holds the game install
// and the crash generator TOML; iniFolder holds the game INI files.
func NewFCX(db *rules.DB, gameRoot, iniFolder *gamefiles.Dir, opts ...FCXOption) *FCX {
	if gameRoot == nil {
		gameRoot = gamefiles.Open("")
	}

	if iniFolder == nil {
		iniFolder = gamefiles.Open("")
	}

	a := &FCX{db: db, gameRoot: gameRoot, iniFolder: iniFolder, plugins: gamefiles.Open("")}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Name implements analyze.Analyzer.
func (a *FCX) Name() string { return "fcx" }

// Description implements analyze.Analyzer.
func (a *FCX) Description() string { return "Checks game settings, crash generator settings and plugin files on disk." }

// Priority implements analyze.Analyzer.
func (a *FCX) Priority() int { return PriorityFCX }

// ParallelSafe implements analyze.Analyzer.
func (a *FCX) ParallelSafe() bool { return false }

// Analyze implements analyze.Analyzer. Missing files are skipped, malformed
// files are reported, and other read failures are returned as transient.
func (a *FCX) Analyze(ctx context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	const title = "Game Files"

	if !a.gameRoot.Configured() && !a.plugins.Configured() {
		return resultOf(a.Name(), title, []hit{{
			title:    "File Checks Skipped",
			severity: analyze.SeverityInfo,
			detail:   "Set game.root_path to enable checks of game files.",
		}}), nil
	}

	hits := a.missingPlugins(log)

	if !a.gameRoot.Configured() {
		return resultOf(a.Name(), title, hits), nil
	}

	settings, err := a.settingsHits(ctx)
	if err != nil {
		return analyze.Result{}, err
	}

	return resultOf(a.Name(), title, append(hits, settings...)), nil
}

// missingPlugins reports load order entries with no file in the plugins folder.
func (a *FCX) missingPlugins(log *crashlog.CrashLog) []hit {
	if !a.plugins.Configured() || len(log.Plugins) == 0 {
		return nil
	}

	var missing []string

	for name := range log.Plugins {
		if !a.plugins.Exists(name) {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	slices.Sort(missing)

	listed := missing
	if len(listed) > maxMissingListed {
		listed = listed[:maxMissingListed]
	}

	detail := fmt.Sprintf("%d plugin(s) in the load order are not in %s: `%s`",
		len(missing), a.plugins.Root(), strings.Join(listed, "`, `"))
	if extra := len(missing) - len(listed); extra > 0 {
		detail += fmt.Sprintf(" and %d more", extra)
	}

	return []hit{{
		title:    "Plugins Missing On Disk",
		severity: analyze.SeverityWarning,
		detail:   detail + ".",
		fix:      "Reinstall the mods that provide these plugins, or disable them in the mod manager.",
	}}
}

func (a *FCX) settingsHits(ctx context.Context) ([]hit, error) {
	var hits []hit

	for _, req := range a.db.FCX.RequiredFiles {
		if !a.gameRoot.Exists(req.Path) {
			hits = append(hits, hit{title: req.Title, severity: req.Level(), detail: "`" + req.Path + "` not found.", fix: req.Fix})
		}
	}

	for _, check := range a.db.FCX.INI {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, found, err := a.iniFolder.INIValue(check.File, check.Section, check.Key)

		h, err := evaluate(check, value, found, err)
		if err != nil {
			return nil, err
		}

		hits = append(hits, h...)
	}

	for _, check := range a.db.FCX.TOML {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if check.RequiresFile != "" && !a.gameRoot.Exists(check.RequiresFile) {
			continue
		}

		value, found, err := a.gameRoot.TOMLValue(check.File, check.Key)

		h, err := evaluate(check, value, found, err)
		if err != nil {
			return nil, err
		}

		hits = append(hits, h...)
	}

	return hits, nil
}

func evaluate(check rules.FileCheck, value string, found bool, readErr error) ([]hit, error) {
	switch {
	case errors.Is(readErr, fs.ErrNotExist), errors.Is(readErr, gamefiles.ErrNoRoot):
		return nil, nil
	case errors.Is(readErr, gamefiles.ErrMalformed):
		return []hit{{
			title:    "Unreadable " + check.File,
			severity: analyze.SeverityWarning,
			detail:   readErr.Error(),
			fix:      "Fix the syntax error or delete the file so the game regenerates it.",
		}}, nil
	case readErr != nil:
		return nil, retry.Transient(fmt.Errorf("check %s: %w", check.File, readErr))
	case !found || value == check.Expect:
		return nil, nil
	}

	key := check.Key
	if check.Section != "" {
		key = check.Section + "." + check.Key
	}

	detail := fmt.Sprintf("`%s` in %s is `%s`, expected `%s`.", key, check.File, value, check.Expect)
	if check.Description != "" {
		detail += " " + check.Description
	}

	return []hit{{title: check.Title, severity: check.Level(), detail: detail, fix: check.Fix}}, nil
}
