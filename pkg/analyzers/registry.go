package analyzers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/gamefiles"
	"github.com/Sumatoshi-tech/autoscan/pkg/levenshtein"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// ErrInvalidPattern is returned when an analyzer selection glob is malformed.
var ErrInvalidPattern = errors.New("invalid analyzer pattern")

// Descriptor contains stable analyzer metadata.
type Descriptor struct {
	Name        string
	Description string
	Priority    int
	Parallel    bool
}

// Registry stores analyzers with deterministic ordering and selects them by
// name or glob pattern.
type Registry struct {
	ordered []analyze.Analyzer
	index   map[string]analyze.Analyzer
}

// NewRegistry creates a registry. Duplicate or unnamed analyzers are errors.
func NewRegistry(all ...analyze.Analyzer) (*Registry, error) {
	set, err := analyze.NewSet(all...)
	if err != nil {
		return nil, err
	}

	ordered := set.Ordered()
	index := make(map[string]analyze.Analyzer, len(ordered))

	for _, a := range ordered {
		index[a.Name()] = a
	}

	return &Registry{ordered: ordered, index: index}, nil
}

// BuiltinOptions configures the built-in analyzers.
type BuiltinOptions struct {
	// Rules is the rule database; nil uses the embedded one.
	Rules *rules.DB

	// FCX enables the on-disk file checks.
	FCX bool

	// GameRoot is the game install folder used by file checks.
	GameRoot string

	// INIFolder holds the game INI files used by file checks.
	INIFolder string

	// PluginsFolder holds the plugin files of the load order. Empty falls
	// back to the Data folder under GameRoot.
	PluginsFolder string
}

// pluginsFolder resolves the folder the load order is checked against.
func (o BuiltinOptions) pluginsFolder() string {
	if o.PluginsFolder != "" || o.GameRoot == "" {
		return o.PluginsFolder
	}

	return filepath.Join(o.GameRoot, "Data")
}

// Builtin returns a registry of the built-in analyzers.
func Builtin(opts BuiltinOptions) (*Registry, error) {
	db := opts.Rules
	if db == nil {
		var err error

		db, err = rules.Default()
		if err != nil {
			return nil, err
		}
	}

	all := []analyze.Analyzer{
		NewMainError(db),
		NewSuspects(db),
		NewSettings(db),
		NewPlugins(db),
		NewVersion(db),
		NewRecords(db),
	}

	if opts.FCX {
		all = append(all, NewFCX(db, gamefiles.Open(opts.GameRoot), gamefiles.Open(opts.INIFolder),
			WithPluginsFolder(gamefiles.Open(opts.pluginsFolder()))))
	}

	return NewRegistry(all...)
}

// All returns descriptors for every registered analyzer in priority order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	for i, a := range r.ordered {
		out[i] = Descriptor{
			Name:        a.Name(),
			Description: a.Description(),
			Priority:    a.Priority(),
			Parallel:    a.ParallelSafe(),
		}
	}

	return out
}

// Select returns the analyzers matching the given names or glob patterns,
// or every analyzer when no pattern is given.
func (r *Registry) Select(patterns []string) (*analyze.Set, error) {
	if len(patterns) == 0 {
		return analyze.NewSet(r.ordered...)
	}

	selected := make(map[string]struct{}, len(r.ordered))

	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)

		names, err := r.resolve(pattern)
		if err != nil {
			return nil, err
		}

		for _, n := range names {
			selected[n] = struct{}{}
		}
	}

	keep := make([]analyze.Analyzer, 0, len(selected))

	for _, a := range r.ordered {
		if _, ok := selected[a.Name()]; ok {
			keep = append(keep, a)
		}
	}

	return analyze.NewSet(keep...)
}

func (r *Registry) resolve(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty name", analyze.ErrUnknownAnalyzer)
	}

	if _, ok := r.index[pattern]; ok {
		return []string{pattern}, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}

	var matched []string

	for _, a := range r.ordered {
		if g.Match(a.Name()) {
			matched = append(matched, a.Name())
		}
	}

	if len(matched) == 0 {
		if hint, ok := levenshtein.Closest(pattern, r.names()); ok {
			return nil, fmt.Errorf("%w: %s (did you mean %q?)", analyze.ErrUnknownAnalyzer, pattern, hint)
		}

		return nil, fmt.Errorf("%w: %s", analyze.ErrUnknownAnalyzer, pattern)
	}

	return matched, nil
}

func (r *Registry) names() []string {
	out := make([]string, len(r.ordered))
	for i, a := range r.ordered {
		out[i] = a.Name()
	}

	return out
}
