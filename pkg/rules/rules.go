// Package rules holds the crash pattern database the built-in analyzers
// match against. The database ships embedded as YAML and is validated
// against a JSON schema before it is decoded.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
)

//go:embed rules.yaml
var defaultRules []byte

//go:embed rules.schema.json
var schemaJSON []byte

// ErrInvalid is returned when rule data does not satisfy the schema or cannot be compiled.
var ErrInvalid = errors.New("invalid rule database")

// Finding carries the presentation fields shared by every rule.
type Finding struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	Fix         string `yaml:"fix"`

	level analyze.Severity
}

// Level returns the parsed severity. Rules without one default to warning.
func (f Finding) Level() analyze.Severity { return f.level }

func (f *Finding) compile() error {
	if f.Severity == "" {
		f.level = analyze.SeverityWarning

		return nil
	}

	level, err := analyze.ParseSeverity(f.Severity)
	if err != nil {
		return fmt.Errorf("rule %q: %w", f.Title, err)
	}

	f.level = level

	return nil
}

// Generator describes the crash generator the rules target.
type Generator struct {
	Name          string `yaml:"name"`
	LatestVersion string `yaml:"latest_version"`
	DownloadURL   string `yaml:"download_url"`
}

// PluginLimits are the engine's load order capacities.
type PluginLimits struct {
	Full        int `yaml:"full"`
	Light       int `yaml:"light"`
	FullWarning int `yaml:"full_warning"`
}

// MainError classifies the "Unhandled exception" line by substring.
type MainError struct {
	Finding `yaml:",inline"`

	Pattern string `yaml:"pattern"`
}

// Matches reports whether line contains the pattern (case-insensitive).
func (m MainError) Matches(line string) bool {
	return strings.Contains(strings.ToLower(line), strings.ToLower(m.Pattern))
}

// Suspect is a crash signature matched against the main error and call stack.
type Suspect struct {
	Finding `yaml:",inline"`

	MainError []string `yaml:"main_error"`
	CallStack []string `yaml:"call_stack"`

	stack []*regexp.Regexp
}

// MatchStack returns the first call stack line matched by any signature.
func (s Suspect) MatchStack(lines []string) (string, bool) {
	for _, line := range lines {
		for _, re := range s.stack {
			if re.MatchString(line) {
				return strings.TrimSpace(line), true
			}
		}
	}

	return "", false
}

// MatchMainError reports whether the main error contains any listed fragment.
func (s Suspect) MatchMainError(mainError string) bool {
	lower := strings.ToLower(mainError)

	for _, fragment := range s.MainError {
		if strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}

	return false
}

// PluginConflict flags plugins that are known to break each other.
type PluginConflict struct {
	Finding `yaml:",inline"`

	Plugins []string `yaml:"plugins"`
}

// SettingRule flags a crash generator setting value, optionally only when a
// script extender plugin is (or is not) installed.
type SettingRule struct {
	Finding `yaml:",inline"`

	Section           string `yaml:"section"`
	Key               string `yaml:"key"`
	Value             string `yaml:"value"`
	RequiresXSEPlugin string `yaml:"requires_xse_plugin"`
	ForbidsXSEPlugin  string `yaml:"forbids_xse_plugin"`
	RequiresPlugin    string `yaml:"requires_plugin"`
}

// Records configures named record extraction from the call stack.
type Records struct {
	Markers   []string `yaml:"markers"`
	Ignore    []string `yaml:"ignore"`
	MaxListed int      `yaml:"max_listed"`
}

// FileCheck compares one setting in a game settings file against the expected value.
type FileCheck struct {
	Finding `yaml:",inline"`

	File         string `yaml:"file"`
	Section      string `yaml:"section"`
	Key          string `yaml:"key"`
	Expect       string `yaml:"expect"`
	RequiresFile string `yaml:"requires_file"`
}

// RequiredFile is a file that must exist under the game root.
type RequiredFile struct {
	Finding `yaml:",inline"`

	Path string `yaml:"path"`
}

// FCX groups the on-disk checks run in file check mode.
type FCX struct {
	INI           []FileCheck    `yaml:"ini"`
	TOML          []FileCheck    `yaml:"toml"`
	RequiredFiles []RequiredFile `yaml:"required_files"`
}

// DB is a compiled rule database. It is read-only after Load returns.
type DB struct {
	Version         int              `yaml:"version"`
	Generator       Generator        `yaml:"generator"`
	PluginLimits    PluginLimits     `yaml:"plugin_limits"`
	MainErrors      []MainError      `yaml:"main_errors"`
	Suspects        []Suspect        `yaml:"suspects"`
	PluginConflicts []PluginConflict `yaml:"plugin_conflicts"`
	Settings        []SettingRule    `yaml:"settings"`
	Records         Records          `yaml:"records"`
	Noise           []string         `yaml:"noise"`
	FCX             FCX              `yaml:"fcx"`
}

// Load validates data against the schema and decodes it.
func Load(data []byte) (*DB, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var db DB
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalid, err)
	}

	if err := db.compile(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return &db, nil
}

var (
	defaultOnce sync.Once
	defaultDB   *DB
	defaultErr  error
)

// Default returns the embedded rule database, loading it once.
func Default() (*DB, error) {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = Load(defaultRules)
	})

	return defaultDB, defaultErr
}

// MustDefault is Default that panics when the embedded database is broken.
func MustDefault() *DB {
	db, err := Default()
	if err != nil {
		panic(err)
	}

	return db
}

// Validate checks YAML rule data against the embedded JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse yaml: %w", ErrInvalid, err)
	}

	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalid)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: schema: %w", ErrInvalid, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func (db *DB) compile() error {
	for i := range db.MainErrors {
		if err := db.MainErrors[i].compile(); err != nil {
			return err
		}
	}

	for i := range db.Suspects {
		s := &db.Suspects[i]
		if err := s.compile(); err != nil {
			return err
		}

		for _, expr := range s.CallStack {
			re, err := regexp.Compile(expr)
			if err != nil {
				return fmt.Errorf("suspect %s: %w", s.ID, err)
			}

			s.stack = append(s.stack, re)
		}
	}

	for i := range db.PluginConflicts {
		if err := db.PluginConflicts[i].compile(); err != nil {
			return err
		}
	}

	for i := range db.Settings {
		if err := db.Settings[i].compile(); err != nil {
			return err
		}
	}

	for i := range db.FCX.INI {
		if err := db.FCX.INI[i].compile(); err != nil {
			return err
		}
	}

	for i := range db.FCX.TOML {
		if err := db.FCX.TOML[i].compile(); err != nil {
			return err
		}
	}

	for i := range db.FCX.RequiredFiles {
		if err := db.FCX.RequiredFiles[i].compile(); err != nil {
			return err
		}
	}

	return nil
}
