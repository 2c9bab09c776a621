// Package gamefiles reads game and crash generator settings files from disk
// for file check mode.
package gamefiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

// Read errors.
var (
	ErrNoRoot    = errors.New("settings folder not configured")
	ErrMalformed = errors.New("malformed settings file")
)

// Dir reads settings files relative to one folder.
type Dir struct {
	fsys fs.FS
	root string
}

// Open returns a Dir rooted at path. An empty path yields a Dir whose reads fail with ErrNoRoot.
func Open(path string) *Dir {
	if path == "" {
		return &Dir{}
	}

	return &Dir{fsys: os.DirFS(path), root: path}
}

// FromFS wraps an existing file system, mainly for tests.
func FromFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys, root: "."}
}

// Root returns the folder the Dir reads from.
func (d *Dir) Root() string { return d.root }

// Configured reports whether the Dir has a root folder.
func (d *Dir) Configured() bool { return d.fsys != nil }

// Exists reports whether name exists under the root.
func (d *Dir) Exists(name string) bool {
	if d.fsys == nil {
		return false
	}

	_, err := fs.Stat(d.fsys, name)

	return err == nil
}

func (d *Dir) read(name string) ([]byte, error) {
	if d.fsys == nil {
		return nil, ErrNoRoot
	}

	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// INIValue looks up section/key in an INI file. Section and key names are
// case-insensitive, as the game treats them. A missing file is an error; a
// missing key is reported through the bool.
func (d *Dir) INIValue(name, section, key string) (string, bool, error) {
	data, err := d.read(name)
	if err != nil {
		return "", false, err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		AllowBooleanKeys:        true,
		IgnoreContinuation:      true,
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}

	sec, err := cfg.GetSection(section)
	if err != nil {
		return "", false, nil //nolint:nilerr // a missing section is a missing key.
	}

	if !sec.HasKey(key) {
		return "", false, nil
	}

	return strings.TrimSpace(sec.Key(key).String()), true, nil
}

// TOMLValue looks up a dotted key such as "Patches.MaxStdIO" in a TOML file
// and formats scalar values as strings.
func (d *Dir) TOMLValue(name, dottedKey string) (string, bool, error) {
	data, err := d.read(name)
	if err != nil {
		return "", false, err
	}

	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}

	var cur any = doc

	for _, part := range strings.Split(dottedKey, ".") {
		table, ok := cur.(map[string]any)
		if !ok {
			return "", false, nil
		}

		cur, ok = lookupFold(table, part)
		if !ok {
			return "", false, nil
		}
	}

	value, ok := formatScalar(cur)

	return value, ok, nil
}

func lookupFold(table map[string]any, key string) (any, bool) {
	if v, ok := table[key]; ok {
		return v, true
	}

	for k, v := range table {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}

	return nil, false
}

func formatScalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	default:
		return "", false
	}
}
