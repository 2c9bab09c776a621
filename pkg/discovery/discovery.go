// Package discovery expands command line inputs into crash log paths.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Sumatoshi-tech/autoscan/pkg/reportwriter"
)

// DefaultPattern matches crash logs written by Buffout 4.
const DefaultPattern = "crash-*.log"

// ErrInvalidPattern is returned when a log pattern does not compile.
var ErrInvalidPattern = errors.New("invalid log pattern")

// Options configures discovery.
type Options struct {
	// Patterns are matched against file base names. Defaults to DefaultPattern.
	Patterns []string

	// Recursive descends into subdirectories.
	Recursive bool

	// SkipDirs are glob patterns of directory names that are never entered.
	SkipDirs []string
}

// Finder matches crash logs in directories.
type Finder struct {
	patterns []glob.Glob
	skipDirs []glob.Glob
	opts     Options
}

// New compiles the configured patterns.
func New(opts Options) (*Finder, error) {
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{DefaultPattern}
	}

	patterns, err := compileAll(opts.Patterns)
	if err != nil {
		return nil, err
	}

	skipDirs, err := compileAll(opts.SkipDirs)
	if err != nil {
		return nil, err
	}

	return &Finder{patterns: patterns, skipDirs: skipDirs, opts: opts}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))

	for _, p := range patterns {
		// Case-insensitive matching: Windows file names carry arbitrary case.
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}

		out = append(out, g)
	}

	return out, nil
}

// Match reports whether a file base name is a crash log and not a generated report.
func (f *Finder) Match(name string) bool {
	if reportwriter.IsReport(name) {
		return false
	}

	return matchAny(f.patterns, strings.ToLower(name))
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}

	return false
}

// Find expands inputs. Files are returned as given, even when they do not
// match the patterns or do not exist, so the scan can report them. Directories
// contribute their matching files in lexical order.
func (f *Finder) Find(ctx context.Context, inputs []string) ([]string, error) {
	var out []string

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			out = append(out, in)

			continue
		}

		found, err := f.walk(ctx, in)
		if err != nil {
			return nil, err
		}

		out = append(out, found...)
	}

	return out, nil
}

func (f *Finder) walk(ctx context.Context, root string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path == root {
				return nil
			}

			if !f.opts.Recursive || matchAny(f.skipDirs, strings.ToLower(d.Name())) {
				return filepath.SkipDir
			}

			return nil
		}

		if d.Type().IsRegular() && f.Match(d.Name()) {
			found = append(found, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return found, nil
}
