// Package codestyle_test enforces repository layout conventions that
// golangci-lint cannot express.
package codestyle_test

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"
)

func projectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (no go.mod found)")
		}

		dir = parent
	}
}

// skipDir excludes directories the go tool ignores as well as fixtures.
func skipDir(name string) bool {
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return true
	}

	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	default:
		return false
	}
}

func isGenerated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "package ") {
			return false
		}

		if strings.HasPrefix(line, "// Code generated") && strings.HasSuffix(line, "DO NOT EDIT.") {
			return true
		}
	}

	return false
}

func isGoSource(path string) bool {
	return strings.HasSuffix(path, ".go") &&
		!strings.HasSuffix(path, "_test.go") &&
		!isGenerated(path)
}

// walkGoFiles calls fn for every non-test, non-generated Go source file.
func walkGoFiles(t *testing.T, root string, fn func(rel string, f *ast.File)) {
	t.Helper()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !isGoSource(path) {
			return nil
		}

		parsed, parseErr := parser.ParseFile(token.NewFileSet(), path, nil, parser.SkipObjectResolution)
		if parseErr != nil {
			return fmt.Errorf("parsing Go file %s: %w", path, parseErr)
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, relErr)
		}

		fn(rel, parsed)

		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

// typeSpecs returns the type declarations of f.
func typeSpecs(f *ast.File) []*ast.TypeSpec {
	var out []*ast.TypeSpec

	for _, decl := range f.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			if ts, isType := spec.(*ast.TypeSpec); isType {
				out = append(out, ts)
			}
		}
	}

	return out
}

// ---------- Banned filenames ----------.

// bannedFilenames maps grab-bag basenames to the reason they are rejected.
var bannedFilenames = map[string]string{
	"types.go":     "types belong next to the code that uses them",
	"utils.go":     "grab-bag file with no domain",
	"helpers.go":   "grab-bag file with no domain",
	"common.go":    "if everything is common, nothing is",
	"constants.go": "constants live where they are used",
	"errors.go":    "sentinel errors live next to the function returning them",
}

func TestNoBannedFilenames(t *testing.T) {
	t.Parallel()

	root := projectRoot(t)

	var violations []string

	walkGoFiles(t, root, func(rel string, _ *ast.File) {
		if reason, banned := bannedFilenames[filepath.Base(rel)]; banned {
			violations = append(violations, fmt.Sprintf("%s: %s", rel, reason))
		}
	})

	if len(violations) > 0 {
		t.Errorf("found %d banned filename(s):\n%s", len(violations), strings.Join(violations, "\n"))
	}
}

// ---------- Interface size ----------.

const maxInterfaceMethods = 5

// allowedFatInterfaces exceed maxInterfaceMethods on purpose.
var allowedFatInterfaces = map[string]bool{
	"Recorder": true, // one hook per pipeline stage; implementations are nil-safe metric sinks.
}

func countMethods(iface *ast.InterfaceType) int {
	count := 0

	for _, method := range iface.Methods.List {
		if _, ok := method.Type.(*ast.FuncType); ok {
			count++
		}
	}

	return count
}

func TestNoFatInterfaces(t *testing.T) {
	t.Parallel()

	root := projectRoot(t)

	var violations []string

	walkGoFiles(t, root, func(rel string, f *ast.File) {
		for _, ts := range typeSpecs(f) {
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok || allowedFatInterfaces[ts.Name.Name] {
				continue
			}

			if n := countMethods(iface); n > maxInterfaceMethods {
				violations = append(violations, fmt.Sprintf(
					"%s: interface %s has %d methods (max %d)", rel, ts.Name.Name, n, maxInterfaceMethods))
			}
		}
	})

	if len(violations) > 0 {
		t.Errorf("found %d fat interface(s):\n%s", len(violations), strings.Join(violations, "\n"))
	}
}

// ---------- Package naming ----------.

func TestNoGrabBagPackages(t *testing.T) {
	t.Parallel()

	root := projectRoot(t)
	banned := map[string]bool{"util": true, "utils": true, "misc": true, "shared": true, "base": true, "common": true}

	var violations []string

	walkGoFiles(t, root, func(rel string, f *ast.File) {
		if banned[f.Name.Name] {
			violations = append(violations, fmt.Sprintf("%s: package %q", rel, f.Name.Name))
		}
	})

	if len(violations) > 0 {
		t.Errorf("found %d grab-bag package file(s):\n%s", len(violations), strings.Join(violations, "\n"))
	}
}

// ---------- Stuttering exports ----------.

// stutters reports whether exportedName repeats pkgName followed by a word
// boundary. batch.BatchOption stutters, analyze.Analyzer does not.
func stutters(pkgName, exportedName string) (string, bool) {
	titled := strings.ToUpper(pkgName[:1]) + pkgName[1:]

	rest, ok := strings.CutPrefix(exportedName, titled)
	if !ok || rest == "" {
		return "", false
	}

	first := rune(rest[0])
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return "", false
	}

	return rest, true
}

func TestStutters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pkg, name, rest string
		want            bool
	}{
		{"batch", "BatchOption", "Option", true},
		{"cache", "Cache2", "2", true},
		{"analyze", "Analyzer", "", false},
		{"config", "Config", "", false},
		{"scan", "Result", "", false},
	}

	for _, tt := range tests {
		rest, got := stutters(tt.pkg, tt.name)
		if got != tt.want || rest != tt.rest {
			t.Errorf("stutters(%q, %q) = %q, %v; want %q, %v", tt.pkg, tt.name, rest, got, tt.rest, tt.want)
		}
	}
}

func TestNoStutteringExports(t *testing.T) {
	t.Parallel()

	root := projectRoot(t)

	var violations []string

	walkGoFiles(t, root, func(rel string, f *ast.File) {
		pkgName := strings.ToLower(f.Name.Name)

		for _, ts := range typeSpecs(f) {
			name := ts.Name.Name
			if !ast.IsExported(name) {
				continue
			}

			if trimmed, isStutter := stutters(pkgName, name); isStutter {
				violations = append(violations, fmt.Sprintf(
					"%s: %s.%s stutters, rename to %s.%s", rel, f.Name.Name, name, f.Name.Name, trimmed))
			}
		}
	})

	if len(violations) > 0 {
		t.Errorf("found %d stuttering export(s):\n%s", len(violations), strings.Join(violations, "\n"))
	}
}
