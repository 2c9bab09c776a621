package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/discovery"
)

func touch(t *testing.T, parts ...string) string {
	t.Helper()

	path := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	return path
}

func TestFinder_Match(t *testing.T) {
	t.Parallel()

	f, err := discovery.New(discovery.Options{})
	require.NoError(t, err)

	assert.True(t, f.Match("crash-2024-01-15-12-30-45.log"))
	assert.True(t, f.Match("Crash-2024.LOG"))
	assert.False(t, f.Match("crash-2024-01-15-12-30-45-AUTOSCAN.md"))
	assert.False(t, f.Match("notes.txt"))
}

func TestFinder_FindDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	b := touch(t, root, "crash-b.log")
	a := touch(t, root, "crash-a.log")
	touch(t, root, "crash-a-AUTOSCAN.md")
	touch(t, root, "readme.txt")
	nested := touch(t, root, "old", "crash-c.log")
	touch(t, root, "backup", "crash-d.log")

	flat, err := discovery.New(discovery.Options{})
	require.NoError(t, err)

	got, err := flat.Find(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)

	deep, err := discovery.New(discovery.Options{Recursive: true, SkipDirs: []string{"backup"}})
	require.NoError(t, err)

	got, err = deep.Find(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, got)
}

func TestFinder_FilesPassThrough(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	explicit := touch(t, root, "custom.txt")
	missing := filepath.Join(root, "gone.log")

	f, err := discovery.New(discovery.Options{Patterns: []string{"*.log", "crash-*.txt"}})
	require.NoError(t, err)

	got, err := f.Find(context.Background(), []string{explicit, missing})
	require.NoError(t, err)
	assert.Equal(t, []string{explicit, missing}, got)
}

func TestFinder_Errors(t *testing.T) {
	t.Parallel()

	_, err := discovery.New(discovery.Options{Patterns: []string{"["}})
	require.ErrorIs(t, err, discovery.ErrInvalidPattern)

	f, err := discovery.New(discovery.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Find(ctx, []string{t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}
