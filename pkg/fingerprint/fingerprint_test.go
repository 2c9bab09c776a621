package fingerprint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// fromDisk fingerprints the file at path the way the scan pipeline does.
func fromDisk(t *testing.T, path string, mode fingerprint.Mode) fingerprint.Fingerprint {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return fingerprint.FromContent(info, data, mode)
}

func TestFromContent_StatMode(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "a.log", "hello")

	fp := fromDisk(t, path, fingerprint.ModeStat)

	assert.Equal(t, int64(5), fp.Size)
	assert.NotZero(t, fp.ModTime)
	assert.Empty(t, fp.Hash)
	assert.False(t, fp.IsZero())
}

func TestFromContent_ContentModeDetectsSameSizeEdit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.log", "hello")

	before := fromDisk(t, path, fingerprint.ModeContent)

	require.NoError(t, os.WriteFile(path, []byte("jello"), 0o600))

	// Pin mtime so only the hash can tell the difference.
	mtime := time.Unix(0, before.ModTime)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	after := fromDisk(t, path, fingerprint.ModeContent)

	assert.Equal(t, before.Size, after.Size)
	assert.Equal(t, before.ModTime, after.ModTime)
	assert.NotEqual(t, before.Hash, after.Hash)
	assert.NotEqual(t, before, after)
	assert.False(t, after.NewerThan(before))
}

func TestFingerprint_NewerThan(t *testing.T) {
	t.Parallel()

	older := fingerprint.Fingerprint{Size: 5, ModTime: 100}
	newer := fingerprint.Fingerprint{Size: 4, ModTime: 200}

	assert.True(t, newer.NewerThan(older))
	assert.False(t, older.NewerThan(newer))
	assert.False(t, older.NewerThan(older))
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := fingerprint.NormalizePath(filepath.Join(dir, "x", "..", "crash.log"))
	b := fingerprint.NormalizePath(filepath.Join(dir, ".", "crash.log"))

	assert.Equal(t, a, b)
	assert.True(t, filepath.IsAbs(a))
}

func TestFingerprint_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "3:7", fingerprint.Fingerprint{Size: 3, ModTime: 7}.String())
	assert.Equal(t, "3:7:ab", fingerprint.Fingerprint{Size: 3, ModTime: 7, Hash: "ab"}.String())

	id := fingerprint.FileID{Path: "/x", Fingerprint: fingerprint.Fingerprint{Size: 1, ModTime: 2}}
	assert.Equal(t, "/x@1:2", id.String())
}
