package gamefiles_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/gamefiles"
)

const customINI = `; user overrides
[Archive]
bInvalidateOlderFiles=1
sResourceDataDirsFinal=
sResourceStartUpArchiveList=STRINGS\

[Display]
iPresentInterval = 0
`

const buffoutTOML = `[Patches]
Achievements = true
MaxStdIO = 2048

[Compatibility]
F4EE = false
`

func testDir() *gamefiles.Dir {
	return gamefiles.FromFS(fstest.MapFS{
		"Fallout4Custom.ini":              {Data: []byte(customINI)},
		"Data/F4SE/Plugins/Buffout4.toml": {Data: []byte(buffoutTOML)},
		"broken.toml":                     {Data: []byte("[[[")},
	})
}

func TestINIValue(t *testing.T) {
	t.Parallel()

	dir := testDir()

	tests := []struct {
		section, key string
		want         string
		found        bool
	}{
		{"Archive", "bInvalidateOlderFiles", "1", true},
		{"archive", "BINVALIDATEOLDERFILES", "1", true},
		{"Archive", "sResourceDataDirsFinal", "", true},
		{"Archive", "sResourceStartUpArchiveList", `STRINGS\`, true},
		{"Display", "iPresentInterval", "0", true},
		{"Display", "missing", "", false},
		{"Nowhere", "x", "", false},
	}

	for _, tt := range tests {
		got, found, err := dir.INIValue("Fallout4Custom.ini", tt.section, tt.key)
		require.NoError(t, err)
		assert.Equal(t, tt.found, found, "%s.%s", tt.section, tt.key)
		assert.Equal(t, tt.want, got, "%s.%s", tt.section, tt.key)
	}

	_, _, err := dir.INIValue("Fallout4Prefs.ini", "Display", "x")
	require.Error(t, err)
}

func TestTOMLValue(t *testing.T) {
	t.Parallel()

	dir := testDir()
	name := "Data/F4SE/Plugins/Buffout4.toml"

	got, found, err := dir.TOMLValue(name, "Patches.MaxStdIO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2048", got)

	got, found, err = dir.TOMLValue(name, "compatibility.f4ee")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "false", got)

	_, found, err = dir.TOMLValue(name, "Patches")
	require.NoError(t, err)
	assert.False(t, found, "tables are not scalars")

	_, found, err = dir.TOMLValue(name, "Patches.MaxStdIO.Deeper")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = dir.TOMLValue("broken.toml", "a")
	require.ErrorIs(t, err, gamefiles.ErrMalformed)
}

func TestExistsAndUnconfigured(t *testing.T) {
	t.Parallel()

	dir := testDir()
	assert.True(t, dir.Exists("Data/F4SE/Plugins/Buffout4.toml"))
	assert.False(t, dir.Exists("f4se_loader.exe"))

	none := gamefiles.Open("")
	assert.False(t, none.Configured())
	assert.False(t, none.Exists("anything"))

	_, _, err := none.INIValue("a.ini", "s", "k")
	require.ErrorIs(t, err, gamefiles.ErrNoRoot)
}

func TestOpen_ReadsFromDisk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Fallout4Prefs.ini"), []byte("[Display]\niPresentInterval=1\n"), 0o600))

	dir := gamefiles.Open(root)
	assert.Equal(t, root, dir.Root())

	got, found, err := dir.INIValue("Fallout4Prefs.ini", "Display", "iPresentInterval")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", got)
}
