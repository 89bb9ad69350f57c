package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseArgsDefaults(t *testing.T) {
	cfg, path, err := parseArgs([]string{"model.glb"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "model.glb", path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseArgsMissingModel(t *testing.T) {
	_, _, err := parseArgs(nil, io.Discard)
	assert.ErrorIs(t, err, errUsage)
}

func TestParseArgsConfigFile(t *testing.T) {
	path := writeConfig(t, `
fps = 24
background = "0,0,0"
ambient = 0.5
cull = false
`)
	cfg, _, err := parseArgs([]string{"-config", path, "model.glb"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.FPS)
	assert.Equal(t, "0,0,0", cfg.Background)
	assert.InDelta(t, 0.5, cfg.Ambient, 1e-9)
	assert.False(t, cfg.Cull)
	// Keys missing from the file keep their defaults.
	assert.InDelta(t, DefaultConfig().Distance, cfg.Distance, 1e-9)
}

func TestParseArgsFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "fps = 24\nlight = 2.0\n")
	cfg, _, err := parseArgs([]string{"-config", path, "-fps", "10", "model.glb"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.FPS)
	assert.InDelta(t, 2.0, cfg.Light, 1e-9)
}

func TestParseArgsBadConfig(t *testing.T) {
	path := writeConfig(t, "fps = \n")
	_, _, err := parseArgs([]string{"-config", path, "model.glb"}, io.Discard)
	assert.Error(t, err)

	_, _, err = parseArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.toml"), "model.glb"}, io.Discard)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackgroundColor(t *testing.T) {
	r, g, b, err := Config{Background: "30,40,50"}.BackgroundColor()
	require.NoError(t, err)
	assert.Equal(t, []uint8{30, 40, 50}, []uint8{r, g, b})

	_, _, _, err = Config{Background: "teal"}.BackgroundColor()
	assert.Error(t, err)
}
