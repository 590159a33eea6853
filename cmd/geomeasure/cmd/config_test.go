package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "geomeasure.yaml")

	out, _, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration to "+path)

	_, _, err = runCLI(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = runCLI(t, "config", "init", path, "--force")
	require.NoError(t, err)

	out, stderr, err := runCLI(t, "--config", path, "config", "show", "--info")
	require.NoError(t, err)
	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, config.DefaultConfig(), shown)
	assert.Contains(t, stderr, "Configuration file used: "+path)

	out, _, err = runCLI(t, "--config", path, "config", "show", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, config.DefaultConfig(), shown)
}

func TestConfigShow_InvalidConfigStillShown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o600))

	out, stderr, err := runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 0")
	assert.Contains(t, stderr, "Warning: invalid server port")

	// other commands refuse to run with it
	_, _, err = runCLI(t, "--config", path, "version")
	assert.ErrorContains(t, err, "configuration validation failed")
}

func TestConfigFileOverridesApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: json\n"), 0o600))

	out, _, err := runCLI(t, "--config", path, "elevation", testutil.GetScenePath(t, "sun45"))
	require.NoError(t, err)
	recs := decodeRecords(t, []byte(out))
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Available)
}

func TestConfigShow_BadFormat(t *testing.T) {
	_, _, err := runCLI(t, "config", "show", "--format", "toml")
	assert.ErrorContains(t, err, "unsupported output format")
}
