package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/batch"
	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type elevationRecord struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Result    *struct {
		AngleDegrees float64 `json:"angle_degrees"`
		HeightSource string  `json:"height_source"`
	} `json:"result"`
	Error string `json:"error"`
}

func decodeRecords(t *testing.T, data []byte) []elevationRecord {
	t.Helper()
	var recs []elevationRecord
	require.NoError(t, json.Unmarshal(data, &recs))
	return recs
}

func TestElevationCommand_JSON(t *testing.T) {
	out, _, err := runCLI(t, "elevation", testutil.GetScenePath(t, "sun45"), "--format", "json")
	require.NoError(t, err)

	recs := decodeRecords(t, []byte(out))
	require.Len(t, recs, 1)
	assert.Equal(t, "sun45", recs[0].Name)
	assert.True(t, recs[0].Available)
	require.NotNil(t, recs[0].Result)
	assert.InDelta(t, 45, recs[0].Result.AngleDegrees, 1e-9)
	assert.Equal(t, "pixel", recs[0].Result.HeightSource)
}

func TestElevationCommand_TextAndHeightOverride(t *testing.T) {
	out, _, err := runCLI(t, "elevation", testutil.GetScenePath(t, "sun45"), "--height-override", "57.735026918962575")
	require.NoError(t, err)
	assert.Contains(t, out, "sun45")
	assert.Contains(t, out, "angle: 30.00°")
	assert.Contains(t, out, "actual")
}

func TestElevationCommand_OutputFileAndOverlays(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "results.json")
	overlays := filepath.Join(dir, "overlays")

	stdout, stderr, err := runCLI(t, "elevation", filepath.Join(testutil.GetScenesDir(t), "valid"),
		"--format", "json", "--output", outFile, "--overlay-dir", overlays, "--stats", "--workers", "2")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Processing Statistics:")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	recs := decodeRecords(t, data)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.True(t, testutil.FileExists(filepath.Join(overlays, r.Name+"_overlay.png")), r.Name)
	}
}

func TestElevationCommand_InvalidScene(t *testing.T) {
	bad := filepath.Join(testutil.GetScenesDir(t), "invalid", "bad_role.geojson")
	good := testutil.GetScenePath(t, "sun45")

	_, _, err := runCLI(t, "elevation", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_role.geojson")

	out, _, err := runCLI(t, "elevation", good, bad, "--continue-on-error", "--format", "json")
	require.NoError(t, err)
	recs := decodeRecords(t, []byte(out))
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Available)
	assert.False(t, recs[1].Available)
	assert.NotEmpty(t, recs[1].Error)
}

func TestElevationCommand_Errors(t *testing.T) {
	scene := testutil.GetScenePath(t, "sun45")

	_, _, err := runCLI(t, "elevation")
	assert.ErrorContains(t, err, "requires at least 1 arg")

	_, _, err = runCLI(t, "elevation", t.TempDir())
	assert.ErrorIs(t, err, batch.ErrNoScenes)

	_, _, err = runCLI(t, "elevation", scene, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, _, err = runCLI(t, "elevation", scene, "--height-override", "-1")
	assert.ErrorContains(t, err, "invalid --height-override")

	_, _, err = runCLI(t, "elevation", "/does/not/exist.geojson")
	assert.ErrorContains(t, err, "cannot access")
}

func TestConfigToBatchConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 7
	cfg.Batch.Recursive = true
	cfg.Output.OverlayDir = "from-config"

	cmd := newElevationCmd(&rootOptions{})
	require.NoError(t, cmd.Flags().Parse([]string{"--overlay-dir", "from-flag", "--quiet", "--include", "*.json"}))

	bc, err := configToBatchConfig(&cfg, cmd)
	require.NoError(t, err)
	assert.Equal(t, 7, bc.Workers, "unchanged flags keep the config value")
	assert.True(t, bc.Recursive)
	assert.Equal(t, "from-flag", bc.OverlayDir)
	assert.False(t, bc.Explicit)
	assert.Equal(t, []string{"*.json"}, bc.IncludePatterns)
	assert.Nil(t, bc.Progress)

	cfg.Output.GroundColor = "green"
	_, err = configToBatchConfig(&cfg, cmd)
	assert.Error(t, err)
}
