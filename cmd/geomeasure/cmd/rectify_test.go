package cmd

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectifyCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "board.png")
	testutil.SaveImage(t, testutil.Checkerboard(80, 40, 10, color.White, color.Black), input)
	output := filepath.Join(dir, "out", "rect.png")
	debugDir := filepath.Join(dir, "debug")

	out, _, err := runCLI(t, "rectify", input,
		"--quad", "0,0 80,0 80,40 0,40", "--height", "20", "--output", output, "--debug-dir", debugDir)
	require.NoError(t, err)
	assert.Contains(t, out, "(40x20)")

	img := testutil.LoadImage(t, output)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
	assert.True(t, testutil.FileExists(filepath.Join(debugDir, "board_quad.png")))
}

func TestRectifyCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "g.png")
	testutil.SaveImage(t, testutil.Gradient(20, 20), input)
	output := filepath.Join(dir, "o.png")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing quad", []string{input, "--output", output}, `required flag(s) "quad" not set`},
		{"short quad", []string{input, "--quad", "0,0 1,0 1,1", "--output", output}, "quad needs 4 points, got 3"},
		{"bad height", []string{input, "--quad", "0,0 19,0 19,19 0,19", "--height", "0", "--output", output}, "invalid --height"},
		{"missing image", []string{filepath.Join(dir, "nope.png"), "--quad", "0,0 19,0 19,19 0,19", "--output", output}, "nope.png"},
		{"degenerate quad", []string{input, "--quad", "0,0 0,0 0,0 0,0", "--output", output}, "rectify"},
		{"oversized output", []string{input, "--quad", "0,0 1e9,0 1e9,10 0,10", "--output", output, "--debug-dir", dir}, "rectified image too large"},
		{"bad output format", []string{input, "--quad", "0,0 19,0 19,19 0,19", "--output", filepath.Join(dir, "o.xyz")}, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"rectify"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeMatches(t *testing.T, path string, dx float64) {
	t.Helper()
	var matches []homography.Match
	for _, p := range [][2]float64{{2, 3}, {30, 4}, {28, 25}, {5, 27}, {15, 15}} {
		matches = append(matches, homography.Match{
			Src: geom.Pt(p[0], p[1]),
			Dst: geom.Pt(p[0]+dx, p[1]),
		})
	}
	data, err := json.Marshal(matches)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestStitchCommand(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.png")
	next := filepath.Join(dir, "next.png")
	testutil.SaveImage(t, testutil.Checkerboard(40, 30, 5, color.White, color.Black), base)
	testutil.SaveImage(t, testutil.Gradient(40, 30), next)
	matches := filepath.Join(dir, "matches.json")
	writeMatches(t, matches, 25)
	output := filepath.Join(dir, "pano.png")

	out, _, err := runCLI(t, "stitch", base, next, "--matches", matches, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "(65x30, offset 0,0")

	img := testutil.LoadImage(t, output)
	assert.Equal(t, 65, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestStitchCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	testutil.SaveImage(t, testutil.Gradient(10, 10), img)
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o600))
	few := filepath.Join(dir, "few.json")
	require.NoError(t, os.WriteFile(few, []byte(`[{"src":{"x":0,"y":0},"dst":{"x":1,"y":1}}]`), 0o600))

	_, _, err := runCLI(t, "stitch", img, "--matches", empty, "--output", "x.png")
	assert.ErrorContains(t, err, "accepts 2 arg(s)")

	_, _, err = runCLI(t, "stitch", img, img, "--matches", empty, "--output", "x.png")
	assert.ErrorIs(t, err, errNoMatches)

	_, _, err = runCLI(t, "stitch", img, img, "--matches", few, "--output", filepath.Join(dir, "x.png"))
	assert.ErrorIs(t, err, homography.ErrInsufficientPoints)

	_, _, err = runCLI(t, "stitch", img, img, "--matches", filepath.Join(dir, "missing.json"), "--output", "x.png")
	assert.ErrorContains(t, err, "failed to read matches")
}

func TestLoadMatches_YAML(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "m.yaml", []byte(`
- src: {x: 1, y: 2}
  dst: {x: 3, y: 4}
- src: {x: 5, y: 6}
  dst: {x: 7, y: 8}
`))
	matches, err := loadMatches(path)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 7, matches[1].Dst.X, 0)
	assert.InDelta(t, 2, matches[0].Src.Y, 0)

	bad := testutil.WriteFile(t, t.TempDir(), "m.json", []byte(`{"not":"a list"}`))
	_, err = loadMatches(bad)
	assert.ErrorContains(t, err, "failed to parse matches")
}
