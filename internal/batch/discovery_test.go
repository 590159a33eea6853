package batch

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"a.geojson", "b.json", "notes.txt", "nested/c.geojson", "nested/deeper/d.json"} {
		testutil.WriteFile(t, dir, name, []byte("{}"))
	}
	return dir
}

func TestDiscoverSceneFiles_EmptyArgs(t *testing.T) {
	files, err := discoverSceneFiles(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverSceneFiles_Directory(t *testing.T) {
	dir := writeTree(t)

	files, err := discoverSceneFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.geojson"), filepath.Join(dir, "b.json")}, files)
}

func TestDiscoverSceneFiles_Recursive(t *testing.T) {
	dir := writeTree(t)

	files, err := discoverSceneFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Len(t, files, 4)
	assert.Contains(t, files, filepath.Join(dir, "nested", "deeper", "d.json"))
	assert.NotContains(t, files, filepath.Join(dir, "notes.txt"))
}

func TestDiscoverSceneFiles_Patterns(t *testing.T) {
	dir := writeTree(t)

	files, err := discoverSceneFiles([]string{dir}, true, []string{"*.geojson"}, []string{"c.*"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.geojson")}, files)
}

func TestDiscoverSceneFiles_ExplicitFile(t *testing.T) {
	dir := writeTree(t)
	txt := filepath.Join(dir, "notes.txt")

	// Named files skip the include filter but not the exclude filter.
	files, err := discoverSceneFiles([]string{txt}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{txt}, files)

	files, err = discoverSceneFiles([]string{txt}, false, nil, []string{"*.txt"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverSceneFiles_Missing(t *testing.T) {
	_, err := discoverSceneFiles([]string{filepath.Join(t.TempDir(), "nope")}, false, nil, nil)
	assert.Error(t, err)
}

func TestMatchesAnyPattern(t *testing.T) {
	assert.False(t, matchesAnyPattern("x.json", nil))
	assert.True(t, matchesAnyPattern("/a/b/x.json", []string{"*.geojson", "*.json"}))
	assert.False(t, matchesAnyPattern("/a/json/x.txt", []string{"*.json"}))
}
