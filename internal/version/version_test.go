package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoAndString(t *testing.T) {
	old := [3]string{Version, GitCommit, BuildDate}
	t.Cleanup(func() { Version, GitCommit, BuildDate = old[0], old[1], old[2] })

	Version, GitCommit, BuildDate = "v1.0.0", "abc123", "2026-01-02"
	v, c, d := Info()
	assert.Equal(t, "v1.0.0", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2026-01-02", d)
	assert.Equal(t, "geomeasure v1.0.0 (commit abc123, built 2026-01-02)", String())
}
