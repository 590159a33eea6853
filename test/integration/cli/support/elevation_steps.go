package support

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/scene"
	"github.com/cucumber/godog"
)

// theTestScenesAreAvailable checks the scene fixtures.
func (testCtx *TestContext) theTestScenesAreAvailable() error {
	for _, name := range []string{"valid/sun45.geojson", "valid/sun30.geojson", "valid/ground.geojson"} {
		path := filepath.Join(testCtx.ScenesDir, name)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("test scene not found: %s", path)
		}
	}
	return nil
}

// aSceneWithArrows writes a scene whose height arrow is vertical and whose
// shadow arrow is horizontal, both starting at the same foot point.
func (testCtx *TestContext) aSceneWithArrows(name string, heightPx, shadowPx float64) error {
	sess := elevation.NewSession()
	foot := geom.Pt(500, 500)
	steps := []func() error{
		func() error {
			return sess.PutArrow("h", elevation.Arrow{Start: foot, End: geom.Pt(foot.X, foot.Y-heightPx)})
		},
		func() error {
			return sess.PutArrow("s", elevation.Arrow{Start: foot, End: geom.Pt(foot.X+shadowPx, foot.Y)})
		},
		func() error { return sess.Assign(elevation.RoleHeight, "h") },
		func() error { return sess.Assign(elevation.RoleShadow, "s") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(scene.Build(sess), "", "  ")
	if err != nil {
		return err
	}
	path := testCtx.TempPath(filepath.Join("scenes", name+".geojson"))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// records decodes the JSON elevation report on stdout.
func (testCtx *TestContext) records() ([]map[string]any, error) {
	var recs []map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &recs); err != nil {
		return nil, fmt.Errorf("output is not a JSON report: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return recs, nil
}

func (testCtx *TestContext) record(name string) (map[string]any, error) {
	recs, err := testCtx.records()
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r["name"] == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no result for scene %q", name)
}

func (testCtx *TestContext) theElevationAngleOfShouldBe(name string, want float64) error {
	r, err := testCtx.record(name)
	if err != nil {
		return err
	}
	res, ok := r["result"].(map[string]any)
	if !ok {
		return fmt.Errorf("scene %q has no angle: %v", name, r)
	}
	return approxEqual("angle of "+name, res["angle_degrees"], want)
}

func (testCtx *TestContext) theHeightSourceOfShouldBe(name, want string) error {
	r, err := testCtx.record(name)
	if err != nil {
		return err
	}
	res, ok := r["result"].(map[string]any)
	if !ok {
		return fmt.Errorf("scene %q has no result", name)
	}
	if res["height_source"] != want {
		return fmt.Errorf("height source of %s = %v, want %s", name, res["height_source"], want)
	}
	return nil
}

func (testCtx *TestContext) sceneShouldBeUnavailable(name string) error {
	r, err := testCtx.record(name)
	if err != nil {
		return err
	}
	if r["available"] != false {
		return fmt.Errorf("scene %q unexpectedly has an angle: %v", name, r)
	}
	return nil
}

func (testCtx *TestContext) scenesShouldBeReported(n int) error {
	recs, err := testCtx.records()
	if err != nil {
		return err
	}
	if len(recs) != n {
		return fmt.Errorf("got %d results, want %d", len(recs), n)
	}
	return nil
}

// RegisterElevationSteps registers scene and elevation report steps.
func (testCtx *TestContext) RegisterElevationSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the test scenes are available$`, testCtx.theTestScenesAreAvailable)
	sc.Step(`^a scene "([^"]*)" with a (\d+(?:\.\d+)?) pixel height arrow and a (\d+(?:\.\d+)?) pixel shadow arrow$`,
		testCtx.aSceneWithArrows)
	sc.Step(`^the elevation angle of "([^"]*)" should be (-?[\d.]+) degrees$`, testCtx.theElevationAngleOfShouldBe)
	sc.Step(`^the height source of "([^"]*)" should be "([^"]*)"$`, testCtx.theHeightSourceOfShouldBe)
	sc.Step(`^scene "([^"]*)" should have no angle$`, testCtx.sceneShouldBeUnavailable)
	sc.Step(`^(\d+) scenes? should be reported$`, testCtx.scenesShouldBeReported)
}
