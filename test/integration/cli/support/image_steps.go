package support

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
	"github.com/MeKo-Tech/geomeasure/internal/imageio"
	"github.com/MeKo-Tech/geomeasure/internal/testutil"
	"github.com/cucumber/godog"
)

// aCheckerboardImage writes a black and white checkerboard into the temp
// directory.
func (testCtx *TestContext) aCheckerboardImage(name string, w, h int) error {
	return imageio.Save(testutil.Checkerboard(w, h, 10, color.White, color.Black), testCtx.TempPath(name))
}

func (testCtx *TestContext) aGradientImage(name string, w, h int) error {
	return imageio.Save(testutil.Gradient(w, h), testCtx.TempPath(name))
}

// aMatchesFileShifting writes matches that pair next-image pixels with base
// pixels shifted right by dx.
func (testCtx *TestContext) aMatchesFileShifting(name string, dx int) error {
	var matches []homography.Match
	for _, p := range []geom.Point{{X: 2, Y: 3}, {X: 30, Y: 4}, {X: 28, Y: 25}, {X: 5, Y: 27}, {X: 15, Y: 15}} {
		matches = append(matches, homography.Match{Src: p, Dst: geom.Pt(p.X+float64(dx), p.Y)})
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return os.WriteFile(testCtx.TempPath(name), data, 0o600)
}

func (testCtx *TestContext) theImageShouldBe(name string, w, h int) error {
	img, _, err := imageio.Load(testCtx.substituteCommandVariables(name))
	if err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), w, h)
	}
	return nil
}

// RegisterImageSteps registers image fixture and result steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a checkerboard image "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.aCheckerboardImage)
	sc.Step(`^a gradient image "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.aGradientImage)
	sc.Step(`^a matches file "([^"]*)" shifting by (\d+) pixels$`, testCtx.aMatchesFileShifting)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theImageShouldBe)
}
