package support

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// theMatrixShouldBeApproximately compares the JSON matrix on stdout with a
// 3x3 table.
func (testCtx *TestContext) theMatrixShouldBeApproximately(table *godog.Table) error {
	var resp struct {
		Matrix [3][3]float64 `json:"matrix"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &resp); err != nil {
		return fmt.Errorf("output has no matrix: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(table.Rows) != 3 {
		return fmt.Errorf("expected a 3-row table, got %d rows", len(table.Rows))
	}
	for i, row := range table.Rows {
		if len(row.Cells) != 3 {
			return fmt.Errorf("row %d needs 3 cells", i+1)
		}
		for j, cell := range row.Cells {
			want, err := strconv.ParseFloat(cell.Value, 64)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if err := approxEqual(fmt.Sprintf("h[%d][%d]", i, j), resp.Matrix[i][j], want); err != nil {
				return err
			}
		}
	}
	return nil
}

// pointShouldMapTo checks one line of the text output of "apply".
func (testCtx *TestContext) pointShouldMapTo(point, mapped string) error {
	return testCtx.theOutputShouldContain(point + " -> " + mapped + "\n")
}

func (testCtx *TestContext) pointShouldFailToMap(point string) error {
	return testCtx.theOutputShouldContain(point + " -> error:")
}

// RegisterHomographySteps registers matrix and point mapping steps.
func (testCtx *TestContext) RegisterHomographySteps(sc *godog.ScenarioContext) {
	sc.Step(`^the matrix should be approximately:$`, testCtx.theMatrixShouldBeApproximately)
	sc.Step(`^point "([^"]*)" should map to "([^"]*)"$`, testCtx.pointShouldMapTo)
	sc.Step(`^point "([^"]*)" should fail to map$`, testCtx.pointShouldFailToMap)
}
