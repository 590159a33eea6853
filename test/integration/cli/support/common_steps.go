package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// iRunCommand runs a geomeasure command line.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	args, err := splitCommand(command)
	if err != nil {
		return err
	}
	testCtx.runCLI(args)
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// combinedOutput mirrors what a terminal shows.
func (testCtx *TestContext) combinedOutput() string {
	return testCtx.LastOutput + testCtx.LastStderr
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.combinedOutput(), expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.combinedOutput())
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.combinedOutput(), text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.combinedOutput())
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a single JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONShouldContain checks that a dotted path such as "0.result.angle_degrees"
// resolves in the JSON output.
func (testCtx *TestContext) theJSONShouldContain(path string) error {
	_, err := jsonPath(testCtx.LastOutput, path)
	return err
}

// jsonPath resolves a dotted path through objects and arrays.
func jsonPath(raw, path string) (any, error) {
	var current any
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in path %q", part, path)
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in path %q", part, path)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q in path %q", part, path)
		}
	}
	return current, nil
}

// theJSONNumberShouldBe compares a numeric field within 1e-6.
func (testCtx *TestContext) theJSONNumberShouldBe(path string, want float64) error {
	v, err := jsonPath(testCtx.LastOutput, path)
	if err != nil {
		return err
	}
	return approxEqual(path, v, want)
}

func approxEqual(what string, v any, want float64) error {
	got, ok := v.(float64)
	if !ok {
		return fmt.Errorf("%s is %T, not a number", what, v)
	}
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		return fmt.Errorf("%s = %g, want %g", what, got, want)
	}
	return nil
}

// theErrorShouldMention checks the returned error and stderr.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return errors.New("no error occurred")
	}
	haystack := strings.ToLower(testCtx.LastError.Error() + "\n" + testCtx.LastStderr)
	if !strings.Contains(haystack, strings.ToLower(errorText)) {
		return fmt.Errorf("error does not mention '%s'\nError: %v\nStderr: %s",
			errorText, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

// theFileShouldExist checks a file below the temp directory.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.substituteCommandVariables(filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	path := testCtx.substituteCommandVariables(filename)
	data, err := os.ReadFile(path) //nolint:gosec // G304: test artifact path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", path, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// aFileWithContent writes a doc string into the temp directory.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.TempPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	testCtx.TrackFile(path)
	return nil
}

// theOutputShouldListAvailableSubcommands checks the help text.
func (testCtx *TestContext) theOutputShouldListAvailableSubcommands() error {
	for _, name := range []string{"homography", "apply", "elevation", "rectify", "stitch", "serve", "config"} {
		if !strings.Contains(testCtx.LastOutput, name) {
			return fmt.Errorf("help does not list subcommand %q\nOutput: %s", name, testCtx.LastOutput)
		}
	}
	return nil
}

// RegisterCommonSteps registers the command and output step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON number "([^"]*)" should be (-?[\d.]+)$`, testCtx.theJSONNumberShouldBe)
	sc.Step(`^the output should list available subcommands$`, testCtx.theOutputShouldListAvailableSubcommands)

	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWithContent)

	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
