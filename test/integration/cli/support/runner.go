package support

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/geomeasure/cmd/geomeasure/cmd"
)

const commandTimeout = 30 * time.Second

// runCLI executes the geomeasure command tree in-process with the scenario's
// environment applied, and records its output and exit status.
func (testCtx *TestContext) runCLI(args []string) {
	restore := testCtx.applyEnv()
	defer restore()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastStartTime = time.Now()
	err := root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
}

// applyEnv sets the scenario's environment variables plus an isolated HOME,
// and returns a function restoring the previous values.
func (testCtx *TestContext) applyEnv() func() {
	vars := append([]string{
		"HOME=" + testCtx.TempDir,
		"XDG_CONFIG_HOME=" + testCtx.TempDir,
	}, testCtx.EnvVars...)

	type saved struct {
		value string
		ok    bool
	}
	prev := make(map[string]saved, len(vars))
	for _, kv := range vars {
		name, value, _ := strings.Cut(kv, "=")
		if _, seen := prev[name]; !seen {
			v, ok := os.LookupEnv(name)
			prev[name] = saved{v, ok}
		}
		_ = os.Setenv(name, value)
	}

	return func() {
		for name, s := range prev {
			if s.ok {
				_ = os.Setenv(name, s.value)
			} else {
				_ = os.Unsetenv(name)
			}
		}
	}
}

// splitCommand splits a step's command line on whitespace and drops the
// leading program name.
func splitCommand(command string) ([]string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}
	if parts[0] == "geomeasure" {
		parts = parts[1:]
	}
	return parts, nil
}
