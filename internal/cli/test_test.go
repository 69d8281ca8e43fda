package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: insert_then_count
description: "One insert is counted once"
flow:
  - op: insert
    triple: '<http://example.org/s> <http://example.org/p> "o" .'
  - op: count
    expect:
      count: 1
assertions:
  - type: contains
    triple: '<http://example.org/s> <http://example.org/p> "o" .'
`

const failingScenario = `name: wrong_count
description: "Expects a count the flow never reaches"
flow:
  - op: insert
    triple: '<http://example.org/s> <http://example.org/p> "o" .'
  - op: count
    expect:
      count: 2
`

func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	stdout, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	stdout, _, err := execute(t, "test", "--help")
	require.NoError(t, err)

	assert.Contains(t, stdout, "conformance")
	assert.Contains(t, stdout, "--update")
	assert.Contains(t, stdout, "--filter")
	assert.Contains(t, stdout, "scenarios-dir")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "insert.yaml", passingScenario)

	stdout, _, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ insert_then_count (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "insert.golden"))

	stdout, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ insert_then_count\n")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")

	// A stale golden file fails the scenario.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "insert.golden"), []byte("{}\n"), 0o644))
	stdout, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ insert_then_count")
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good.yaml", passingScenario)
	writeScenario(t, dir, "bad.yaml", failingScenario)

	stdout, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, CodeTestFailed, response.Error.Code)

	data := response.Data.(map[string]any)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
	assert.Equal(t, float64(2), data["total"])
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good.yaml", passingScenario)
	writeScenario(t, dir, "bad.yaml", failingScenario)

	stdout, _, err := execute(t, "test", "--filter", "go*", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, stdout, "wrong_count")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: [unclosed\n")

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}
