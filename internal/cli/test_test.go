package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// copyScenarios copies testdata/scenarios into a temp dir so golden files
// can be written.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join("testdata", "scenarios", e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPassingFilter(t *testing.T) {
	out, err := executeTest(t, "text", "--filter", "light*", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lights")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "broken-lights")
}

func TestTestCommandReportsFailures(t *testing.T) {
	out, err := executeTest(t, "json", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.True(t, byName["lights"].Pass)
	assert.False(t, byName["broken-lights"].Pass)
	assert.NotEmpty(t, byName["broken-lights"].Errors)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := executeTest(t, "text", "--filter", "[", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandUpdateThenCompareGolden(t *testing.T) {
	dir := copyScenarios(t)

	out, err := executeTest(t, "text", "--update", "--filter", "lights", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lights (golden updated)")

	golden := filepath.Join(dir, "golden", "lights.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "lights"`)
	assert.Contains(t, string(data), `"rule": "saver"`)

	// A rerun reproduces the golden file.
	out, err = executeTest(t, "text", "--filter", "lights", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lights")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = executeTest(t, "text", "--filter", "lights", dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
	assert.Contains(t, out, `line 1: want "{}", got "{"`)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "lights.golden"), goldenFilePath(filepath.Join("s", "lights.yaml")))
	assert.Equal(t, filepath.Join("golden", "a.golden"), goldenFilePath("a.yml"))
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "broken-lights.yaml"),
		filepath.Join("testdata", "scenarios", "lights.yaml"),
	}, files)
}
