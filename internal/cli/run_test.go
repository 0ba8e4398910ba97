package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tripwire/internal/store"
)

func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunScenario(t *testing.T) {
	out, err := executeRun(t, "text", "--run-id", "run-1", filepath.Join("testdata", "scenarios", "lights.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: lights")
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "[step 1] lights-on (removed)")
	assert.Contains(t, out, "[step 2] saver")
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunScenarioJSON(t *testing.T) {
	out, err := executeRun(t, "json", filepath.Join("testdata", "scenarios", "lights.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, "off", resp.Data.State["lights"])

	var rules []string
	for _, ev := range resp.Data.Trace {
		rules = append(rules, ev.Rule)
	}
	assert.Equal(t, []string{"lights-on", "saver"}, rules)
}

func TestRunFailingScenario(t *testing.T) {
	out, err := executeRun(t, "text", filepath.Join("testdata", "scenarios", "broken-lights.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Scenario failed")
	assert.Contains(t, out, "lights")
}

func TestRunMissingScenario(t *testing.T) {
	_, err := executeRun(t, "text", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunMissingArgs(t *testing.T) {
	_, err := executeRun(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunInvalidRules(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "bad.cue", `rule: bad: {match: "x: 1"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
name: bad
description: rules without steps
rules: [bad.cue]
assertions:
  - type: errors
`), 0644))

	_, err := executeRun(t, "text", filepath.Join(dir, "bad.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E104")
}

func TestRunWritesJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "runs.db")

	_, err := executeRun(t, "text", "--journal", journal, "--run-id", "journaled", filepath.Join("testdata", "scenarios", "lights.yaml"))
	require.NoError(t, err)

	st, err := store.Open(journal)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "journaled", runs[0].ID)
	assert.Equal(t, "lights", runs[0].Scenario)

	firings, err := st.Firings(context.Background(), "journaled")
	require.NoError(t, err)
	assert.Len(t, firings, 2)
}

func TestRunServesMetrics(t *testing.T) {
	_, err := executeRun(t, "text", "--metrics-addr", "127.0.0.1:0", filepath.Join("testdata", "scenarios", "lights.yaml"))
	require.NoError(t, err)
}

func TestRunInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tripwire.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: loud\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text", Config: cfgPath})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join("testdata", "scenarios", "lights.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Start an agent")
	assert.Contains(t, output, "--journal")
	assert.Contains(t, output, "scenario.yaml")
}
