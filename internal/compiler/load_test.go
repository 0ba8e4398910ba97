package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "counter.cue", `
rule: bump: {
	match: "count: <3"
	do: [{incr: count: 1}]
}
`)

	rs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "bump", rs[0].ID)
}

func TestLoadFile_ValidationProblems(t *testing.T) {
	path := writeFile(t, "bad.cue", `
rule: empty: {match: "x: 1"}
`)

	_, err := LoadFile(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Len(t, le.Problems, 1)
	assert.Equal(t, ErrNoSteps, le.Problems[0].Code)
	assert.Contains(t, err.Error(), "[E104]")
}

func TestLoadFile_SyntaxError(t *testing.T) {
	path := writeFile(t, "broken.cue", `rule: {`)

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
