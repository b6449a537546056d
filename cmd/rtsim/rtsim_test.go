package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const fixture = "../../internal/scenario/testdata/five_five_three.yaml"

func TestRunPasses(t *testing.T) {
	out, err := execute(t, "run", "--trace", fixture)
	require.NoError(t, err)
	require.Contains(t, out, "PASS five-five-three")
	require.Contains(t, out, "7 switches")
	require.Contains(t, out, "idle -> a")
	require.Contains(t, out, "ticks 0  switches 7")
}

func TestRunReportsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bad
steps:
  - {op: create, name: a, priority: 1}
  - {op: expect, current: idle}
`), 0o644))

	out, err := execute(t, "run", fixture, path)
	require.EqualError(t, err, "1 of 2 scenarios failed")
	require.Contains(t, out, "FAIL bad")
	require.Contains(t, out, "current a, want idle")
}

func TestRunYAML(t *testing.T) {
	out, err := execute(t, "run", "--yaml", fixture)
	require.NoError(t, err)

	var res []yamlResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	require.Len(t, res, 1)
	require.Equal(t, "five-five-three", res[0].Name)
	require.Len(t, res[0].Switches, 7)
	require.Len(t, res[0].Threads, 3)
	require.Equal(t, "512 B", res[0].Threads[0].Stack)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "rtsim dev")
}
