package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkvert/exporter"
)

func TestRun_BuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "table.yaml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"build", "-c", "conf/arpege90.ini", "-o", out, "--log-level", "warn"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	table, err := exporter.Read(out)
	require.NoError(t, err)
	assert.Len(t, table.GridLevels, 91)

	stdout.Reset()
	series := filepath.Join(dir, "series.csv")
	code = run([]string{"inspect", out, "--series", series, "--log-level", "warn"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "planetary boundary layer")
	data, err := os.ReadFile(series)
	require.NoError(t, err)
	assert.Equal(t, 91, strings.Count(string(data), "\n"))
}

func TestRun_BuildToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"build", "-c", "conf/arpege90.ini", "--log-level", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"typeoffirstfixedsurface": 119`)
}

func TestRun_ConfigError(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile("conf/arpege90.ini")
	require.NoError(t, err)
	bad := filepath.Join(dir, "bad.ini")
	require.NoError(t, os.WriteFile(bad, bytes.Replace(src, []byte("Levels = 90"), []byte("Levels = 89"), 1), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"build", "-c", bad, "-o", filepath.Join(dir, "t.json")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr.String(), "ConfigError: "), stderr.String())
	_, err = os.Stat(filepath.Join(dir, "t.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_ExportError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := filepath.Join(t.TempDir(), "missing", "t.json")
	code := run([]string{"build", "-c", "conf/arpege90.ini", "-o", out, "--log-level", "error"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ExportError: ")
}

func TestRun_Batch(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run([]string{"batch", "conf/arpege90.ini", filepath.Join(dir, "absent.ini"), "-d", dir, "--log-level", "error"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "conf/arpege90.ini: 90 levels")
	assert.Contains(t, stderr.String(), "ConfigError")

	_, err := exporter.Read(filepath.Join(dir, "arpege90.json"))
	require.NoError(t, err)
}

func TestRun_BadLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"build", "--log-level", "loud"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr.String(), "ConfigError: "), stderr.String())
}
