package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
	"github.com/weiihann/framebench/engine/rowframe"
)

func execute(t *testing.T, reg *engine.Registry, args ...string) (string, error) {
	t.Helper()

	if reg == nil {
		var err error

		reg, err = newRegistry()
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger, new(slog.LevelVar), reg)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestEnginesCommand(t *testing.T) {
	out, err := execute(t, nil, "engines")
	require.NoError(t, err)

	assert.Equal(t, "columnar\nrows\nsqlite\n", out)
}

func TestGenerateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")

	out, err := execute(t, nil, "generate", "--rows", "25", "--seed", "7", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 25 rows")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := dataset.ReadAll(f)
	require.NoError(t, err)
	assert.Len(t, records, 25)
}

func TestGenerateCommandRejectsNegativeRows(t *testing.T) {
	_, err := execute(t, nil, "generate", "--rows", "-1", "--out", filepath.Join(t.TempDir(), "d.csv"))
	assert.Error(t, err)
}

func TestRunCommandMarkdown(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.csv")

	out, err := execute(t, nil, "run",
		"--rows", "200",
		"--out", data,
		"--engines", "rows,columnar",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "## Benchmark Results")
	assert.Contains(t, out, "| Operation | rows | columnar |")
	assert.Contains(t, out, "200 rows")
	assert.NotContains(t, out, "FAILED")

	_, err = os.Stat(data)
	assert.NoError(t, err, "generated dataset is kept")
}

func TestRunCommandAllEnginesByDefault(t *testing.T) {
	out, err := execute(t, nil, "run",
		"--rows", "50",
		"--out", filepath.Join(t.TempDir(), "data.csv"),
		"--format", "csv",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "run,engine,operation,seconds,rows", lines[0])
	assert.Len(t, lines, 1+3*4)
	assert.Contains(t, out, ",sqlite,group_sum,")
}

func TestRunCommandExistingDataset(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.csv")

	_, err := execute(t, nil, "generate", "--rows", "30", "--out", data)
	require.NoError(t, err)

	chart := filepath.Join(dir, "chart.svg")
	metrics := filepath.Join(dir, "framebench.prom")

	out, err := execute(t, nil, "run",
		"--dataset", data,
		"--engines", "sqlite",
		"--runs", "2",
		"--format", "json",
		"--chart", chart,
		"--metrics", metrics,
	)
	require.NoError(t, err)

	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, `"summaries"`)

	for _, path := range []string{chart, metrics} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRunCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "framebench.yaml")
	data := filepath.Join(dir, "from-config.csv")

	content := "dataset:\n  rows: 40\n  out: " + data + "\nengines: [columnar]\noutput:\n  format: csv\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := execute(t, nil, "run", "--config", cfgPath, "--format", "markdown")
	require.NoError(t, err)

	assert.Contains(t, out, "| Operation | columnar |", "flag overrides file format")
	assert.Contains(t, out, "40 rows")

	_, err = os.Stat(data)
	assert.NoError(t, err)
}

func TestRunCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing dataset", []string{"--dataset", filepath.Join(dir, "missing.csv")}},
		{"unknown engine", []string{"--rows", "5", "--out", filepath.Join(dir, "a.csv"), "--engines", "pandas"}},
		{"bad format", []string{"--rows", "5", "--out", filepath.Join(dir, "b.csv"), "--format", "xml"}},
		{"zero runs", []string{"--rows", "5", "--out", filepath.Join(dir, "c.csv"), "--runs", "0"}},
		{"missing config", []string{"--config", filepath.Join(dir, "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, nil, append([]string{"run"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

// brokenEngine wraps rowframe but cannot group.
type brokenEngine struct {
	*rowframe.Engine
}

func (brokenEngine) Name() string { return "broken" }

func (brokenEngine) GroupSum(context.Context, engine.Table, string, string) (engine.Table, error) {
	return nil, errors.New("out of memory")
}

func TestRunCommandReportsFailures(t *testing.T) {
	reg := engine.NewRegistry()
	require.NoError(t, reg.Register(brokenEngine{rowframe.New()}))
	require.NoError(t, reg.Register(rowframe.New()))

	out, err := execute(t, reg, "run",
		"--rows", "20",
		"--out", filepath.Join(t.TempDir(), "data.csv"),
	)
	require.Error(t, err, "failed pair gives a non-zero exit")
	assert.Contains(t, err.Error(), "broken group_sum")

	assert.Contains(t, out, "FAILED", "report printed before the error")
	assert.Contains(t, out, "out of memory")
}

func TestRunCommandExistingDatasetRowCount(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data.csv")

	_, err := execute(t, nil, "generate", "--rows", "30", "--out", data)
	require.NoError(t, err)

	out, err := execute(t, nil, "run", "--dataset", data, "--engines", "rows")
	require.NoError(t, err)

	assert.Contains(t, out, "(30 rows,")
}
