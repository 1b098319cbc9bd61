package harness

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
	"github.com/weiihann/framebench/engine/colframe"
	"github.com/weiihann/framebench/engine/rowframe"
	"github.com/weiihann/framebench/engine/sqlframe"
)

type fakeTable struct {
	owner  string
	rows   int
	closed *bool
}

func (t fakeTable) Len() int                            { return t.rows }
func (t fakeTable) Columns() []string                   { return nil }
func (t fakeTable) Float64s(string) ([]float64, error) { return nil, nil }
func (t fakeTable) Int64s(string) ([]int64, error)     { return nil, nil }
func (t fakeTable) Strings(string) ([]string, error)   { return nil, nil }

type closableTable struct{ fakeTable }

func (t closableTable) Close() error {
	*t.closed = true
	return nil
}

// fakeEngine records calls and fails the operations listed in failOn.
type fakeEngine struct {
	name     string
	failOn   map[Operation]error
	calls    []Operation
	tables   []engine.Table
	closable bool
	closed   bool
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) step(op Operation, in engine.Table) (engine.Table, error) {
	f.calls = append(f.calls, op)

	if in != nil {
		if ft, ok := unwrap(in); !ok || ft.owner != f.name {
			return nil, engine.ErrForeignTable
		}
	}

	if err, ok := f.failOn[op]; ok {
		return nil, err
	}

	return fakeTable{owner: f.name, rows: 3}, nil
}

func unwrap(t engine.Table) (fakeTable, bool) {
	switch v := t.(type) {
	case fakeTable:
		return v, true
	case closableTable:
		return v.fakeTable, true
	default:
		return fakeTable{}, false
	}
}

func (f *fakeEngine) Load(context.Context, string) (engine.Table, error) {
	t, err := f.step(OpLoad, nil)
	if err != nil {
		return nil, err
	}
	if f.closable {
		return closableTable{fakeTable{owner: f.name, rows: 3, closed: &f.closed}}, nil
	}

	return t, nil
}

func (f *fakeEngine) SortBy(_ context.Context, t engine.Table, _ string) (engine.Table, error) {
	return f.step(OpSort, t)
}

func (f *fakeEngine) GroupSum(_ context.Context, t engine.Table, _, _ string) (engine.Table, error) {
	return f.step(OpGroupSum, t)
}

func (f *fakeEngine) WithDerivedColumn(
	_ context.Context, t engine.Table, _ string, _ float64, _ string,
) (engine.Table, error) {
	return f.step(OpDerive, t)
}

func writeDataset(t *testing.T, rows int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.csv")
	_, err := dataset.NewGenerator(dataset.Config{Rows: rows, Seed: 42}).WriteFile(path)
	require.NoError(t, err)

	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type pair struct {
	engine string
	op     Operation
}

func TestRunRecordsEveryPairOnce(t *testing.T) {
	a := &fakeEngine{name: "a"}
	b := &fakeEngine{name: "b"}

	runner := NewRunner([]engine.Engine{a, b}, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{DatasetPath: writeDataset(t, 10)})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, []string{"a", "b"}, res.Engines)
	assert.Equal(t, Operations(), res.Operations)
	assert.Equal(t, 1, res.Runs)
	assert.NotEmpty(t, res.RunID)
	assert.Positive(t, res.Dataset.SizeBytes)

	require.Len(t, res.Measurements, 8)

	seen := make(map[pair]bool)
	for i, m := range res.Measurements {
		p := pair{m.Engine, m.Operation}
		assert.False(t, seen[p], "duplicate measurement %v", p)
		seen[p] = true

		assert.GreaterOrEqual(t, m.Seconds, 0.0)
		assert.Equal(t, 1, m.Run)

		wantEngine := "a"
		if i >= 4 {
			wantEngine = "b"
		}
		assert.Equal(t, wantEngine, m.Engine)
		assert.Equal(t, Operations()[i%4], m.Operation)
	}

	assert.Equal(t, Operations(), a.calls)
	assert.Equal(t, Operations(), b.calls)
}

func TestRunUsesInjectedClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0

	runner := NewRunner([]engine.Engine{&fakeEngine{name: "a"}}, DefaultPlan(), testLogger())
	runner.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 250 * time.Millisecond)
	}

	res, err := runner.Run(context.Background(), RunConfig{DatasetPath: writeDataset(t, 1)})
	require.NoError(t, err)

	for _, m := range res.Measurements {
		assert.InDelta(t, 0.25, m.Seconds, 1e-9, "operation %s", m.Operation)
		assert.Equal(t, 250*time.Millisecond, m.Duration())
	}
}

func TestRunFlagsFailedPair(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeEngine{name: "a", failOn: map[Operation]error{OpGroupSum: boom}}
	b := &fakeEngine{name: "b"}

	runner := NewRunner([]engine.Engine{a, b}, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{DatasetPath: writeDataset(t, 5)})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, "a", f.Engine)
	assert.Equal(t, OpGroupSum, f.Operation)
	assert.False(t, f.Skipped)

	assert.True(t, res.Failed("a", OpGroupSum))
	assert.False(t, res.Failed("b", OpGroupSum))
	assert.Len(t, res.Measurements, 7)
	assert.Empty(t, res.Samples("a", OpGroupSum))

	runErr := res.Err()
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, boom)

	var opErr *OpError
	require.ErrorAs(t, runErr, &opErr)
	assert.Equal(t, "a", opErr.Engine)
	assert.Equal(t, OpGroupSum, opErr.Operation)
	assert.Contains(t, runErr.Error(), "a group_sum")

	assert.Equal(t, Operations(), a.calls, "later operations still run")
}

func TestRunLoadFailureSkipsEngine(t *testing.T) {
	a := &fakeEngine{name: "a", failOn: map[Operation]error{OpLoad: errors.New("bad file")}}
	b := &fakeEngine{name: "b"}

	runner := NewRunner([]engine.Engine{a, b}, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{DatasetPath: writeDataset(t, 5)})
	require.NoError(t, err)

	require.Len(t, res.Failures, 4)
	assert.False(t, res.Failures[0].Skipped)
	for _, f := range res.Failures[1:] {
		assert.True(t, f.Skipped, "operation %s", f.Operation)
		assert.ErrorIs(t, f.Err(), ErrSkipped)
	}

	assert.Equal(t, []Operation{OpLoad}, a.calls)
	assert.Len(t, res.Measurements, 4)
}

func TestRunFailFast(t *testing.T) {
	a := &fakeEngine{name: "a", failOn: map[Operation]error{OpSort: engine.ErrUnsupported}}
	b := &fakeEngine{name: "b"}

	runner := NewRunner([]engine.Engine{a, b}, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{
		DatasetPath: writeDataset(t, 5),
		FailFast:    true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnsupported)

	require.NotNil(t, res)
	assert.Len(t, res.Failures, 1)
	assert.Empty(t, b.calls, "second engine never started")
}

func TestRunRepeats(t *testing.T) {
	a := &fakeEngine{name: "a"}

	runner := NewRunner([]engine.Engine{a}, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{
		DatasetPath:    writeDataset(t, 5),
		Runs:           3,
		CollectGarbage: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Runs)
	assert.Len(t, res.Measurements, 12)
	assert.Len(t, res.Samples("a", OpDerive), 3)
	assert.Len(t, a.calls, 12)
}

func TestRunClosesLoadedTable(t *testing.T) {
	a := &fakeEngine{name: "a", closable: true}

	runner := NewRunner([]engine.Engine{a}, DefaultPlan(), testLogger())
	_, err := runner.Run(context.Background(), RunConfig{DatasetPath: writeDataset(t, 5)})
	require.NoError(t, err)

	assert.True(t, a.closed)
}

func TestRunRejectsBadSetup(t *testing.T) {
	path := writeDataset(t, 1)

	tests := []struct {
		name    string
		engines []engine.Engine
		plan    Plan
		path    string
	}{
		{name: "no engines", plan: DefaultPlan(), path: path},
		{
			name:    "duplicate engines",
			engines: []engine.Engine{&fakeEngine{name: "a"}, &fakeEngine{name: "a"}},
			plan:    DefaultPlan(),
			path:    path,
		},
		{
			name:    "invalid plan",
			engines: []engine.Engine{&fakeEngine{name: "a"}},
			plan:    Plan{},
			path:    path,
		},
		{
			name:    "missing dataset",
			engines: []engine.Engine{&fakeEngine{name: "a"}},
			plan:    DefaultPlan(),
			path:    filepath.Join(t.TempDir(), "missing.csv"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(tt.engines, tt.plan, nil)
			res, err := runner.Run(context.Background(), RunConfig{DatasetPath: tt.path})
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestRunRealEngines(t *testing.T) {
	engines := []engine.Engine{rowframe.New(), colframe.New(), sqlframe.New()}

	runner := NewRunner(engines, DefaultPlan(), testLogger())
	res, err := runner.Run(context.Background(), RunConfig{
		DatasetPath: writeDataset(t, 500),
		Rows:        500,
		Seed:        42,
	})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Len(t, res.Measurements, len(engines)*len(Operations()))

	for _, m := range res.Measurements {
		switch m.Operation {
		case OpGroupSum:
			assert.Equal(t, len(dataset.Categories), m.Rows, "%s groups", m.Engine)
		default:
			assert.Equal(t, 500, m.Rows, "%s %s rows", m.Engine, m.Operation)
		}
	}
}

func TestResultDatasetRows(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want int
	}{
		{
			name: "configured rows win",
			res: Result{
				Dataset:      DatasetInfo{Rows: 10},
				Measurements: []Measurement{{Operation: OpLoad, Rows: 7}},
			},
			want: 10,
		},
		{
			name: "falls back to first load",
			res: Result{Measurements: []Measurement{
				{Engine: "a", Operation: OpSort, Rows: 3},
				{Engine: "b", Operation: OpLoad, Rows: 7},
			}},
			want: 7,
		},
		{name: "unknown", res: Result{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.DatasetRows())
		})
	}
}
