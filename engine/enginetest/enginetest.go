// Package enginetest provides a conformance suite that every engine.Engine
// implementation runs from its own tests.
package enginetest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
)

// Row is one fixture row. ID defaults to the 1-based row position.
type Row struct {
	ID       int64
	Category string
	Value    float64
	Date     string
}

// WriteDataset writes rows as a dataset file in a fresh temp directory and
// returns its path.
func WriteDataset(t testing.TB, rows []Row) string {
	t.Helper()

	var b strings.Builder

	b.WriteString(strings.Join(dataset.Header, ","))
	b.WriteByte('\n')

	for i, r := range rows {
		id := r.ID
		if id == 0 {
			id = int64(i + 1)
		}

		date := r.Date
		if date == "" {
			date = dataset.Epoch.Format(dataset.DateLayout)
		}

		category := r.Category
		if category == "" {
			category = "A"
		}

		b.WriteString(strings.Join([]string{
			strconv.FormatInt(id, 10), category, dataset.FormatValue(r.Value), date,
		}, ","))
		b.WriteByte('\n')
	}

	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return path
}

// Load loads rows through e and registers cleanup for closable tables.
func Load(t testing.TB, e engine.Engine, rows []Row) engine.Table {
	t.Helper()

	tbl, err := e.Load(context.Background(), WriteDataset(t, rows))
	require.NoError(t, err)
	closeLater(t, tbl)

	return tbl
}

func closeLater(t testing.TB, tbl engine.Table) {
	if c, ok := tbl.(io.Closer); ok {
		t.Cleanup(func() { c.Close() })
	}
}

// Run exercises e against the engine contract.
func Run(t *testing.T, e engine.Engine) {
	t.Run("Load", func(t *testing.T) { testLoad(t, e) })
	t.Run("LoadGenerated", func(t *testing.T) { testLoadGenerated(t, e) })
	t.Run("LoadErrors", func(t *testing.T) { testLoadErrors(t, e) })
	t.Run("SortBy", func(t *testing.T) { testSortBy(t, e) })
	t.Run("SortByStable", func(t *testing.T) { testSortByStable(t, e) })
	t.Run("SortByOtherKinds", func(t *testing.T) { testSortByOtherKinds(t, e) })
	t.Run("GroupSum", func(t *testing.T) { testGroupSum(t, e) })
	t.Run("GroupSumErrors", func(t *testing.T) { testGroupSumErrors(t, e) })
	t.Run("WithDerivedColumn", func(t *testing.T) { testWithDerivedColumn(t, e) })
	t.Run("WithDerivedColumnErrors", func(t *testing.T) { testWithDerivedColumnErrors(t, e) })
	t.Run("InputUnchanged", func(t *testing.T) { testInputUnchanged(t, e) })
	t.Run("ForeignTable", func(t *testing.T) { testForeignTable(t, e) })
	t.Run("Accessors", func(t *testing.T) { testAccessors(t, e) })
}

func testLoad(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{
		{Category: "B", Value: 2.5, Date: "2020-03-04"},
		{Category: "A", Value: 0, Date: "2020-12-31"},
	})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, dataset.Header, tbl.Columns())

	ids, err := tbl.Int64s(dataset.ColumnID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	cats, err := tbl.Strings(dataset.ColumnCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, cats)

	values, err := tbl.Float64s(dataset.ColumnValue)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 0}, values)

	dates, err := tbl.Strings(dataset.ColumnDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-03-04", "2020-12-31"}, dates)
}

func testLoadGenerated(t *testing.T, e engine.Engine) {
	path := filepath.Join(t.TempDir(), "generated.csv")

	_, err := dataset.NewGenerator(dataset.Config{Rows: 300, Seed: 5}).WriteFile(path)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	want, err := dataset.ReadAll(f)
	f.Close()
	require.NoError(t, err)

	tbl, err := e.Load(context.Background(), path)
	require.NoError(t, err)
	closeLater(t, tbl)

	require.Equal(t, len(want), tbl.Len())

	values, err := tbl.Float64s(dataset.ColumnValue)
	require.NoError(t, err)

	for i, rec := range want {
		require.Equal(t, rec.Value, values[i], "row %d", i)
	}
}

func testLoadErrors(t *testing.T, e engine.Engine) {
	ctx := context.Background()

	_, err := e.Load(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err, "missing file")

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad,
		[]byte("id,category,value,date\n1,A,1,2020-01-01\n2,B,oops,2020-01-01\n"), 0o644))

	_, err = e.Load(ctx, bad)
	require.Error(t, err, "malformed value")

	var perr *dataset.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, dataset.ColumnValue, perr.Column)

	for name, row := range map[string]string{
		"NaN value":        "1,A,NaN,2020-01-01",
		"hex value":        "1,A,0x1p3,2020-01-01",
		"unknown category": "1,Z,1,2020-01-01",
	} {
		path := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("id,category,value,date\n"+row+"\n"), 0o644))

		_, err := e.Load(ctx, path)
		require.Error(t, err, name)
		require.ErrorAs(t, err, &perr, name)
		assert.Equal(t, 2, perr.Line, name)
	}
}

func testSortBy(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{{Value: 3}, {Value: 1}, {Value: 2}})

	sorted, err := e.SortBy(context.Background(), tbl, dataset.ColumnValue)
	require.NoError(t, err)

	values, err := sorted.Float64s(dataset.ColumnValue)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values)

	ids, err := sorted.Int64s(dataset.ColumnID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids, "other columns move with their row")
}

func testSortByStable(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{
		{Value: 5, Category: "A"},
		{Value: 1, Category: "B"},
		{Value: 5, Category: "C"},
		{Value: 1, Category: "D"},
		{Value: 5, Category: "E"},
	})

	sorted, err := e.SortBy(context.Background(), tbl, dataset.ColumnValue)
	require.NoError(t, err)

	ids, err := sorted.Int64s(dataset.ColumnID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, ids)
}

func testSortByOtherKinds(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	tbl := Load(t, e, []Row{
		{ID: 30, Category: "C", Date: "2020-05-01"},
		{ID: 10, Category: "A", Date: "2020-02-01"},
		{ID: 20, Category: "B", Date: "2020-01-15"},
	})

	byID, err := e.SortBy(ctx, tbl, dataset.ColumnID)
	require.NoError(t, err)
	ids, err := byID.Int64s(dataset.ColumnID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)

	byCat, err := e.SortBy(ctx, tbl, dataset.ColumnCategory)
	require.NoError(t, err)
	cats, err := byCat.Strings(dataset.ColumnCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, cats)

	byDate, err := e.SortBy(ctx, tbl, dataset.ColumnDate)
	require.NoError(t, err)
	dates, err := byDate.Strings(dataset.ColumnDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-15", "2020-02-01", "2020-05-01"}, dates)

	_, err = e.SortBy(ctx, tbl, "missing")
	assert.ErrorIs(t, err, engine.ErrNoColumn)
}

func testGroupSum(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{
		{Category: "A", Value: 10},
		{Category: "A", Value: 5},
		{Category: "B", Value: 3},
	})

	grouped, err := e.GroupSum(context.Background(), tbl, dataset.ColumnCategory, dataset.ColumnValue)
	require.NoError(t, err)

	assert.Equal(t, 2, grouped.Len())
	assert.Equal(t, []string{dataset.ColumnCategory, dataset.ColumnValue}, grouped.Columns())

	assert.Equal(t, map[string]float64{"A": 15, "B": 3}, groupMap(t, grouped))
}

func testGroupSumErrors(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	tbl := Load(t, e, []Row{{Value: 1}})

	_, err := e.GroupSum(ctx, tbl, "missing", dataset.ColumnValue)
	assert.ErrorIs(t, err, engine.ErrNoColumn)

	_, err = e.GroupSum(ctx, tbl, dataset.ColumnCategory, "missing")
	assert.ErrorIs(t, err, engine.ErrNoColumn)

	_, err = e.GroupSum(ctx, tbl, dataset.ColumnValue, dataset.ColumnID)
	assert.ErrorIs(t, err, engine.ErrColumnType, "float group column")

	_, err = e.GroupSum(ctx, tbl, dataset.ColumnCategory, dataset.ColumnDate)
	assert.ErrorIs(t, err, engine.ErrColumnType, "date sum column")

	_, err = e.GroupSum(ctx, tbl, dataset.ColumnCategory, dataset.ColumnCategory)
	assert.Error(t, err, "same group and sum column")
}

func testWithDerivedColumn(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{{Value: 100}, {Value: 0}, {Value: 12.5}})

	derived, err := e.WithDerivedColumn(
		context.Background(), tbl, dataset.ColumnValue, 1.1, "scaled",
	)
	require.NoError(t, err)

	assert.Equal(t, append(append([]string{}, dataset.Header...), "scaled"), derived.Columns())
	assert.Equal(t, 3, derived.Len())

	scaled, err := derived.Float64s("scaled")
	require.NoError(t, err)
	require.Len(t, scaled, 3)
	assert.InDelta(t, 110.0, scaled[0], 1e-9)
	assert.InDelta(t, 0.0, scaled[1], 1e-9)
	assert.InDelta(t, 13.75, scaled[2], 1e-9)

	fromInt, err := e.WithDerivedColumn(
		context.Background(), tbl, dataset.ColumnID, 2, "double_id",
	)
	require.NoError(t, err)

	doubled, err := fromInt.Float64s("double_id")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, doubled)
}

func testWithDerivedColumnErrors(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	tbl := Load(t, e, []Row{{Value: 1}})

	_, err := e.WithDerivedColumn(ctx, tbl, "missing", 1.1, "x")
	assert.ErrorIs(t, err, engine.ErrNoColumn)

	_, err = e.WithDerivedColumn(ctx, tbl, dataset.ColumnCategory, 1.1, "x")
	assert.ErrorIs(t, err, engine.ErrColumnType)

	_, err = e.WithDerivedColumn(ctx, tbl, dataset.ColumnValue, 1.1, dataset.ColumnID)
	assert.ErrorIs(t, err, engine.ErrColumnExists)
}

func testInputUnchanged(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	tbl := Load(t, e, []Row{{Value: 3, Category: "B"}, {Value: 1, Category: "A"}})

	_, err := e.SortBy(ctx, tbl, dataset.ColumnValue)
	require.NoError(t, err)
	_, err = e.GroupSum(ctx, tbl, dataset.ColumnCategory, dataset.ColumnValue)
	require.NoError(t, err)
	_, err = e.WithDerivedColumn(ctx, tbl, dataset.ColumnValue, 1.1, "scaled")
	require.NoError(t, err)

	assert.Equal(t, dataset.Header, tbl.Columns())
	assert.Equal(t, 2, tbl.Len())

	values, err := tbl.Float64s(dataset.ColumnValue)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, values)
}

func testForeignTable(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	foreign := foreignTable{}

	_, err := e.SortBy(ctx, foreign, dataset.ColumnValue)
	assert.ErrorIs(t, err, engine.ErrForeignTable)

	_, err = e.GroupSum(ctx, foreign, dataset.ColumnCategory, dataset.ColumnValue)
	assert.ErrorIs(t, err, engine.ErrForeignTable)

	_, err = e.WithDerivedColumn(ctx, foreign, dataset.ColumnValue, 1.1, "x")
	assert.ErrorIs(t, err, engine.ErrForeignTable)
}

func testAccessors(t *testing.T, e engine.Engine) {
	tbl := Load(t, e, []Row{{Value: 1}})

	_, err := tbl.Float64s(dataset.ColumnID)
	assert.ErrorIs(t, err, engine.ErrColumnType)

	_, err = tbl.Int64s(dataset.ColumnValue)
	assert.ErrorIs(t, err, engine.ErrColumnType)

	_, err = tbl.Strings(dataset.ColumnValue)
	assert.ErrorIs(t, err, engine.ErrColumnType)

	_, err = tbl.Float64s("missing")
	assert.ErrorIs(t, err, engine.ErrNoColumn)
}

func groupMap(t *testing.T, tbl engine.Table) map[string]float64 {
	t.Helper()

	keys, err := tbl.Strings(dataset.ColumnCategory)
	require.NoError(t, err)

	sums, err := tbl.Float64s(dataset.ColumnValue)
	require.NoError(t, err)
	require.Len(t, sums, len(keys))

	out := make(map[string]float64, len(keys))
	for i, k := range keys {
		out[k] = sums[i]
	}

	return out
}

// foreignTable is a Table no engine produced.
type foreignTable struct{}

func (foreignTable) Len() int                            { return 0 }
func (foreignTable) Columns() []string                   { return nil }
func (foreignTable) Float64s(string) ([]float64, error) { return nil, nil }
func (foreignTable) Int64s(string) ([]int64, error)     { return nil, nil }
func (foreignTable) Strings(string) ([]string, error)   { return nil, nil }
