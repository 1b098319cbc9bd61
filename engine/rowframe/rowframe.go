// Package rowframe implements a row-oriented engine. Every row is a slice
// of typed cells and operations walk rows one at a time.
package rowframe

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
)

// Name is the registry name of the engine.
const Name = "rows"

const readBufferSize = 1 << 20

// Compile-time interface satisfaction check.
var _ engine.Engine = (*Engine)(nil)

// Engine is the row-oriented backend.
type Engine struct{}

// New returns a row-oriented engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

type field struct {
	name string
	kind engine.Kind
}

// Table is a row-major table. Cells hold int64, float64, string or
// time.Time according to the field kind.
type Table struct {
	fields []field
	rows   [][]any
}

var datasetFields = []field{
	{dataset.ColumnID, engine.KindInt64},
	{dataset.ColumnCategory, engine.KindString},
	{dataset.ColumnValue, engine.KindFloat64},
	{dataset.ColumnDate, engine.KindDate},
}

// Load implements engine.Engine.
func (e *Engine) Load(_ context.Context, path string) (engine.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := dataset.NewReader(bufio.NewReaderSize(f, readBufferSize))

	var rows [][]any

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		rows = append(rows, []any{rec.ID, rec.Category, rec.Value, rec.Date})
	}

	return &Table{fields: slices.Clone(datasetFields), rows: rows}, nil
}

// SortBy implements engine.Engine.
func (e *Engine) SortBy(_ context.Context, t engine.Table, column string) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	idx, kind, err := tbl.lookup(column)
	if err != nil {
		return nil, err
	}

	rows := slices.Clone(tbl.rows)
	slices.SortStableFunc(rows, func(a, b []any) int {
		return compareCells(kind, a[idx], b[idx])
	})

	return &Table{fields: tbl.fields, rows: rows}, nil
}

// GroupSum implements engine.Engine.
func (e *Engine) GroupSum(
	_ context.Context,
	t engine.Table,
	groupColumn, sumColumn string,
) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	if err := engine.CheckGroupSum(groupColumn, sumColumn); err != nil {
		return nil, err
	}

	gi, gkind, err := tbl.lookup(groupColumn)
	if err != nil {
		return nil, err
	}
	if gkind != engine.KindString && gkind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(groupColumn, gkind)
	}

	si, skind, err := tbl.lookup(sumColumn)
	if err != nil {
		return nil, err
	}
	if skind != engine.KindFloat64 && skind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(sumColumn, skind)
	}

	var (
		order []any
		sums  = make(map[any]float64)
	)

	for _, row := range tbl.rows {
		key := row[gi]
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] += numeric(row[si])
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		rows = append(rows, []any{key, sums[key]})
	}

	return &Table{
		fields: []field{
			{groupColumn, gkind},
			{sumColumn, engine.KindFloat64},
		},
		rows: rows,
	}, nil
}

// WithDerivedColumn implements engine.Engine.
func (e *Engine) WithDerivedColumn(
	_ context.Context,
	t engine.Table,
	source string,
	multiplier float64,
	newColumn string,
) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	si, skind, err := tbl.lookup(source)
	if err != nil {
		return nil, err
	}
	if skind != engine.KindFloat64 && skind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(source, skind)
	}

	if _, _, err := tbl.lookup(newColumn); err == nil {
		return nil, engine.ColumnExistsError(newColumn)
	}

	rows := make([][]any, len(tbl.rows))
	for i, row := range tbl.rows {
		rows[i] = append(slices.Clip(row), numeric(row[si])*multiplier)
	}

	fields := append(slices.Clip(tbl.fields), field{newColumn, engine.KindFloat64})

	return &Table{fields: fields, rows: rows}, nil
}

func own(t engine.Table) (*Table, error) {
	tbl, ok := t.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s: %w", Name, engine.ErrForeignTable)
	}

	return tbl, nil
}

func (t *Table) lookup(column string) (int, engine.Kind, error) {
	for i, f := range t.fields {
		if f.name == column {
			return i, f.kind, nil
		}
	}

	return -1, 0, engine.NoColumnError(column)
}

// Len implements engine.Table.
func (t *Table) Len() int { return len(t.rows) }

// Columns implements engine.Table.
func (t *Table) Columns() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.name
	}

	return names
}

// Float64s implements engine.Table.
func (t *Table) Float64s(column string) ([]float64, error) {
	return collect[float64](t, column, engine.KindFloat64)
}

// Int64s implements engine.Table.
func (t *Table) Int64s(column string) ([]int64, error) {
	return collect[int64](t, column, engine.KindInt64)
}

// Strings implements engine.Table.
func (t *Table) Strings(column string) ([]string, error) {
	idx, kind, err := t.lookup(column)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(t.rows))

	switch kind {
	case engine.KindString:
		for i, row := range t.rows {
			out[i] = row[idx].(string)
		}
	case engine.KindDate:
		for i, row := range t.rows {
			out[i] = row[idx].(time.Time).Format(dataset.DateLayout)
		}
	default:
		return nil, engine.ColumnTypeError(column, kind)
	}

	return out, nil
}

func collect[T any](t *Table, column string, want engine.Kind) ([]T, error) {
	idx, kind, err := t.lookup(column)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, engine.ColumnTypeError(column, kind)
	}

	out := make([]T, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx].(T)
	}

	return out, nil
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		panic(fmt.Sprintf("rowframe: non-numeric cell %T", v))
	}
}

func compareCells(kind engine.Kind, a, b any) int {
	switch kind {
	case engine.KindInt64:
		return cmp.Compare(a.(int64), b.(int64))
	case engine.KindFloat64:
		return cmp.Compare(a.(float64), b.(float64))
	case engine.KindString:
		return cmp.Compare(a.(string), b.(string))
	case engine.KindDate:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		panic(fmt.Sprintf("rowframe: unknown kind %v", kind))
	}
}
