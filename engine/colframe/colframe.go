// Package colframe implements a column-oriented engine. Columns are typed
// vectors, string columns are dictionary encoded and arithmetic runs over
// whole vectors.
package colframe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
)

// Name is the registry name of the engine.
const Name = "columnar"

const (
	readBufferSize = 1 << 20
	secondsPerDay  = 24 * 60 * 60
)

// Compile-time interface satisfaction check.
var _ engine.Engine = (*Engine)(nil)

// Engine is the column-oriented backend.
type Engine struct{}

// New returns a column-oriented engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// Load implements engine.Engine.
func (e *Engine) Load(_ context.Context, path string) (engine.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := dataset.NewReader(bufio.NewReaderSize(f, readBufferSize))

	var (
		ids    []int64
		values []float64
		days   []int64
		cats   = newDictBuilder()
	)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		ids = append(ids, rec.ID)
		cats.add(rec.Category)
		values = append(values, rec.Value)
		days = append(days, rec.Date.Unix()/secondsPerDay)
	}

	return &Table{
		n: len(ids),
		cols: []*column{
			{name: dataset.ColumnID, kind: engine.KindInt64, ints: ids},
			cats.column(dataset.ColumnCategory),
			{name: dataset.ColumnValue, kind: engine.KindFloat64, floats: values},
			{name: dataset.ColumnDate, kind: engine.KindDate, ints: days},
		},
	}, nil
}

// SortBy implements engine.Engine.
func (e *Engine) SortBy(_ context.Context, t engine.Table, name string) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	key, err := tbl.lookup(name)
	if err != nil {
		return nil, err
	}

	perm := key.argsort()

	cols := make([]*column, len(tbl.cols))
	for i, c := range tbl.cols {
		cols[i] = c.gather(perm)
	}

	return &Table{n: tbl.n, cols: cols}, nil
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

	group, err := tbl.lookup(groupColumn)
	if err != nil {
		return nil, err
	}

	sum, err := tbl.lookup(sumColumn)
	if err != nil {
		return nil, err
	}

	addends, err := sum.numeric()
	if err != nil {
		return nil, err
	}

	var (
		keys *column
		sums []float64
	)

	switch group.kind {
	case engine.KindString:
		keys, sums = groupByCode(group, addends)
	case engine.KindInt64:
		keys, sums = groupByInt(group, addends)
	default:
		return nil, engine.ColumnTypeError(groupColumn, group.kind)
	}

	return &Table{
		n: len(sums),
		cols: []*column{
			keys,
			{name: sumColumn, kind: engine.KindFloat64, floats: sums},
		},
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

	src, err := tbl.lookup(source)
	if err != nil {
		return nil, err
	}

	if _, err := tbl.lookup(newColumn); err == nil {
		return nil, engine.ColumnExistsError(newColumn)
	}

	var derived []float64

	switch src.kind {
	case engine.KindFloat64:
		derived = floats.ScaleTo(make([]float64, tbl.n), multiplier, src.floats)
	case engine.KindInt64:
		derived, _ = src.numeric()
		floats.Scale(multiplier, derived)
	default:
		return nil, engine.ColumnTypeError(source, src.kind)
	}

	cols := make([]*column, len(tbl.cols), len(tbl.cols)+1)
	copy(cols, tbl.cols)
	cols = append(cols, &column{name: newColumn, kind: engine.KindFloat64, floats: derived})

	return &Table{n: tbl.n, cols: cols}, nil
}

// groupByCode sums addends per dictionary code, keeping codes in order of
// first appearance.
func groupByCode(group *column, addends []float64) (*column, []float64) {
	slot := make([]int, len(group.dict))
	for i := range slot {
		slot[i] = -1
	}

	var (
		labels []string
		sums   []float64
	)

	for i, code := range group.codes {
		s := slot[code]
		if s < 0 {
			s = len(sums)
			slot[code] = s
			labels = append(labels, group.dict[code])
			sums = append(sums, 0)
		}
		sums[s] += addends[i]
	}

	codes := make([]uint32, len(labels))
	for i := range codes {
		codes[i] = uint32(i)
	}

	return &column{
		name:  group.name,
		kind:  engine.KindString,
		codes: codes,
		dict:  labels,
	}, sums
}

func groupByInt(group *column, addends []float64) (*column, []float64) {
	slot := make(map[int64]int)

	var (
		keys []int64
		sums []float64
	)

	for i, k := range group.ints {
		s, ok := slot[k]
		if !ok {
			s = len(sums)
			slot[k] = s
			keys = append(keys, k)
			sums = append(sums, 0)
		}
		sums[s] += addends[i]
	}

	return &column{name: group.name, kind: engine.KindInt64, ints: keys}, sums
}

func own(t engine.Table) (*Table, error) {
	tbl, ok := t.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s: %w", Name, engine.ErrForeignTable)
	}

	return tbl, nil
}
