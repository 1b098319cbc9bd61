package colframe

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
)

// column is one typed vector. Exactly one backing slice is populated:
// ints for int64 and date (days since the Unix epoch), floats for
// float64, codes+dict for string.
type column struct {
	name   string
	kind   engine.Kind
	ints   []int64
	floats []float64
	codes  []uint32
	dict   []string
}

// Table is a column-major table.
type Table struct {
	n    int
	cols []*column
}

func (t *Table) lookup(name string) (*column, error) {
	for _, c := range t.cols {
		if c.name == name {
			return c, nil
		}
	}

	return nil, engine.NoColumnError(name)
}

// Len implements engine.Table.
func (t *Table) Len() int { return t.n }

// Columns implements engine.Table.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}

	return names
}

// Float64s implements engine.Table.
func (t *Table) Float64s(name string) ([]float64, error) {
	c, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.kind != engine.KindFloat64 {
		return nil, engine.ColumnTypeError(name, c.kind)
	}

	return slices.Clone(c.floats), nil
}

// Int64s implements engine.Table.
func (t *Table) Int64s(name string) ([]int64, error) {
	c, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.kind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(name, c.kind)
	}

	return slices.Clone(c.ints), nil
}

// Strings implements engine.Table.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.lookup(name)
	if err != nil {
		return nil, err
	}

	switch c.kind {
	case engine.KindString:
		out := make([]string, len(c.codes))
		for i, code := range c.codes {
			out[i] = c.dict[code]
		}

		return out, nil

	case engine.KindDate:
		out := make([]string, len(c.ints))
		for i, d := range c.ints {
			out[i] = time.Unix(d*secondsPerDay, 0).UTC().Format(dataset.DateLayout)
		}

		return out, nil

	default:
		return nil, engine.ColumnTypeError(name, c.kind)
	}
}

// numeric returns the column as float64s. Float columns return their
// backing slice, which callers must not modify.
func (c *column) numeric() ([]float64, error) {
	switch c.kind {
	case engine.KindFloat64:
		return c.floats, nil
	case engine.KindInt64:
		out := make([]float64, len(c.ints))
		for i, v := range c.ints {
			out[i] = float64(v)
		}

		return out, nil
	default:
		return nil, engine.ColumnTypeError(c.name, c.kind)
	}
}

// argsort returns the stable ascending permutation of the column.
func (c *column) argsort() []int {
	var n int

	switch c.kind {
	case engine.KindString:
		n = len(c.codes)
	case engine.KindFloat64:
		n = len(c.floats)
	default:
		n = len(c.ints)
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	switch c.kind {
	case engine.KindFloat64:
		slices.SortStableFunc(perm, func(a, b int) int {
			return cmp.Compare(c.floats[a], c.floats[b])
		})

	case engine.KindString:
		rank := c.dictRank()
		slices.SortStableFunc(perm, func(a, b int) int {
			return cmp.Compare(rank[c.codes[a]], rank[c.codes[b]])
		})

	default:
		slices.SortStableFunc(perm, func(a, b int) int {
			return cmp.Compare(c.ints[a], c.ints[b])
		})
	}

	return perm
}

// dictRank maps each code to the position of its label in sorted order.
func (c *column) dictRank() []int {
	byLabel := make([]int, len(c.dict))
	for i := range byLabel {
		byLabel[i] = i
	}
	sort.SliceStable(byLabel, func(a, b int) bool {
		return c.dict[byLabel[a]] < c.dict[byLabel[b]]
	})

	rank := make([]int, len(c.dict))
	for r, code := range byLabel {
		rank[code] = r
	}

	return rank
}

// gather returns a new column holding c's values at the given positions.
// Dictionaries are shared between the source and result.
func (c *column) gather(perm []int) *column {
	out := &column{name: c.name, kind: c.kind, dict: c.dict}

	switch c.kind {
	case engine.KindFloat64:
		out.floats = make([]float64, len(perm))
		for i, p := range perm {
			out.floats[i] = c.floats[p]
		}

	case engine.KindString:
		out.codes = make([]uint32, len(perm))
		for i, p := range perm {
			out.codes[i] = c.codes[p]
		}

	default:
		out.ints = make([]int64, len(perm))
		for i, p := range perm {
			out.ints[i] = c.ints[p]
		}
	}

	return out
}

// dictBuilder dictionary-encodes a string column while it is loaded.
type dictBuilder struct {
	index map[string]uint32
	dict  []string
	codes []uint32
}

func newDictBuilder() *dictBuilder {
	return &dictBuilder{index: make(map[string]uint32)}
}

func (b *dictBuilder) add(s string) {
	code, ok := b.index[s]
	if !ok {
		code = uint32(len(b.dict))
		b.index[s] = code
		b.dict = append(b.dict, s)
	}

	b.codes = append(b.codes, code)
}

func (b *dictBuilder) column(name string) *column {
	return &column{
		name:  name,
		kind:  engine.KindString,
		codes: b.codes,
		dict:  b.dict,
	}
}
