package sqlframe

import (
	"context"
	"fmt"
	"io"

	"github.com/weiihann/framebench/engine"
)

type column struct {
	name string
	kind engine.Kind
}

// Table is a handle to one table inside a load's database. Tables derived
// from the same load share the database; closing any of them closes all.
type Table struct {
	store *store
	name  string
	cols  []column
	rows  int
}

var _ io.Closer = (*Table)(nil)

// derive allocates a handle for a new table in the same database.
func (t *Table) derive(cols []column) *Table {
	return &Table{
		store: t.store,
		name:  t.store.newName(),
		cols:  cols,
	}
}

func (t *Table) create(ctx context.Context, query string) error {
	_, err := t.store.db.ExecContext(ctx, query)

	return err
}

func (t *Table) lookup(name string) (engine.Kind, error) {
	for _, c := range t.cols {
		if c.name == name {
			return c.kind, nil
		}
	}

	return 0, engine.NoColumnError(name)
}

// Close releases the database behind t.
func (t *Table) Close() error {
	if t.store.closed {
		return nil
	}

	t.store.closed = true

	return t.store.db.Close()
}

// Len implements engine.Table.
func (t *Table) Len() int { return t.rows }

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
	return scanColumn[float64](t, name, engine.KindFloat64)
}

// Int64s implements engine.Table.
func (t *Table) Int64s(name string) ([]int64, error) {
	return scanColumn[int64](t, name, engine.KindInt64)
}

// Strings implements engine.Table. Dates are stored in their serialized
// form and returned unchanged.
func (t *Table) Strings(name string) ([]string, error) {
	kind, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if kind != engine.KindString && kind != engine.KindDate {
		return nil, engine.ColumnTypeError(name, kind)
	}

	return scanColumn[string](t, name, kind)
}

func scanColumn[T any](t *Table, name string, want engine.Kind) ([]T, error) {
	if t.store.closed {
		return nil, ErrClosed
	}

	kind, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, engine.ColumnTypeError(name, kind)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", quote(name), quote(t.name))

	rows, err := t.store.db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	defer rows.Close()

	out := make([]T, 0, t.rows)

	for rows.Next() {
		var v T
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}

	return out, nil
}
