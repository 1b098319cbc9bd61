// Package sqlframe implements an engine on top of an embedded, in-memory
// SQLite database. Each Load opens a private database and every operation
// materialises its result as a new table in that database.
package sqlframe

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"

	_ "modernc.org/sqlite"
)

// Name is the registry name of the engine.
const Name = "sqlite"

const (
	readBufferSize = 1 << 20

	// insertBatch rows per INSERT statement; 4 parameters per row stays
	// well below SQLite's bound parameter limit.
	insertBatch = 256
)

// ErrClosed is returned by tables whose database has been closed.
var ErrClosed = errors.New("sqlite table closed")

// Compile-time interface satisfaction check.
var _ engine.Engine = (*Engine)(nil)

// Engine is the SQLite backend.
type Engine struct{}

// New returns a SQLite engine.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// store is the database behind one Load and every table derived from it.
type store struct {
	db     *sql.DB
	next   int
	closed bool
}

func openStore(ctx context.Context) (*store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &store{db: db}, nil
}

func (s *store) newName() string {
	name := "t" + strconv.Itoa(s.next)
	s.next++

	return name
}

// Load implements engine.Engine.
func (e *Engine) Load(ctx context.Context, path string) (engine.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	t := &Table{
		store: s,
		name:  s.newName(),
		cols: []column{
			{dataset.ColumnID, engine.KindInt64},
			{dataset.ColumnCategory, engine.KindString},
			{dataset.ColumnValue, engine.KindFloat64},
			{dataset.ColumnDate, engine.KindDate},
		},
	}

	n, err := t.fill(ctx, dataset.NewReader(bufio.NewReaderSize(f, readBufferSize)))
	if err != nil {
		s.db.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	t.rows = n

	return t, nil
}

func (t *Table) fill(ctx context.Context, r *dataset.Reader) (int, error) {
	create := fmt.Sprintf(
		"CREATE TABLE %s (%s INTEGER NOT NULL, %s TEXT NOT NULL, %s REAL NOT NULL, %s TEXT NOT NULL)",
		quote(t.name),
		quote(dataset.ColumnID), quote(dataset.ColumnCategory),
		quote(dataset.ColumnValue), quote(dataset.ColumnDate),
	)
	if _, err := t.store.db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	full, err := tx.PrepareContext(ctx, insertSQL(t.name, insertBatch))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer full.Close()

	var (
		rows int
		args = make([]any, 0, insertBatch*4)
	)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}

		args = append(args, rec.ID, rec.Category, rec.Value, rec.Date.Format(dataset.DateLayout))
		rows++

		if len(args) == cap(args) {
			if _, err := full.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("insert rows: %w", err)
			}
			args = args[:0]
		}
	}

	if len(args) > 0 {
		if _, err := tx.ExecContext(ctx, insertSQL(t.name, len(args)/4), args...); err != nil {
			return 0, fmt.Errorf("insert rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}

	return rows, nil
}

func insertSQL(table string, rows int) string {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(quote(table))
	b.WriteString(" VALUES ")

	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?,?,?,?)")
	}

	return b.String()
}

// SortBy implements engine.Engine. Ties are broken by the source rowid,
// which follows input order.
func (e *Engine) SortBy(ctx context.Context, t engine.Table, name string) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	if _, err := tbl.lookup(name); err != nil {
		return nil, err
	}

	out := tbl.derive(slices.Clone(tbl.cols))
	query := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT * FROM %s ORDER BY %s, rowid",
		quote(out.name), quote(tbl.name), quote(name),
	)

	if err := out.create(ctx, query); err != nil {
		return nil, fmt.Errorf("sort by %s: %w", name, err)
	}

	out.rows = tbl.rows

	return out, nil
}

// GroupSum implements engine.Engine. Groups are emitted in order of first
// appearance.
func (e *Engine) GroupSum(
	ctx context.Context,
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

	gkind, err := tbl.lookup(groupColumn)
	if err != nil {
		return nil, err
	}
	if gkind != engine.KindString && gkind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(groupColumn, gkind)
	}

	skind, err := tbl.lookup(sumColumn)
	if err != nil {
		return nil, err
	}
	if skind != engine.KindFloat64 && skind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(sumColumn, skind)
	}

	out := tbl.derive([]column{
		{groupColumn, gkind},
		{sumColumn, engine.KindFloat64},
	})

	// TOTAL always yields a REAL, unlike SUM over integers.
	query := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT %s, TOTAL(%s) AS %s FROM %s GROUP BY %s ORDER BY MIN(rowid)",
		quote(out.name),
		quote(groupColumn), quote(sumColumn), quote(sumColumn),
		quote(tbl.name), quote(groupColumn),
	)

	if err := out.create(ctx, query); err != nil {
		return nil, fmt.Errorf("group %s sum %s: %w", groupColumn, sumColumn, err)
	}

	var n int

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quote(out.name))
	if err := tbl.store.db.QueryRowContext(ctx, countQuery).Scan(&n); err != nil {
		return nil, fmt.Errorf("count groups: %w", err)
	}

	out.rows = n

	return out, nil
}

// WithDerivedColumn implements engine.Engine.
func (e *Engine) WithDerivedColumn(
	ctx context.Context,
	t engine.Table,
	source string,
	multiplier float64,
	newColumn string,
) (engine.Table, error) {
	tbl, err := own(t)
	if err != nil {
		return nil, err
	}

	skind, err := tbl.lookup(source)
	if err != nil {
		return nil, err
	}
	if skind != engine.KindFloat64 && skind != engine.KindInt64 {
		return nil, engine.ColumnTypeError(source, skind)
	}

	if _, err := tbl.lookup(newColumn); err == nil {
		return nil, engine.ColumnExistsError(newColumn)
	}

	cols := append(slices.Clone(tbl.cols), column{newColumn, engine.KindFloat64})
	out := tbl.derive(cols)

	// CAST keeps integer sources from producing integer results when the
	// multiplier is integral.
	query := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT *, CAST(%s AS REAL) * %s AS %s FROM %s ORDER BY rowid",
		quote(out.name),
		quote(source), strconv.FormatFloat(multiplier, 'g', -1, 64), quote(newColumn),
		quote(tbl.name),
	)

	if err := out.create(ctx, query); err != nil {
		return nil, fmt.Errorf("derive %s: %w", newColumn, err)
	}

	out.rows = tbl.rows

	return out, nil
}

func own(t engine.Table) (*Table, error) {
	tbl, ok := t.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s: %w", Name, engine.ErrForeignTable)
	}
	if tbl.store.closed {
		return nil, ErrClosed
	}

	return tbl, nil
}

// quote renders name as an SQL identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
