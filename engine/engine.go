// Package engine defines the contract every benchmarked dataframe backend
// implements and a registry for looking backends up by name.
package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoColumn is returned when an operation names a missing column.
	ErrNoColumn = errors.New("no such column")

	// ErrColumnType is returned when a column has the wrong kind for an
	// operation or accessor.
	ErrColumnType = errors.New("unsupported column type")

	// ErrColumnExists is returned when a derived column would shadow an
	// existing one.
	ErrColumnExists = errors.New("column already exists")

	// ErrUnsupported is returned by engines that do not implement an
	// operation.
	ErrUnsupported = errors.New("operation not supported")

	// ErrForeignTable is returned when an engine is handed a Table
	// produced by a different engine.
	ErrForeignTable = errors.New("table belongs to another engine")
)

// Kind is the element type of a column.
type Kind int

const (
	KindInt64 Kind = iota + 1
	KindFloat64
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Table is an engine-specific in-memory table. Accessors return copies in
// row order.
type Table interface {
	Len() int
	Columns() []string
	Float64s(column string) ([]float64, error)
	Int64s(column string) ([]int64, error)
	// Strings returns string columns as-is and date columns formatted
	// with dataset.DateLayout.
	Strings(column string) ([]string, error)
}

// Engine is a pluggable dataframe backend. Operations never modify their
// input table.
type Engine interface {
	Name() string

	// Load parses the dataset file at path into a new table.
	Load(ctx context.Context, path string) (Table, error)

	// SortBy orders all rows ascending by column. Ties keep input order.
	SortBy(ctx context.Context, t Table, column string) (Table, error)

	// GroupSum partitions rows by groupColumn and sums sumColumn within
	// each partition. The result has the columns [groupColumn, sumColumn].
	GroupSum(ctx context.Context, t Table, groupColumn, sumColumn string) (Table, error)

	// WithDerivedColumn returns t plus a float64 column named newColumn
	// holding source * multiplier.
	WithDerivedColumn(
		ctx context.Context,
		t Table,
		source string,
		multiplier float64,
		newColumn string,
	) (Table, error)
}

// NoColumnError wraps ErrNoColumn with the missing column name.
func NoColumnError(column string) error {
	return fmt.Errorf("%w %q", ErrNoColumn, column)
}

// ColumnTypeError wraps ErrColumnType with the column name and its kind.
func ColumnTypeError(column string, kind Kind) error {
	return fmt.Errorf("%w: column %q is %s", ErrColumnType, column, kind)
}

// ColumnExistsError wraps ErrColumnExists with the column name.
func ColumnExistsError(column string) error {
	return fmt.Errorf("%w: %q", ErrColumnExists, column)
}

// CheckGroupSum rejects a group/sum column pair that would produce two
// columns with the same name.
func CheckGroupSum(groupColumn, sumColumn string) error {
	if groupColumn == sumColumn {
		return fmt.Errorf("group and sum column are both %q", groupColumn)
	}

	return nil
}
