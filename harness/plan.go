package harness

import (
	"fmt"
	"math"

	"github.com/weiihann/framebench/dataset"
)

// Plan names the columns and constant each timed operation uses.
type Plan struct {
	SortColumn   string
	GroupColumn  string
	SumColumn    string
	DeriveSource string
	DeriveColumn string
	Multiplier   float64
}

// DefaultPlan sorts by value, sums value per category and derives
// value * 1.1.
func DefaultPlan() Plan {
	return Plan{
		SortColumn:   dataset.ColumnValue,
		GroupColumn:  dataset.ColumnCategory,
		SumColumn:    dataset.ColumnValue,
		DeriveSource: dataset.ColumnValue,
		DeriveColumn: "value_scaled",
		Multiplier:   1.1,
	}
}

// Validate reports the first invalid field.
func (p Plan) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"sort column", p.SortColumn},
		{"group column", p.GroupColumn},
		{"sum column", p.SumColumn},
		{"derive source", p.DeriveSource},
		{"derive column", p.DeriveColumn},
	}

	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("plan: %s is empty", f.name)
		}
	}

	if p.GroupColumn == p.SumColumn {
		return fmt.Errorf("plan: group and sum column are both %q", p.GroupColumn)
	}

	if math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0) {
		return fmt.Errorf("plan: multiplier %v is not finite", p.Multiplier)
	}

	return nil
}
