// Package dataset generates deterministic synthetic CSV datasets for
// dataframe engine benchmarking. Each row carries an id, a category label,
// a uniformly distributed value and a date inside a one-year window.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"strconv"
	"time"
)

// Column names in file order.
const (
	ColumnID       = "id"
	ColumnCategory = "category"
	ColumnValue    = "value"
	ColumnDate     = "date"
)

// DateLayout is the serialized form of the date column.
const DateLayout = "2006-01-02"

const (
	// DefaultRows is the row count used when none is configured.
	DefaultRows = 10_000_000
	// DefaultSeed is the seed used when none is configured.
	DefaultSeed int64 = 42

	// MaxValue is the exclusive upper bound of the value column.
	MaxValue = 1000.0
	// MaxDayOffset is the inclusive upper bound of the date offset in days.
	MaxDayOffset = 365
)

// Header is the dataset header row.
var Header = []string{ColumnID, ColumnCategory, ColumnValue, ColumnDate}

// Categories is the fixed, ordered label set of the category column.
var Categories = []string{"A", "B", "C", "D", "E"}

// Epoch is the first date of the date window.
var Epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Record is a single synthetic row.
type Record struct {
	ID       int64
	Category string
	Value    float64
	Date     time.Time
}

// Summary contains statistics about the generated dataset.
type Summary struct {
	Rows         int
	Categories   map[string]int
	MinValue     float64
	MaxValue     float64
	FirstDate    time.Time
	LastDate     time.Time
	BytesWritten int64
}

// Config controls dataset generation parameters.
type Config struct {
	Rows int
	Seed int64
}

// Generator produces deterministic datasets from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate writes the header and cfg.Rows records to w as CSV.
func (g *Generator) Generate(w io.Writer) (Summary, error) {
	summary := Summary{Categories: make(map[string]int, len(Categories))}

	if g.cfg.Rows < 0 {
		return summary, fmt.Errorf("invalid row count %d", g.cfg.Rows)
	}

	cw := &countingWriter{w: w}
	enc := csv.NewWriter(cw)

	if err := enc.Write(Header); err != nil {
		return summary, fmt.Errorf("encode header: %w", err)
	}

	line := make([]string, len(Header))

	for i := 1; i <= g.cfg.Rows; i++ {
		rec := g.next(int64(i))

		line[0] = strconv.FormatInt(rec.ID, 10)
		line[1] = rec.Category
		line[2] = FormatValue(rec.Value)
		line[3] = rec.Date.Format(DateLayout)

		if err := enc.Write(line); err != nil {
			return summary, fmt.Errorf("encode row %d: %w", rec.ID, err)
		}

		summary.observe(rec)
	}

	enc.Flush()
	if err := enc.Error(); err != nil {
		return summary, fmt.Errorf("flush dataset: %w", err)
	}

	summary.BytesWritten = cw.n

	return summary, nil
}

// WriteFile generates the dataset into path, replacing any existing file.
// A failed write may leave a truncated file behind.
func (g *Generator) WriteFile(path string) (Summary, error) {
	f, err := os.Create(path)
	if err != nil {
		return Summary{}, fmt.Errorf("create dataset %s: %w", path, err)
	}

	summary, err := g.Generate(f)
	if err != nil {
		f.Close()

		return summary, fmt.Errorf("write dataset %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return summary, fmt.Errorf("close dataset %s: %w", path, err)
	}

	return summary, nil
}

// next draws one record. Draw order is category, value, date offset.
func (g *Generator) next(id int64) Record {
	category := Categories[g.rng.Intn(len(Categories))]
	value := g.rng.Float64() * MaxValue
	offset := g.rng.Intn(MaxDayOffset + 1)

	return Record{
		ID:       id,
		Category: category,
		Value:    value,
		Date:     Epoch.AddDate(0, 0, offset),
	}
}

func (s *Summary) observe(rec Record) {
	if s.Rows == 0 {
		s.MinValue, s.MaxValue = rec.Value, rec.Value
		s.FirstDate, s.LastDate = rec.Date, rec.Date
	}

	s.Rows++
	s.Categories[rec.Category]++

	s.MinValue = min(s.MinValue, rec.Value)
	s.MaxValue = max(s.MaxValue, rec.Value)

	if rec.Date.Before(s.FirstDate) {
		s.FirstDate = rec.Date
	}
	if rec.Date.After(s.LastDate) {
		s.LastDate = rec.Date
	}
}

// FormatValue renders v as the shortest decimal that parses back to v.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}
