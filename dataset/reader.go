package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// ErrHeader is returned when the first line is not the dataset header.
var ErrHeader = errors.New("unexpected dataset header")

// ParseError reports a field that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}

	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader decodes Records from a dataset file.
type Reader struct {
	csv    *csv.Reader
	line   int
	header bool
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	return &Reader{csv: cr}
}

// Read returns the next record, or io.EOF once the input is exhausted.
func (r *Reader) Read() (Record, error) {
	if !r.header {
		if err := r.readHeader(); err != nil {
			return Record{}, err
		}
	}

	fields, err := r.csv.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}

	r.line++

	if err != nil {
		return Record{}, &ParseError{Line: r.line, Err: err}
	}

	return r.decode(fields)
}

func (r *Reader) readHeader() error {
	fields, err := r.csv.Read()
	r.line++

	if err == io.EOF {
		return &ParseError{Line: r.line, Err: fmt.Errorf("%w: empty file", ErrHeader)}
	}
	if err != nil {
		return &ParseError{Line: r.line, Err: err}
	}

	for i, name := range Header {
		if fields[i] != name {
			return &ParseError{
				Line: r.line,
				Err:  fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i, fields[i], name),
			}
		}
	}

	r.header = true

	return nil
}

func (r *Reader) decode(fields []string) (Record, error) {
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Record{}, &ParseError{Line: r.line, Column: ColumnID, Err: err}
	}

	category, ok := categorySet[fields[1]]
	if !ok {
		return Record{}, &ParseError{
			Line: r.line, Column: ColumnCategory, Err: fmt.Errorf("unknown category %q", fields[1]),
		}
	}

	value, err := parseValue(fields[2])
	if err != nil {
		return Record{}, &ParseError{Line: r.line, Column: ColumnValue, Err: err}
	}

	date, err := time.Parse(DateLayout, fields[3])
	if err != nil {
		return Record{}, &ParseError{Line: r.line, Column: ColumnDate, Err: err}
	}

	return Record{
		ID:       id,
		Category: category,
		Value:    value,
		Date:     date,
	}, nil
}

// categorySet maps each label to its canonical string so records never
// retain the reader's reused line buffer.
var categorySet = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[c] = c
	}

	return m
}()

// parseValue accepts finite plain decimal literals only: no hex floats,
// underscores, NaN or Inf.
func parseValue(s string) (float64, error) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return 0, fmt.Errorf("invalid decimal %q", s)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q out of range", s)
	}

	return v, nil
}

// ReadAll decodes every remaining record from r.
func ReadAll(r io.Reader) ([]Record, error) {
	dr := NewReader(r)

	var records []Record

	for {
		rec, err := dr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
}
