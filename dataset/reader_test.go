package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadAllRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	gen := NewGenerator(Config{Rows: 200, Seed: 11})
	if _, err := gen.Generate(&buf); err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	records, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if len(records) != 200 {
		t.Fatalf("records = %d, want 200", len(records))
	}

	replay := NewGenerator(Config{Rows: 200, Seed: 11})
	for i, rec := range records {
		want := replay.next(int64(i + 1))
		if rec.ID != want.ID || rec.Category != want.Category ||
			rec.Value != want.Value || !rec.Date.Equal(want.Date) {
			t.Fatalf("record %d = %+v, want %+v", i, rec, want)
		}
	}
}

func TestReadHeaderOnly(t *testing.T) {
	records, err := ReadAll(strings.NewReader("id,category,value,date\n"))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLine   int
		wantColumn string
		wantHeader bool
	}{
		{
			name:       "empty file",
			input:      "",
			wantLine:   1,
			wantHeader: true,
		},
		{
			name:       "wrong header",
			input:      "id,label,value,date\n",
			wantLine:   1,
			wantHeader: true,
		},
		{
			name:       "bad id",
			input:      "id,category,value,date\nx,A,1,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnID,
		},
		{
			name:       "bad value",
			input:      "id,category,value,date\n1,A,1,2020-01-01\n2,B,nope,2020-01-02\n",
			wantLine:   3,
			wantColumn: ColumnValue,
		},
		{
			name:       "bad date",
			input:      "id,category,value,date\n1,A,1,01/02/2020\n",
			wantLine:   2,
			wantColumn: ColumnDate,
		},
		{
			name:       "empty category",
			input:      "id,category,value,date\n1,,1,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnCategory,
		},
		{
			name:       "unknown category",
			input:      "id,category,value,date\n1,Z,1,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnCategory,
		},
		{
			name:       "multi-letter category",
			input:      "id,category,value,date\n1,AB,1,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnCategory,
		},
		{
			name:       "NaN value",
			input:      "id,category,value,date\n1,A,NaN,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnValue,
		},
		{
			name:       "infinite value",
			input:      "id,category,value,date\n1,A,-Inf,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnValue,
		},
		{
			name:       "out of range value",
			input:      "id,category,value,date\n1,A,1e999,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnValue,
		},
		{
			name:       "hex value",
			input:      "id,category,value,date\n1,A,0x1p3,2020-01-01\n",
			wantLine:   2,
			wantColumn: ColumnValue,
		},
		{
			name:     "short row",
			input:    "id,category,value,date\n1,A,1\n",
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not a *ParseError", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", perr.Line, tt.wantLine)
			}
			if perr.Column != tt.wantColumn {
				t.Errorf("column = %q, want %q", perr.Column, tt.wantColumn)
			}
			if got := errors.Is(err, ErrHeader); got != tt.wantHeader {
				t.Errorf("errors.Is(err, ErrHeader) = %v, want %v", got, tt.wantHeader)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"0", 0},
		{"12.5", 12.5},
		{"-3", -3},
		{"999.9999999999999", 999.9999999999999},
		{"1e-7", 1e-7},
	}

	for _, tt := range tests {
		got, err := parseValue(tt.input)
		if err != nil {
			t.Errorf("parseValue(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseValue(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
