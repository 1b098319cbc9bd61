// Package report formats benchmark results into comparison tables, charts
// and metric exports.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/weiihann/framebench/harness"
)

const failedCell = "FAILED"

// Generate writes a markdown comparison table for the given result.
func Generate(w io.Writer, res *harness.Result) error {
	if res == nil || len(res.Engines) == 0 {
		return fmt.Errorf("no results to report")
	}

	sums := lookup(Summarize(res))
	p := message.NewPrinter(language.English)

	// Header.
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run: %s\n", res.RunID)

	dataset := res.Dataset.Path
	if rows := res.DatasetRows(); rows > 0 {
		dataset += p.Sprintf(" (%d rows, %s)", rows, formatBytes(uint64(res.Dataset.SizeBytes)))
	} else {
		dataset += fmt.Sprintf(" (%s)", formatBytes(uint64(res.Dataset.SizeBytes)))
	}
	fmt.Fprintf(w, "Dataset: %s\n", dataset)

	stat := "time"
	if res.Runs > 1 {
		stat = "median time"
	}
	fmt.Fprintf(w, "Runs: %d (%s, ratio to fastest engine)\n", res.Runs, stat)
	fmt.Fprintln(w)

	// Table header.
	fmt.Fprintf(w, "| Operation | %s |\n", strings.Join(res.Engines, " | "))
	fmt.Fprintf(w, "|-----------|%s\n", strings.Repeat("--------|", len(res.Engines)))

	totals := make(map[string]float64, len(res.Engines))
	complete := make(map[string]bool, len(res.Engines))
	for _, name := range res.Engines {
		complete[name] = true
	}

	for _, op := range res.Operations {
		medians := make(map[string]float64, len(res.Engines))
		for _, name := range res.Engines {
			s := sums[pairKey{name, op}]
			if !s.Defined() {
				complete[name] = false
				continue
			}

			medians[name] = s.Median
			totals[name] += s.Median
		}

		writeRow(w, string(op), res.Engines, medians)
	}

	for name, ok := range complete {
		if !ok {
			delete(totals, name)
		}
	}

	writeRow(w, "**total**", res.Engines, totals)

	if len(res.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failures:")

		for _, f := range res.Failures {
			fmt.Fprintf(w, "  - run %d: %s %s: %s\n", f.Run, f.Engine, f.Operation, f.Error)
		}
	}

	return nil
}

func writeRow(w io.Writer, label string, engines []string, values map[string]float64) {
	fastest := findFastest(values)

	cells := make([]string, len(engines))
	for i, name := range engines {
		v, ok := values[name]
		if !ok {
			cells[i] = failedCell
			continue
		}

		ratio := 1.0
		if fastest > 0 && v > 0 {
			ratio = v / fastest
		}

		cells[i] = fmt.Sprintf("%s (%.2fx)", formatSeconds(v), ratio)
	}

	fmt.Fprintf(w, "| %s | %s |\n", label, strings.Join(cells, " | "))
}

// GenerateJSON writes the full result as JSON to w.
func GenerateJSON(w io.Writer, res *harness.Result) error {
	if res == nil {
		return fmt.Errorf("no results to report")
	}

	out := struct {
		*harness.Result
		Summaries []Summary `json:"summaries"`
	}{
		Result:    res,
		Summaries: Summarize(res),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// GenerateCSV writes one line per measurement.
func GenerateCSV(w io.Writer, res *harness.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"run", "engine", "operation", "seconds", "rows"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, m := range res.Measurements {
		if err := cw.Write([]string{
			strconv.Itoa(m.Run),
			m.Engine,
			string(m.Operation),
			strconv.FormatFloat(m.Seconds, 'f', -1, 64),
			strconv.Itoa(m.Rows),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func findFastest(values map[string]float64) float64 {
	fastest := math.Inf(1)
	for _, v := range values {
		if v > 0 && v < fastest {
			fastest = v
		}
	}

	if math.IsInf(fastest, 1) {
		return 0
	}

	return fastest
}

func formatSeconds(s float64) string {
	switch {
	case s < 0.001:
		return fmt.Sprintf("%.0fµs", s*1e6)
	case s < 1:
		return fmt.Sprintf("%.0fms", s*1e3)
	default:
		return fmt.Sprintf("%.2fs", s)
	}
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
