// Package harness times a fixed sequence of dataframe operations across
// engines against a shared dataset file.
package harness

import (
	"errors"
	"fmt"
	"time"
)

// Operation names a timed step.
type Operation string

// Operations in execution order.
const (
	OpLoad     Operation = "load"
	OpSort     Operation = "sort"
	OpGroupSum Operation = "group_sum"
	OpDerive   Operation = "derive"
)

// Operations returns every operation in execution order.
func Operations() []Operation {
	return []Operation{OpLoad, OpSort, OpGroupSum, OpDerive}
}

// ErrSkipped marks operations that could not run because load failed.
var ErrSkipped = errors.New("skipped after load failure")

// Measurement is one timed (run, engine, operation) observation.
type Measurement struct {
	Run       int       `json:"run"`
	Engine    string    `json:"engine"`
	Operation Operation `json:"operation"`
	Seconds   float64   `json:"seconds"`
	Rows      int       `json:"rows"`
}

// Duration returns Seconds as a time.Duration.
func (m Measurement) Duration() time.Duration {
	return time.Duration(m.Seconds * float64(time.Second))
}

// OpError identifies the (run, engine, operation) that failed.
type OpError struct {
	Run       int
	Engine    string
	Operation Operation
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("run %d: %s %s: %v", e.Run, e.Engine, e.Operation, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Failure is the serializable form of an OpError.
type Failure struct {
	Run       int       `json:"run"`
	Engine    string    `json:"engine"`
	Operation Operation `json:"operation"`
	Error     string    `json:"error"`
	Skipped   bool      `json:"skipped,omitempty"`

	err *OpError
}

// Err returns the underlying error.
func (f Failure) Err() error {
	if f.err != nil {
		return f.err
	}

	return &OpError{
		Run:       f.Run,
		Engine:    f.Engine,
		Operation: f.Operation,
		Err:       errors.New(f.Error),
	}
}

// DatasetInfo describes the file every engine loaded.
type DatasetInfo struct {
	Path      string `json:"path"`
	Rows      int    `json:"rows,omitempty"`
	Seed      int64  `json:"seed,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

// Result holds everything recorded during one Runner.Run.
type Result struct {
	RunID        string        `json:"run_id"`
	Dataset      DatasetInfo   `json:"dataset"`
	Engines      []string      `json:"engines"`
	Operations   []Operation   `json:"operations"`
	Runs         int           `json:"runs"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
	Measurements []Measurement `json:"measurements"`
	Failures     []Failure     `json:"failures,omitempty"`
}

// Err joins every failure into a single error, or returns nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f.Err()
	}

	return errors.Join(errs...)
}

// DatasetRows returns the dataset's row count: the configured value when
// known, otherwise the length of the first successful load. It returns 0
// when neither is available.
func (r *Result) DatasetRows() int {
	if r.Dataset.Rows > 0 {
		return r.Dataset.Rows
	}

	for _, m := range r.Measurements {
		if m.Operation == OpLoad {
			return m.Rows
		}
	}

	return 0
}

// Failed reports whether the (engine, operation) pair failed in any run.
func (r *Result) Failed(engine string, op Operation) bool {
	for _, f := range r.Failures {
		if f.Engine == engine && f.Operation == op {
			return true
		}
	}

	return false
}

// Samples returns the durations in seconds recorded for the pair, in run
// order.
func (r *Result) Samples(engine string, op Operation) []float64 {
	var out []float64

	for _, m := range r.Measurements {
		if m.Engine == engine && m.Operation == op {
			out = append(out, m.Seconds)
		}
	}

	return out
}

func (r *Result) record(m Measurement) {
	r.Measurements = append(r.Measurements, m)
}

func (r *Result) fail(err *OpError) {
	r.Failures = append(r.Failures, Failure{
		Run:       err.Run,
		Engine:    err.Engine,
		Operation: err.Operation,
		Error:     err.Err.Error(),
		Skipped:   errors.Is(err.Err, ErrSkipped),
		err:       err,
	})
}
