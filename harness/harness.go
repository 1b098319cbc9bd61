package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/weiihann/framebench/engine"
)

// RunConfig holds parameters for a single benchmark execution.
type RunConfig struct {
	DatasetPath string
	// Rows and Seed are recorded in the Result when known.
	Rows int
	Seed int64
	// Runs repeats the whole sequence; values below 1 mean 1.
	Runs int
	// FailFast stops at the first failed operation.
	FailFast bool
	// CollectGarbage runs the GC before each timed interval.
	CollectGarbage bool
}

// Runner times the operation sequence on each engine in turn.
type Runner struct {
	Engines []engine.Engine
	Plan    Plan
	Logger  *slog.Logger

	now func() time.Time
}

// NewRunner creates a Runner for the given engines.
func NewRunner(engines []engine.Engine, plan Plan, logger *slog.Logger) *Runner {
	return &Runner{
		Engines: engines,
		Plan:    plan,
		Logger:  logger,
		now:     time.Now,
	}
}

// Run executes every operation once per engine per run and returns the
// collected measurements. Operation failures are recorded in the Result;
// the returned error is non-nil only when the run could not start, or
// when FailFast stopped it early.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if len(r.Engines) == 0 {
		return nil, fmt.Errorf("no engines to benchmark")
	}

	if err := r.Plan.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, len(r.Engines))
	seen := make(map[string]bool, len(r.Engines))

	for i, e := range r.Engines {
		name := e.Name()
		if seen[name] {
			return nil, fmt.Errorf("engine %q listed twice", name)
		}
		seen[name] = true
		names[i] = name
	}

	info, err := os.Stat(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	runs := max(cfg.Runs, 1)

	res := &Result{
		RunID: ulid.Make().String(),
		Dataset: DatasetInfo{
			Path:      cfg.DatasetPath,
			Rows:      cfg.Rows,
			Seed:      cfg.Seed,
			SizeBytes: info.Size(),
		},
		Engines:    names,
		Operations: Operations(),
		Runs:       runs,
		StartedAt:  r.clock(),
	}

	logger := r.logger().With(slog.String("run_id", res.RunID))

	for run := 1; run <= runs; run++ {
		for _, e := range r.Engines {
			if err := r.runEngine(ctx, logger, run, e, cfg, res); err != nil {
				res.Elapsed = r.clock().Sub(res.StartedAt)

				return res, err
			}
		}
	}

	res.Elapsed = r.clock().Sub(res.StartedAt)

	return res, nil
}

// runEngine loads the dataset into e and times each operation against the
// loaded table. A non-nil return means FailFast aborted the run.
func (r *Runner) runEngine(
	ctx context.Context,
	logger *slog.Logger,
	run int,
	e engine.Engine,
	cfg RunConfig,
	res *Result,
) error {
	name := e.Name()
	logger = logger.With(slog.String("engine", name), slog.Int("run", run))

	logger.InfoContext(ctx, "engine started")

	fail := func(op Operation, err error) error {
		opErr := &OpError{Run: run, Engine: name, Operation: op, Err: err}
		res.fail(opErr)

		logger.WarnContext(ctx, "operation failed",
			slog.String("operation", string(op)),
			slog.String("error", err.Error()),
		)

		if cfg.FailFast {
			return opErr
		}

		return nil
	}

	loaded, err := r.measure(ctx, logger, run, name, OpLoad, cfg, res, func() (engine.Table, error) {
		return e.Load(ctx, cfg.DatasetPath)
	})
	if err != nil {
		if abort := fail(OpLoad, err); abort != nil {
			return abort
		}

		for _, op := range Operations()[1:] {
			if abort := fail(op, fmt.Errorf("%w: %s", ErrSkipped, name)); abort != nil {
				return abort
			}
		}

		return nil
	}

	if c, ok := loaded.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.WarnContext(ctx, "failed to release table",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	steps := []struct {
		op Operation
		fn func() (engine.Table, error)
	}{
		{OpSort, func() (engine.Table, error) {
			return e.SortBy(ctx, loaded, r.Plan.SortColumn)
		}},
		{OpGroupSum, func() (engine.Table, error) {
			return e.GroupSum(ctx, loaded, r.Plan.GroupColumn, r.Plan.SumColumn)
		}},
		{OpDerive, func() (engine.Table, error) {
			return e.WithDerivedColumn(
				ctx, loaded, r.Plan.DeriveSource, r.Plan.Multiplier, r.Plan.DeriveColumn,
			)
		}},
	}

	for _, step := range steps {
		if _, err := r.measure(ctx, logger, run, name, step.op, cfg, res, step.fn); err != nil {
			if abort := fail(step.op, err); abort != nil {
				return abort
			}
		}
	}

	logger.InfoContext(ctx, "engine finished")

	return nil
}

// measure brackets fn with wall-clock reads and records the measurement
// when fn succeeds.
func (r *Runner) measure(
	ctx context.Context,
	logger *slog.Logger,
	run int,
	name string,
	op Operation,
	cfg RunConfig,
	res *Result,
	fn func() (engine.Table, error),
) (engine.Table, error) {
	if cfg.CollectGarbage {
		runtime.GC()
	}

	start := r.clock()
	out, err := fn()
	elapsed := r.clock().Sub(start)

	if err != nil {
		return nil, err
	}

	if elapsed < 0 {
		elapsed = 0
	}

	m := Measurement{
		Run:       run,
		Engine:    name,
		Operation: op,
		Seconds:   elapsed.Seconds(),
	}
	if out != nil {
		m.Rows = out.Len()
	}

	res.record(m)

	logger.DebugContext(ctx, "operation finished",
		slog.String("operation", string(op)),
		slog.Duration("elapsed", elapsed),
		slog.Int("rows", m.Rows),
	)

	return out, nil
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}

	return r.now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return r.Logger
}
