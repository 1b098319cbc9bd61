// Package main provides the CLI entry point for framebench, a dataframe
// engine benchmarking tool.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/framebench/config"
	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/engine"
	"github.com/weiihann/framebench/engine/colframe"
	"github.com/weiihann/framebench/engine/rowframe"
	"github.com/weiihann/framebench/engine/sqlframe"
	"github.com/weiihann/framebench/harness"
	"github.com/weiihann/framebench/report"
)

func main() {
	level := new(slog.LevelVar)
	logger := config.NewLogger(os.Stderr, level)

	reg, err := newRegistry()
	if err != nil {
		logger.Error("register engines", slog.String("error", err.Error()))
		os.Exit(1)
	}

	root := newRootCmd(logger, level, reg)
	if err := root.Execute(); err != nil {
		logger.Error("framebench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRegistry() (*engine.Registry, error) {
	reg := engine.NewRegistry()

	for _, e := range []engine.Engine{rowframe.New(), colframe.New(), sqlframe.New()} {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar, reg *engine.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:   "framebench",
		Short: "Dataframe engine benchmarking tool",
		Long: `Framebench generates a deterministic synthetic dataset and times the
same load, sort, group-sum and derive operations on several dataframe
engines, reporting each engine's time relative to the fastest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGenerateCmd(logger, level),
		newRunCmd(logger, level, reg),
		newEnginesCmd(reg),
	)

	return root
}

func newGenerateCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var (
		rows int
		seed int64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic benchmark dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			cfg.ApplyEnv()
			level.Set(cfg.Level())

			cfg.Dataset.Rows = rows
			cfg.Dataset.Seed = seed
			cfg.Dataset.Out = out

			if err := cfg.Validate(); err != nil {
				return err
			}

			if _, err := generateDataset(cmd.Context(), logger, cfg.Dataset); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, out)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&rows, "rows", dataset.DefaultRows,
		"Number of data rows to generate")
	flags.Int64Var(&seed, "seed", dataset.DefaultSeed,
		"Random seed")
	flags.StringVar(&out, "out", config.DefaultDatasetPath,
		"Output path for the dataset file")

	return cmd
}

func newEnginesCmd(reg *engine.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List available engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range reg.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		},
	}
}

func newRunCmd(logger *slog.Logger, level *slog.LevelVar, reg *engine.Registry) *cobra.Command {
	var (
		configPath string
		flagCfg    = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Benchmark dataframe engines",
		Long: `Generate a dataset (or reuse one given by --dataset), time every
operation on each selected engine and print a comparison report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error

				cfg, err = config.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}

			overrideFromFlags(cmd, cfg, flagCfg)
			cfg.ApplyEnv()

			if err := cfg.Validate(); err != nil {
				return err
			}
			level.Set(cfg.Level())

			return runBenchmark(cmd.Context(), cmd.OutOrStdout(), logger, reg, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")
	flags.StringVar(&flagCfg.Dataset.Path, "dataset", "",
		"Existing dataset file to load (skip generation)")
	flags.IntVar(&flagCfg.Dataset.Rows, "rows", flagCfg.Dataset.Rows,
		"Number of data rows to generate")
	flags.Int64Var(&flagCfg.Dataset.Seed, "seed", flagCfg.Dataset.Seed,
		"Random seed")
	flags.StringVar(&flagCfg.Dataset.Out, "out", flagCfg.Dataset.Out,
		"Output path for the generated dataset")
	flags.StringSliceVar(&flagCfg.Engines, "engines", nil,
		"Engines to benchmark (default: all registered)")
	flags.IntVar(&flagCfg.Runs, "runs", flagCfg.Runs,
		"Number of times to repeat the whole sequence")
	flags.BoolVar(&flagCfg.FailFast, "fail-fast", false,
		"Stop at the first failed operation")
	flags.BoolVar(&flagCfg.GC, "gc", false,
		"Run the garbage collector before each timed operation")
	flags.StringVar(&flagCfg.Output.Format, "format", flagCfg.Output.Format,
		"Report format: markdown, json, csv")
	flags.StringVar(&flagCfg.Output.Chart, "chart", "",
		"Write a bar chart to this file (png, svg, pdf)")
	flags.StringVar(&flagCfg.Output.Metrics, "metrics", "",
		"Write a Prometheus textfile to this path")
	flags.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel,
		"Log level: debug, info, warn, error")

	return cmd
}

// overrideFromFlags copies every flag the user set explicitly from src
// into dst, leaving file and default values alone otherwise.
func overrideFromFlags(cmd *cobra.Command, dst, src *config.Config) {
	flags := cmd.Flags()

	set := map[string]func(){
		"dataset":   func() { dst.Dataset.Path = src.Dataset.Path },
		"rows":      func() { dst.Dataset.Rows = src.Dataset.Rows },
		"seed":      func() { dst.Dataset.Seed = src.Dataset.Seed },
		"out":       func() { dst.Dataset.Out = src.Dataset.Out },
		"engines":   func() { dst.Engines = src.Engines },
		"runs":      func() { dst.Runs = src.Runs },
		"fail-fast": func() { dst.FailFast = src.FailFast },
		"gc":        func() { dst.GC = src.GC },
		"format":    func() { dst.Output.Format = src.Output.Format },
		"chart":     func() { dst.Output.Chart = src.Output.Chart },
		"metrics":   func() { dst.Output.Metrics = src.Output.Metrics },
		"log-level": func() { dst.LogLevel = src.LogLevel },
	}

	for name, apply := range set {
		if flags.Changed(name) {
			apply()
		}
	}
}

func runBenchmark(
	ctx context.Context,
	out io.Writer,
	logger *slog.Logger,
	reg *engine.Registry,
	cfg *config.Config,
) error {
	engines, err := reg.Select(cfg.Engines)
	if err != nil {
		return fmt.Errorf("select engines: %w", err)
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.Any("engines", engineNames(engines)),
		slog.Int("runs", cfg.Runs),
	)

	// Step 1: Resolve the dataset (generate unless an existing file is given).
	runCfg := harness.RunConfig{
		Runs:           cfg.Runs,
		FailFast:       cfg.FailFast,
		CollectGarbage: cfg.GC,
	}

	if cfg.Dataset.Path != "" {
		if _, err := os.Stat(cfg.Dataset.Path); err != nil {
			return fmt.Errorf("dataset: %w", err)
		}

		runCfg.DatasetPath = cfg.Dataset.Path
	} else {
		summary, err := generateDataset(ctx, logger, cfg.Dataset)
		if err != nil {
			return err
		}

		runCfg.DatasetPath = cfg.Dataset.Out
		runCfg.Rows = summary.Rows
		runCfg.Seed = cfg.Dataset.Seed
	}

	// Step 2: Time every operation on every engine.
	runner := harness.NewRunner(engines, cfg.HarnessPlan(), logger)

	res, runErr := runner.Run(ctx, runCfg)
	if res == nil {
		return fmt.Errorf("run benchmark: %w", runErr)
	}

	// Step 3: Report, even when the run stopped early.
	if err := writeReport(out, cfg.Output.Format, res); err != nil {
		return err
	}

	if cfg.Output.Chart != "" {
		if err := report.Chart(cfg.Output.Chart, res); err != nil {
			return err
		}

		logger.InfoContext(ctx, "chart written", slog.String("path", cfg.Output.Chart))
	}

	if cfg.Output.Metrics != "" {
		if err := report.WriteMetrics(cfg.Output.Metrics, res); err != nil {
			return err
		}

		logger.InfoContext(ctx, "metrics written", slog.String("path", cfg.Output.Metrics))
	}

	if runErr != nil {
		return fmt.Errorf("run benchmark: %w", runErr)
	}

	if err := res.Err(); err != nil {
		return fmt.Errorf("%d operation(s) failed: %w", len(res.Failures), err)
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.String("run_id", res.RunID),
		slog.Duration("elapsed", res.Elapsed),
	)

	return nil
}

func writeReport(w io.Writer, format string, res *harness.Result) error {
	var err error

	switch format {
	case config.FormatJSON:
		err = report.GenerateJSON(w, res)
	case config.FormatCSV:
		err = report.GenerateCSV(w, res)
	default:
		err = report.Generate(w, res)
	}

	if err != nil {
		return fmt.Errorf("generate %s report: %w", format, err)
	}

	return nil
}

func generateDataset(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.DatasetConfig,
) (dataset.Summary, error) {
	gen := dataset.NewGenerator(dataset.Config{
		Rows: cfg.Rows,
		Seed: cfg.Seed,
	})

	summary, err := gen.WriteFile(cfg.Out)
	if err != nil {
		return summary, fmt.Errorf("generate dataset: %w", err)
	}

	logger.InfoContext(ctx, "dataset generated",
		slog.String("path", cfg.Out),
		slog.Int("rows", summary.Rows),
		slog.Int64("seed", cfg.Seed),
		slog.Int64("bytes", summary.BytesWritten),
		slog.Any("categories", summary.Categories),
	)

	return summary, nil
}

func engineNames(engines []engine.Engine) []string {
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.Name()
	}

	return names
}
