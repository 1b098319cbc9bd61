// Package config handles the YAML benchmark configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/framebench/dataset"
	"github.com/weiihann/framebench/harness"
)

const (
	// DefaultDatasetPath is where run and generate write the dataset when no
	// existing file is given.
	DefaultDatasetPath = "framebench-data.csv"

	// EnvLogLevel overrides log_level from the file.
	EnvLogLevel = "FRAMEBENCH_LOG_LEVEL"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// Config is the root configuration structure.
type Config struct {
	Dataset  DatasetConfig `yaml:"dataset"`
	Engines  []string      `yaml:"engines,omitempty"`
	Runs     int           `yaml:"runs"`
	FailFast bool          `yaml:"fail_fast"`
	GC       bool          `yaml:"gc"`
	Plan     PlanConfig    `yaml:"plan"`
	Output   OutputConfig  `yaml:"output"`
	LogLevel string        `yaml:"log_level"`
}

// DatasetConfig selects the file every engine loads. When Path is set the
// file must already exist; otherwise a fresh dataset of Rows rows is
// generated at Out.
type DatasetConfig struct {
	Path string `yaml:"path,omitempty"`
	Out  string `yaml:"out"`
	Rows int    `yaml:"rows"`
	Seed int64  `yaml:"seed"`
}

// PlanConfig mirrors harness.Plan.
type PlanConfig struct {
	SortColumn   string  `yaml:"sort_column"`
	GroupColumn  string  `yaml:"group_column"`
	SumColumn    string  `yaml:"sum_column"`
	DeriveSource string  `yaml:"derive_source"`
	DeriveColumn string  `yaml:"derive_column"`
	Multiplier   float64 `yaml:"multiplier"`
}

// OutputConfig controls where results go besides stdout.
type OutputConfig struct {
	Format  string `yaml:"format"`
	Chart   string `yaml:"chart,omitempty"`
	Metrics string `yaml:"metrics,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	plan := harness.DefaultPlan()

	return &Config{
		Dataset: DatasetConfig{
			Out:  DefaultDatasetPath,
			Rows: dataset.DefaultRows,
			Seed: dataset.DefaultSeed,
		},
		Runs: 1,
		Plan: PlanConfig{
			SortColumn:   plan.SortColumn,
			GroupColumn:  plan.GroupColumn,
			SumColumn:    plan.SumColumn,
			DeriveSource: plan.DeriveSource,
			DeriveColumn: plan.DeriveColumn,
			Multiplier:   plan.Multiplier,
		},
		Output:   OutputConfig{Format: FormatMarkdown},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML configuration file on top of Default. Unknown
// keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Dataset.Path == "" && c.Dataset.Out == "" {
		return fmt.Errorf("dataset: neither path nor out is set")
	}

	if c.Dataset.Rows < 0 {
		return fmt.Errorf("dataset: rows must be >= 0, got %d", c.Dataset.Rows)
	}

	if c.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", c.Runs)
	}

	for _, name := range c.Engines {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("engines: empty engine name")
		}
	}

	if err := c.HarnessPlan().Validate(); err != nil {
		return err
	}

	switch c.Output.Format {
	case FormatMarkdown, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("output: unknown format %q", c.Output.Format)
	}

	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}

	return nil
}

// HarnessPlan converts the plan section.
func (c *Config) HarnessPlan() harness.Plan {
	return harness.Plan{
		SortColumn:   c.Plan.SortColumn,
		GroupColumn:  c.Plan.GroupColumn,
		SumColumn:    c.Plan.SumColumn,
		DeriveSource: c.Plan.DeriveSource,
		DeriveColumn: c.Plan.DeriveColumn,
		Multiplier:   c.Plan.Multiplier,
	}
}

// Level returns the configured log level, info when unrecognised.
func (c *Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func parseLogLevel(s string) slog.Level {
	if l, ok := levels[strings.ToLower(s)]; ok {
		return l
	}

	return slog.LevelInfo
}

// NewLogger creates a text logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
