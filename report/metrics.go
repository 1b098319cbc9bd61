package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiihann/framebench/harness"
)

// WriteMetrics exports the result as a Prometheus textfile at path, for
// pickup by a node exporter textfile collector.
func WriteMetrics(path string, res *harness.Result) error {
	if res == nil {
		return fmt.Errorf("no results to export")
	}

	labels := prometheus.Labels{"run_id": res.RunID}

	seconds := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "framebench_operation_seconds",
			Help:        "Median wall-clock time of an operation, in seconds.",
			ConstLabels: labels,
		},
		[]string{"engine", "operation"},
	)

	failed := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "framebench_operation_failed",
			Help:        "1 if the operation failed in any run, 0 otherwise.",
			ConstLabels: labels,
		},
		[]string{"engine", "operation"},
	)

	rows := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "framebench_dataset_rows",
			Help:        "Number of data rows in the benchmark dataset.",
			ConstLabels: labels,
		},
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(seconds, failed, rows)

	for _, s := range Summarize(res) {
		op := string(s.Operation)

		if s.Defined() {
			seconds.WithLabelValues(s.Engine, op).Set(s.Median)
		}

		v := 0.0
		if s.Failed {
			v = 1
		}
		failed.WithLabelValues(s.Engine, op).Set(v)
	}

	rows.Set(float64(res.DatasetRows()))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
