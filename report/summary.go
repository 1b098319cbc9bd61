package report

import (
	"github.com/aclements/go-moremath/stats"

	"github.com/weiihann/framebench/harness"
)

// Summary aggregates the samples of one (engine, operation) pair across
// runs. Outliers beyond 1.5 IQR are dropped before Min, Max and Mean.
type Summary struct {
	Engine    string            `json:"engine"`
	Operation harness.Operation `json:"operation"`
	N         int               `json:"n"`
	Min       float64           `json:"min"`
	Max       float64           `json:"max"`
	Mean      float64           `json:"mean"`
	Median    float64           `json:"median"`
	Failed    bool              `json:"failed"`
}

// Defined reports whether the pair produced at least one sample and never
// failed.
func (s Summary) Defined() bool {
	return s.N > 0 && !s.Failed
}

// Summarize returns one Summary per (operation, engine) pair, operations
// outermost, in result order.
func Summarize(res *harness.Result) []Summary {
	out := make([]Summary, 0, len(res.Operations)*len(res.Engines))

	for _, op := range res.Operations {
		for _, name := range res.Engines {
			s := Summary{
				Engine:    name,
				Operation: op,
				Failed:    res.Failed(name, op),
			}

			if xs := res.Samples(name, op); len(xs) > 0 {
				computeStats(&s, xs)
			}

			out = append(out, s)
		}
	}

	return out
}

func computeStats(s *Summary, xs []float64) {
	values := stats.Sample{Xs: xs}
	s.N = len(xs)
	s.Median = values.Quantile(0.5)

	// Discard outliers.
	q1, q3 := values.Quantile(0.25), values.Quantile(0.75)
	lo, hi := q1-1.5*(q3-q1), q3+1.5*(q3-q1)

	var kept []float64
	for _, x := range xs {
		if lo <= x && x <= hi {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		kept = xs
	}

	s.Min, s.Max = stats.Bounds(kept)
	s.Mean = stats.Mean(kept)
}

// lookup indexes summaries by pair.
func lookup(sums []Summary) map[pairKey]Summary {
	m := make(map[pairKey]Summary, len(sums))
	for _, s := range sums {
		m[pairKey{s.Engine, s.Operation}] = s
	}

	return m
}

type pairKey struct {
	engine string
	op     harness.Operation
}
