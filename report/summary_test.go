package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/framebench/harness"
)

func TestSummarizeOrder(t *testing.T) {
	sums := Summarize(sampleResult())
	require.Len(t, sums, 8)

	assert.Equal(t, "columnar", sums[0].Engine)
	assert.Equal(t, harness.OpLoad, sums[0].Operation)
	assert.Equal(t, "rows", sums[1].Engine)
	assert.Equal(t, harness.OpLoad, sums[1].Operation)
	assert.Equal(t, harness.OpDerive, sums[7].Operation)
}

func TestSummarizeFailedPair(t *testing.T) {
	sums := lookup(Summarize(sampleResult()))

	failed := sums[pairKey{"rows", harness.OpDerive}]
	assert.True(t, failed.Failed)
	assert.Zero(t, failed.N)
	assert.False(t, failed.Defined())

	ok := sums[pairKey{"rows", harness.OpSort}]
	assert.True(t, ok.Defined())
	assert.InDelta(t, 0.004, ok.Median, 1e-12)
}

func TestComputeStats(t *testing.T) {
	var s Summary
	computeStats(&s, []float64{1, 2, 3, 4, 100})

	assert.Equal(t, 5, s.N)
	assert.InDelta(t, 3, s.Median, 1e-9)
	assert.InDelta(t, 1, s.Min, 1e-9)
	assert.InDelta(t, 4, s.Max, 1e-9, "outlier dropped")
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
}

func TestComputeStatsSingleSample(t *testing.T) {
	var s Summary
	computeStats(&s, []float64{0.25})

	assert.Equal(t, 1, s.N)
	assert.InDelta(t, 0.25, s.Median, 1e-12)
	assert.InDelta(t, 0.25, s.Min, 1e-12)
	assert.InDelta(t, 0.25, s.Max, 1e-12)
	assert.InDelta(t, 0.25, s.Mean, 1e-12)
}

func TestComputeStatsUnsortedSample(t *testing.T) {
	xs := []float64{9, 1, 5, 3, 7}

	var s Summary
	computeStats(&s, xs)

	assert.InDelta(t, 5, s.Median, 1e-9)
	assert.InDelta(t, 1, s.Min, 1e-9)
	assert.InDelta(t, 9, s.Max, 1e-9)
	assert.InDelta(t, 5, s.Mean, 1e-9)
	assert.Equal(t, []float64{9, 1, 5, 3, 7}, xs, "input left unsorted")
}
