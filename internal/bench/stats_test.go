package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsOfFourValues(t *testing.T) {
	values := []float64{4, 2, 1, 3}

	assert.Equal(t, 2.5, Mean(values))
	assert.Equal(t, 3.0, Median(values), "median is the upper middle element")
	assert.InDelta(t, 1.2910, StdDev(values), 1e-4)
	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 4.0, Max(values))
	assert.Equal(t, []float64{4, 2, 1, 3}, values, "inputs must not be reordered")
}

func TestStatsEmptyAndSingle(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.Zero(t, Median(nil))
	assert.Zero(t, Min(nil))
	assert.Zero(t, Max(nil))
	assert.Zero(t, StdDev([]float64{7}))
	assert.Equal(t, 7.0, Median([]float64{7}))
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, 10.0, Percentile(values, 0))
	assert.Equal(t, 60.0, Percentile(values, 50))
	assert.Equal(t, 100.0, Percentile(values, 95))
	assert.Equal(t, 100.0, Percentile(values, 100))
}

func TestAggregateGroupsAndOrders(t *testing.T) {
	samples := []Sample{
		{Label: "Q2", Seq: 1, Elapsed: 3 * time.Second, Rows: 1},
		{Label: "Q1", Seq: 1, Elapsed: 2 * time.Second, Rows: 5},
		{Label: "Q2", Seq: 0, Elapsed: 1 * time.Second, Rows: 1},
		{Label: "Q1", Seq: 0, Elapsed: 4 * time.Second, Rows: 5},
	}

	stats := Aggregate(samples, map[string]int{"Q1": 2, "Q2": 3, "Q3": 1})
	require.Len(t, stats, 3)

	assert.Equal(t, "Q1", stats[0].Label)
	assert.Equal(t, []float64{4, 2}, stats[0].Timings)
	assert.Equal(t, 3.0, stats[0].Mean)
	assert.Equal(t, 2, stats[0].Count())

	assert.Equal(t, "Q2", stats[1].Label)
	assert.Equal(t, []float64{1, 3}, stats[1].Timings)
	assert.Equal(t, 3, stats[1].Repetitions)
	assert.Equal(t, []int{1, 1}, stats[1].Rows)

	assert.Equal(t, "Q3", stats[2].Label)
	assert.Zero(t, stats[2].Count())
	assert.Zero(t, stats[2].Mean)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Seconds(1.5))
	assert.Zero(t, Seconds(0))
}
