package bench

import (
	"math"
	"sort"
	"time"
)

// Mean returns the arithmetic mean of values, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the nearest-rank percentile: the element at index
// int(n*p/100) of a sorted copy, clamped to the last element.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	i := int(float64(len(sorted)) * p / 100)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	if i < 0 {
		i = 0
	}
	return sorted[i]
}

// Median is Percentile(values, 50). For even counts this is the upper middle
// element, so Median([1 2 3 4]) is 3.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// StdDev returns the sample standard deviation (N-1 denominator), or 0 for
// fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// Min returns the smallest value, or 0 for no values.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value, or 0 for no values.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// QueryStats summarizes the samples of one query type. Timings are in
// seconds, in task sequence order.
type QueryStats struct {
	Label       string    `json:"label"`
	Repetitions int       `json:"repetitions"`
	Timings     []float64 `json:"timings"`
	Rows        []int     `json:"rows"`
	Mean        float64   `json:"mean"`
	StdDev      float64   `json:"stddev"`
	Median      float64   `json:"median"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
}

// Count returns the number of recorded samples.
func (s QueryStats) Count() int { return len(s.Timings) }

// Aggregate groups samples by label and computes statistics, sorted by label.
// repetitions maps each label to its requested repetition count; labels with
// no samples still get an entry when present in repetitions.
func Aggregate(samples []Sample, repetitions map[string]int) []QueryStats {
	byLabel := make(map[string][]Sample)
	for _, s := range samples {
		byLabel[s.Label] = append(byLabel[s.Label], s)
	}
	for label := range repetitions {
		if _, ok := byLabel[label]; !ok {
			byLabel[label] = nil
		}
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]QueryStats, 0, len(labels))
	for _, label := range labels {
		group := byLabel[label]
		sort.Slice(group, func(i, j int) bool { return group[i].Seq < group[j].Seq })

		timings := make([]float64, len(group))
		rows := make([]int, len(group))
		for i, s := range group {
			timings[i] = s.Elapsed.Seconds()
			rows[i] = s.Rows
		}

		reps, ok := repetitions[label]
		if !ok {
			reps = len(group)
		}
		qs := Summarize(label, timings)
		qs.Repetitions = reps
		qs.Rows = rows
		out = append(out, qs)
	}
	return out
}

// Summarize computes the statistics of one query type from its timings in
// seconds. Repetitions defaults to the number of timings.
func Summarize(label string, timings []float64) QueryStats {
	return QueryStats{
		Label:       label,
		Repetitions: len(timings),
		Timings:     timings,
		Mean:        Mean(timings),
		StdDev:      StdDev(timings),
		Median:      Median(timings),
		Min:         Min(timings),
		Max:         Max(timings),
	}
}

// Seconds converts a float number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
