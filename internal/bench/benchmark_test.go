package bench

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

// BenchmarkHarnessOverhead measures the per-sample cost of scheduling and
// timing with a query that does no work.
func BenchmarkHarnessOverhead(b *testing.B) {
	ctx := context.Background()
	noop := func(ctx context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		h := New(Options{Workers: 4, Shuffle: true, Seed: 1})
		for _, label := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
			if err := h.Enqueue(label, 200, noop); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := h.Run(ctx); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(b.N*1000)/b.Elapsed().Seconds(), "samples/sec")
}

// BenchmarkShufflePartition measures schedule construction for a large run
func BenchmarkShufflePartition(b *testing.B) {
	tasks := makeTasks(100000)
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		Shuffle(tasks, rng)
		if parts := Partition(tasks, 16); len(parts) != 16 {
			b.Fatalf("expected 16 partitions, got %d", len(parts))
		}
	}
}

// BenchmarkAggregate measures statistics over five query types
func BenchmarkAggregate(b *testing.B) {
	samples := make([]Sample, 50000)
	for i := range samples {
		samples[i] = Sample{
			Label:   []string{"Q1", "Q2", "Q3", "Q4", "Q5"}[i%5],
			Seq:     i / 5,
			Elapsed: time.Duration(i%977) * time.Microsecond,
		}
	}
	reps := map[string]int{"Q1": 10000, "Q2": 10000, "Q3": 10000, "Q4": 10000, "Q5": 10000}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if stats := Aggregate(samples, reps); len(stats) != 5 {
			b.Fatalf("expected 5 query stats, got %d", len(stats))
		}
	}
}
