package bench

import (
	"math/rand"

	"github.com/spaolacci/murmur3"
)

// Shuffle permutes tasks in place using rng.
func Shuffle(tasks []Task, rng *rand.Rand) {
	rng.Shuffle(len(tasks), func(i, j int) {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	})
}

// Partition deals tasks round-robin into w sublists. Sublist lengths differ
// by at most one and every task appears exactly once.
func Partition(tasks []Task, w int) [][]Task {
	if w < 1 {
		w = 1
	}
	parts := make([][]Task, w)
	for i := range parts {
		parts[i] = make([]Task, 0, len(tasks)/w+1)
	}
	for i, t := range tasks {
		parts[i%w] = append(parts[i%w], t)
	}
	return parts
}

// DeriveSeed maps a run id to a non-zero shuffle seed.
func DeriveSeed(runID string) int64 {
	seed := int64(murmur3.Sum64([]byte(runID)) & 0x7fffffffffffffff)
	if seed == 0 {
		seed = 1
	}
	return seed
}
