package bench

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Label: fmt.Sprintf("Q%d", i%5), Seq: i}
	}
	return tasks
}

func TestProperty_PartitionBalanced(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sublist lengths differ by at most one", prop.ForAll(
		func(n, w int) bool {
			parts := Partition(makeTasks(n), w)
			if len(parts) != w {
				return false
			}
			lo, hi := n, 0
			for _, p := range parts {
				if len(p) < lo {
					lo = len(p)
				}
				if len(p) > hi {
					hi = len(p)
				}
			}
			return hi-lo <= 1
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 32),
	))

	properties.Property("every task appears exactly once", prop.ForAll(
		func(n, w int) bool {
			seen := make(map[int]int, n)
			for _, p := range Partition(makeTasks(n), w) {
				for _, task := range p {
					seen[task.Seq]++
				}
			}
			if len(seen) != n {
				return false
			}
			for _, c := range seen {
				if c != 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t)
}

func TestPartitionRoundRobin(t *testing.T) {
	parts := Partition(makeTasks(5), 2)
	assert.Equal(t, []int{0, 2, 4}, seqs(parts[0]))
	assert.Equal(t, []int{1, 3}, seqs(parts[1]))

	parts = Partition(makeTasks(2), 4)
	assert.Len(t, parts, 4)
	assert.Empty(t, parts[3])

	assert.Len(t, Partition(makeTasks(3), 0), 1)
}

func TestShuffleIsDeterministicPerSeed(t *testing.T) {
	a, b := makeTasks(50), makeTasks(50)
	Shuffle(a, rand.New(rand.NewSource(42)))
	Shuffle(b, rand.New(rand.NewSource(42)))
	assert.Equal(t, seqs(a), seqs(b))

	c := makeTasks(50)
	Shuffle(c, rand.New(rand.NewSource(43)))
	assert.NotEqual(t, seqs(a), seqs(c))
	assert.ElementsMatch(t, seqs(a), seqs(c))
}

func TestDeriveSeed(t *testing.T) {
	s1 := DeriveSeed("0190a7c4-2f7e-7c1a-9b1e-3f5a2d6c8e01")
	s2 := DeriveSeed("0190a7c4-2f7e-7c1a-9b1e-3f5a2d6c8e01")
	s3 := DeriveSeed("0190a7c4-2f7e-7c1a-9b1e-3f5a2d6c8e02")
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3)
	assert.Positive(t, s1)
}

func seqs(tasks []Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.Seq
	}
	return out
}
