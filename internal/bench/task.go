// Package bench runs repeated timed queries against the index across
// concurrent workers and aggregates per-query latency statistics.
package bench

import (
	"context"
	"time"
)

// QueryFunc executes one query and returns the number of rows it produced.
// It must close over immutable arguments so repeated calls are independent.
type QueryFunc func(ctx context.Context) (rows int, err error)

// Task is one scheduled execution of a query type.
type Task struct {
	Label string
	Seq   int
	Query QueryFunc
}

// Sample is the timing of one executed task.
type Sample struct {
	Label   string        `json:"label"`
	Seq     int           `json:"seq"`
	Worker  int           `json:"worker"`
	Elapsed time.Duration `json:"elapsed"`
	Rows    int           `json:"rows"`
}

// entry is a registered query type.
type entry struct {
	label string
	count int
	query QueryFunc
}

// tasks expands the entry into count repetitions.
func (e entry) tasks() []Task {
	out := make([]Task, e.count)
	for i := range out {
		out[i] = Task{Label: e.label, Seq: i, Query: e.query}
	}
	return out
}
