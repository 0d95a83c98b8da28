// Package observability tracks which index fields the benchmark exercises and how.
package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/arkilian/spatialbench/internal/query/filter"
)

// Usage kinds recorded per field.
const (
	KindFilter = "fq"
	KindQuery  = "q"
	KindStats  = "stats"
	KindFacet  = "facet"
)

// QueryStats tracks field usage frequency across index requests.
type QueryStats struct {
	mu        sync.RWMutex
	fieldFreq map[string]*FieldStats
	requests  map[string]int64
	window    time.Duration
}

// FieldStats holds usage statistics for one index field.
type FieldStats struct {
	Field     string
	Frequency int64
	LastSeen  time.Time
	Kinds     map[string]int // kind → count (e.g., "fq" → 5, "stats" → 2)
}

// NewQueryStats creates a new field usage tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		fieldFreq: make(map[string]*FieldStats),
		requests:  make(map[string]int64),
		window:    window,
	}
}

// RecordField records one use of field under the given kind.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordField(field, kind string) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recordLocked(field, kind, time.Now())
}

// RecordFilter records every field referenced by f.
func (q *QueryStats) RecordFilter(f filter.Filter, kind string) {
	if q == nil || f.IsEmpty() {
		return
	}
	names := filter.FieldNames(f)
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range names {
		q.recordLocked(name, kind, now)
	}
}

// RecordRequest counts one request of the given kind (select, stats, facet, cores).
func (q *QueryStats) RecordRequest(kind string) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests[kind]++
}

func (q *QueryStats) recordLocked(field, kind string, now time.Time) {
	stats, exists := q.fieldFreq[field]
	if !exists {
		stats = &FieldStats{
			Field: field,
			Kinds: make(map[string]int),
		}
		q.fieldFreq[field] = stats
	}

	stats.Frequency++
	stats.LastSeen = now
	stats.Kinds[kind]++
}

// Requests returns a copy of the per-kind request counters.
func (q *QueryStats) Requests() map[string]int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]int64, len(q.requests))
	for k, v := range q.requests {
		out[k] = v
	}
	return out
}

// GetTopFields returns the top N fields by frequency.
// Returns a copy of the stats sorted by frequency (descending), ties by name.
func (q *QueryStats) GetTopFields(n int) []FieldStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.fieldFreq) == 0 {
		return []FieldStats{}
	}

	stats := make([]FieldStats, 0, len(q.fieldFreq))
	for _, s := range q.fieldFreq {
		statsCopy := FieldStats{
			Field:     s.Field,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Kinds:     make(map[string]int, len(s.Kinds)),
		}
		for kind, count := range s.Kinds {
			statsCopy.Kinds[kind] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Field < stats[j].Field
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for field, stats := range q.fieldFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.fieldFreq, field)
		}
	}
}
