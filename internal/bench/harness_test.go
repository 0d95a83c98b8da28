package bench

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/spatialbench/internal/config"
	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/metrics"
)

var errBoom = errors.New("boom")

// recorder collects the order in which queries were executed.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) query(label string, rows int) QueryFunc {
	return func(ctx context.Context) (int, error) {
		r.mu.Lock()
		r.calls = append(r.calls, label)
		r.mu.Unlock()
		return rows, nil
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// failAfter succeeds n times then fails forever.
func failAfter(n int64) QueryFunc {
	var calls atomic.Int64
	return func(ctx context.Context) (int, error) {
		if calls.Add(1) > n {
			return 0, errBoom
		}
		return 1, nil
	}
}

func TestInterQueryRun(t *testing.T) {
	rec := &recorder{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := New(Options{Workers: 3, Shuffle: true, Seed: 11, Metrics: m})
	require.NoError(t, h.Enqueue("Q1", 4, rec.query("Q1", 2)))
	require.NoError(t, h.Enqueue("Q2", 5, rec.query("Q2", 0)))
	assert.Equal(t, PhaseConfigured, h.Phase())

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.Samples, 9)
	assert.Len(t, rec.order(), 11, "one warm-up per query plus every repetition")
	assert.Equal(t, []string{"Q1", "Q2"}, rec.order()[:2], "warm-up runs in registration order")
	assert.Equal(t, PhaseAggregating, h.Phase())
	assert.Equal(t, h.RunID(), result.RunID)
	assert.Equal(t, int64(11), result.Seed)
	assert.Empty(t, result.Failures)

	require.Len(t, result.Stats, 2)
	assert.Equal(t, "Q1", result.Stats[0].Label)
	assert.Equal(t, 4, result.Stats[0].Count())
	assert.Equal(t, []int{2, 2, 2, 2}, result.Stats[0].Rows)
	assert.Equal(t, 5, result.Stats[1].Count())

	workers := map[int]bool{}
	for _, s := range result.Samples {
		workers[s.Worker] = true
	}
	assert.Len(t, workers, 3)

	var buf bytes.Buffer
	require.NoError(t, h.Report(&buf, FormatSummary, result))
	assert.Equal(t, PhaseReported, h.Phase())
	assert.True(t, strings.HasPrefix(buf.String(), "Query,mean,stddev,median,min,max,counts\n"))
	assert.Equal(t, float64(PhaseReported), testutil.ToFloat64(m.RunPhase))
	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
}

func TestWarmupFailureAborts(t *testing.T) {
	h := New(Options{Workers: 2})
	require.NoError(t, h.Enqueue("ok", 3, failAfter(100)))
	require.NoError(t, h.Enqueue("bad", 3, failAfter(0)))

	result, err := h.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, spatialerrors.CodeWarmupFailed, spatialerrors.GetCode(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, PhaseWarmup, h.Phase())
}

func TestWorkerFailureKeepsPartialResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := New(Options{Workers: 2, Shuffle: false, Metrics: m})
	// Tasks deal as w0: bad#0 good#1 good#3, w1: good#0 good#2.
	require.NoError(t, h.Enqueue("bad", 1, failAfter(1)))
	require.NoError(t, h.Enqueue("good", 4, failAfter(100)))

	result, err := h.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result, "partial results survive a worker failure")

	assert.Equal(t, spatialerrors.CodeWorkerFailed, spatialerrors.GetCode(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, result.Failures, 1)

	require.Len(t, result.Stats, 2)
	assert.Equal(t, "bad", result.Stats[0].Label)
	assert.Zero(t, result.Stats[0].Count())
	assert.Equal(t, 1, result.Stats[0].Repetitions)
	assert.Equal(t, "good", result.Stats[1].Label)
	assert.Equal(t, 2, result.Stats[1].Count(), "only the surviving worker's samples remain")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerFailuresTotal.WithLabelValues("bad")))
}

func TestEveryWorkerFailureIsReported(t *testing.T) {
	h := New(Options{Workers: 3, Shuffle: false})
	require.NoError(t, h.Enqueue("bad", 6, failAfter(1)))

	result, err := h.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Failures, 3)
	assert.Empty(t, result.Samples)
}

func TestSerialModeKeepsOrder(t *testing.T) {
	rec := &recorder{}
	h := New(Options{Mode: config.ModeSerial, Workers: 8, Shuffle: true})
	require.NoError(t, h.Enqueue("Q1", 2, rec.query("Q1", 1)))
	require.NoError(t, h.Enqueue("Q2", 2, rec.query("Q2", 1)))

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Workers)
	assert.Equal(t, []string{"Q1", "Q2", "Q1", "Q1", "Q2", "Q2"}, rec.order())
	for _, s := range result.Samples {
		assert.Zero(t, s.Worker)
	}
}

func TestShuffleSeedReproducesOrder(t *testing.T) {
	run := func(seed int64) []string {
		rec := &recorder{}
		h := New(Options{Workers: 1, Shuffle: true, Seed: seed})
		for _, label := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
			require.NoError(t, h.Enqueue(label, 10, rec.query(label, 1)))
		}
		_, err := h.Run(context.Background())
		require.NoError(t, err)
		return rec.order()
	}

	assert.Equal(t, run(99), run(99))
	assert.NotEqual(t, run(99), run(100))
}

func TestPerQueryMode(t *testing.T) {
	rec := &recorder{}
	h := New(Options{Mode: config.ModePerQuery, Workers: 4})
	require.NoError(t, h.Enqueue("Q1", 8, rec.query("Q1", 3)))
	require.NoError(t, h.Enqueue("Q2", 8, rec.query("Q2", 4)))

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Samples, 16)

	order := rec.order()
	require.Len(t, order, 18)
	// Every Q1 repetition completes before any Q2 repetition starts.
	for i, label := range order[2:10] {
		assert.Equal(t, "Q1", label, "position %d", i)
	}
	for i, label := range order[10:] {
		assert.Equal(t, "Q2", label, "position %d", i)
	}
}

func TestPerQueryFailureStopsOnlyThatQuery(t *testing.T) {
	h := New(Options{Mode: config.ModePerQuery, Workers: 2})
	require.NoError(t, h.Enqueue("Q1", 5, failAfter(1)))
	require.NoError(t, h.Enqueue("Q2", 5, failAfter(100)))

	result, err := h.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, spatialerrors.CodeWorkerFailed, spatialerrors.GetCode(err))

	require.Len(t, result.Stats, 2)
	assert.Zero(t, result.Stats[0].Count())
	assert.Equal(t, 5, result.Stats[1].Count())
}

func TestRateLimitedRun(t *testing.T) {
	h := New(Options{Workers: 2, Rate: 1000})
	require.NoError(t, h.Enqueue("Q1", 6, failAfter(100)))

	result, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Samples, 6)
}

func TestEnqueueValidation(t *testing.T) {
	h := New(Options{})
	fn := failAfter(100)

	assert.Error(t, h.Enqueue("", 1, fn))
	assert.Error(t, h.Enqueue("Q1", 1, nil))

	err := h.Enqueue("Q1", 0, fn)
	require.Error(t, err)
	assert.Equal(t, spatialerrors.ErrCategoryValidation, spatialerrors.GetCategory(err))

	require.NoError(t, h.Enqueue("Q1", 1, fn))
	assert.Error(t, h.Enqueue("Q1", 1, fn), "labels must be unique")

	_, err = h.Run(context.Background())
	require.NoError(t, err)
	assert.Error(t, h.Enqueue("Q2", 1, fn), "no enqueue after the run started")

	_, err = h.Run(context.Background())
	assert.Error(t, err, "a harness runs once")
}

func TestConcurrentRunsExecuteOnce(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	h := New(Options{Workers: 1})
	require.NoError(t, h.Enqueue("Q1", 1, func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}))

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := h.Run(context.Background())
			errs <- err
		}()
	}

	// The winner blocks in warm-up until every other caller has been rejected.
	for i := 0; i < callers-1; i++ {
		select {
		case err := <-errs:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "already ran")
		case <-time.After(5 * time.Second):
			close(release)
			t.Fatal("more than one Run left the configured phase")
		}
	}
	close(release)
	require.NoError(t, <-errs)
	assert.Equal(t, int64(2), calls.Load(), "one warm-up and one repetition")
}

func TestRunWithoutQueries(t *testing.T) {
	_, err := New(Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, spatialerrors.CodeNoQueries, spatialerrors.GetCode(err))
}

func TestRunIDAndDerivedSeed(t *testing.T) {
	h := New(Options{})
	assert.NotEmpty(t, h.RunID())
	assert.Equal(t, DeriveSeed(h.RunID()), h.Seed())

	fixed := New(Options{RunID: "run-1", Seed: 5})
	assert.Equal(t, "run-1", fixed.RunID())
	assert.Equal(t, int64(5), fixed.Seed())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Bench
	cfg.Workers = 6
	cfg.Seed = 3
	cfg.Rate = 2.5

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, config.ModeInterQuery, opts.Mode)
	assert.Equal(t, 6, opts.Workers)
	assert.True(t, opts.Shuffle)
	assert.Equal(t, int64(3), opts.Seed)
	assert.Equal(t, 2.5, opts.Rate)
}
