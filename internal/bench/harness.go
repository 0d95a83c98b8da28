package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arkilian/spatialbench/internal/config"
	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/logging"
	"github.com/arkilian/spatialbench/internal/metrics"
)

// Options configures a Harness.
type Options struct {
	// Mode is inter-query (default), per-query or serial
	Mode config.Mode

	// Workers is the number of concurrent workers (default 1)
	Workers int

	// Shuffle randomizes the task order before partitioning (inter-query only)
	Shuffle bool

	// Seed fixes the shuffle; 0 derives one from the run id
	Seed int64

	// Rate limits each worker to this many queries per second; 0 is unlimited
	Rate float64

	// RunID overrides the generated run id
	RunID string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// OptionsFromConfig maps the bench configuration section onto harness options.
func OptionsFromConfig(cfg config.BenchConfig) Options {
	return Options{
		Mode:    cfg.Mode,
		Workers: cfg.Workers,
		Shuffle: cfg.Shuffle,
		Seed:    cfg.Seed,
		Rate:    cfg.Rate,
	}
}

// Result is the outcome of a run. It is returned even when workers failed,
// holding whatever samples completed.
type Result struct {
	RunID    string       `json:"run_id"`
	Mode     config.Mode  `json:"mode"`
	Workers  int          `json:"workers"`
	Seed     int64        `json:"seed"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Samples  []Sample     `json:"samples"`
	Stats    []QueryStats `json:"stats"`
	Failures []string     `json:"failures,omitempty"`
}

// Harness schedules registered queries over workers and times them.
// A Harness runs once.
type Harness struct {
	opts    Options
	runID   string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	phase   Phase
	entries []entry
	labels  map[string]bool
}

// New creates a harness in the CONFIGURED phase.
func New(opts Options) *Harness {
	if opts.Mode == "" {
		opts.Mode = config.ModeInterQuery
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Mode == config.ModeSerial {
		opts.Workers = 1
		opts.Shuffle = false
	}

	runID := opts.RunID
	if runID == "" {
		if id, err := uuid.NewV7(); err == nil {
			runID = id.String()
		} else {
			runID = uuid.NewString()
		}
	}
	if opts.Seed == 0 {
		opts.Seed = DeriveSeed(runID)
	}

	logger := logging.OrNop(opts.Logger).Named("bench").With(zap.String("run_id", runID))

	return &Harness{
		opts:    opts,
		runID:   runID,
		logger:  logger,
		metrics: opts.Metrics,
		phase:   PhaseConfigured,
		labels:  make(map[string]bool),
	}
}

// RunID returns the id of this run.
func (h *Harness) RunID() string { return h.runID }

// Seed returns the effective shuffle seed.
func (h *Harness) Seed() int64 { return h.opts.Seed }

// Phase returns the current phase.
func (h *Harness) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

func (h *Harness) setPhase(p Phase) {
	h.mu.Lock()
	h.phase = p
	h.mu.Unlock()
	h.observePhase(p)
}

func (h *Harness) observePhase(p Phase) {
	h.metrics.SetPhase(int(p))
	h.logger.Info("phase", zap.Stringer("phase", p))
}

// Enqueue registers a query type: one untimed warm-up and count timed
// repetitions. Labels must be unique and count positive.
func (h *Harness) Enqueue(label string, count int, fn QueryFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != PhaseConfigured {
		return spatialerrors.New(spatialerrors.ErrCategoryBenchmark, spatialerrors.CodeUnexpected,
			fmt.Sprintf("cannot enqueue %q in phase %s", label, h.phase))
	}
	if label == "" || fn == nil {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "query label and function are required")
	}
	if count < 1 {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
			fmt.Sprintf("repetitions for %q must be positive, got %d", label, count))
	}
	if h.labels[label] {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig, fmt.Sprintf("query %q already enqueued", label))
	}

	h.labels[label] = true
	h.entries = append(h.entries, entry{label: label, count: count, query: fn})
	return nil
}

// Run executes the warm-up, schedules and runs all repetitions, and
// aggregates the samples. Warm-up failures abort the run with no result.
// Worker failures stop only the failing worker; the result then holds the
// partial samples and the returned error joins every worker failure.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	h.mu.Lock()
	if h.phase != PhaseConfigured {
		h.mu.Unlock()
		return nil, spatialerrors.New(spatialerrors.ErrCategoryBenchmark, spatialerrors.CodeUnexpected, "harness already ran")
	}
	if len(h.entries) == 0 {
		h.mu.Unlock()
		return nil, spatialerrors.NewBenchmarkError(spatialerrors.CodeNoQueries, "no queries enqueued", nil)
	}
	entries := append([]entry(nil), h.entries...)
	// Leaving PhaseConfigured under the same lock makes Run single-shot.
	h.phase = PhaseWarmup
	h.mu.Unlock()

	result := &Result{
		RunID:   h.runID,
		Mode:    h.opts.Mode,
		Workers: h.opts.Workers,
		Seed:    h.opts.Seed,
		Started: time.Now().UTC(),
	}

	h.observePhase(PhaseWarmup)
	if err := h.warmup(ctx, entries); err != nil {
		return nil, err
	}

	h.setPhase(PhaseScheduled)
	var (
		samples []Sample
		errs    []error
	)
	switch h.opts.Mode {
	case config.ModePerQuery:
		h.setPhase(PhaseRunning)
		samples, errs = h.runPerQuery(ctx, entries)
	default:
		parts := h.schedule(entries)
		h.setPhase(PhaseRunning)
		samples, errs = h.runWorkers(ctx, parts)
	}

	h.setPhase(PhaseAggregating)
	repetitions := make(map[string]int, len(entries))
	for _, e := range entries {
		repetitions[e.label] = e.count
	}
	result.Samples = samples
	result.Stats = Aggregate(samples, repetitions)
	result.Finished = time.Now().UTC()
	for _, err := range errs {
		result.Failures = append(result.Failures, err.Error())
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

// Report writes the aggregated result and moves the harness to REPORTED.
func (h *Harness) Report(w io.Writer, format string, result *Result) error {
	if result == nil {
		return spatialerrors.NewInternalError("no result to report", nil)
	}
	if err := WriteReport(w, format, result.Stats); err != nil {
		return err
	}
	h.setPhase(PhaseReported)
	return nil
}

func (h *Harness) warmup(ctx context.Context, entries []entry) error {
	for _, e := range entries {
		if _, err := e.query(ctx); err != nil {
			h.logger.Error("warm-up failed", zap.String("query", e.label), zap.Error(err))
			return spatialerrors.NewBenchmarkError(spatialerrors.CodeWarmupFailed,
				fmt.Sprintf("warm-up of %s failed", e.label), err)
		}
	}
	return nil
}

// schedule expands entries into tasks, optionally shuffles them and deals
// them across workers.
func (h *Harness) schedule(entries []entry) [][]Task {
	var tasks []Task
	for _, e := range entries {
		tasks = append(tasks, e.tasks()...)
	}
	if h.opts.Shuffle {
		Shuffle(tasks, rand.New(rand.NewSource(h.opts.Seed)))
	}
	parts := Partition(tasks, h.opts.Workers)
	h.logger.Info("scheduled",
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", len(parts)),
		zap.Bool("shuffle", h.opts.Shuffle),
		zap.Int64("seed", h.opts.Seed),
	)
	return parts
}

// runWorkers starts one goroutine per sublist and waits for all of them.
// Each worker writes only its own slot, so no locking is needed.
func (h *Harness) runWorkers(ctx context.Context, parts [][]Task) ([]Sample, []error) {
	results := make([][]Sample, len(parts))
	errs := make([]error, len(parts))

	var wg sync.WaitGroup
	for i, part := range parts {
		wg.Add(1)
		go func(worker int, tasks []Task) {
			defer wg.Done()
			results[worker], errs[worker] = h.work(ctx, worker, tasks)
		}(i, part)
	}
	wg.Wait()

	var samples []Sample
	var failures []error
	for i := range parts {
		samples = append(samples, results[i]...)
		if errs[i] != nil {
			failures = append(failures, errs[i])
		}
	}
	return samples, failures
}

// runPerQuery runs one query type at a time, fanning its repetitions out over
// a pool of Workers goroutines. A failing repetition stops the remaining
// repetitions of that query type only.
func (h *Harness) runPerQuery(ctx context.Context, entries []entry) ([]Sample, []error) {
	var samples []Sample
	var failures []error

	for _, e := range entries {
		tasks := e.tasks()
		slots := make([]*Sample, len(tasks))
		limiters := h.limiters(h.opts.Workers)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(h.opts.Workers)
		for i, t := range tasks {
			i, t := i, t
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				worker := i % h.opts.Workers
				s, err := h.execute(gctx, worker, t, limiters[worker])
				if err != nil {
					return err
				}
				slots[i] = &s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			failures = append(failures, err)
		}

		for _, s := range slots {
			if s != nil {
				samples = append(samples, *s)
			}
		}
	}
	return samples, failures
}

func (h *Harness) limiters(n int) []*rate.Limiter {
	out := make([]*rate.Limiter, n)
	if h.opts.Rate <= 0 {
		return out
	}
	for i := range out {
		out[i] = rate.NewLimiter(rate.Limit(h.opts.Rate), 1)
	}
	return out
}

// work runs a worker's sublist in order, stopping at the first failure.
func (h *Harness) work(ctx context.Context, worker int, tasks []Task) ([]Sample, error) {
	limiter := h.limiters(1)[0]
	samples := make([]Sample, 0, len(tasks))
	for _, t := range tasks {
		s, err := h.execute(ctx, worker, t, limiter)
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// execute times one task. Rate limiting happens before the timed region.
func (h *Harness) execute(ctx context.Context, worker int, t Task, limiter *rate.Limiter) (Sample, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Sample{}, h.fail(worker, t, err)
		}
	}

	start := time.Now()
	rows, err := t.Query(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return Sample{}, h.fail(worker, t, err)
	}

	h.metrics.ObserveQuery(t.Label, elapsed, rows)
	return Sample{Label: t.Label, Seq: t.Seq, Worker: worker, Elapsed: elapsed, Rows: rows}, nil
}

func (h *Harness) fail(worker int, t Task, err error) error {
	h.metrics.WorkerFailed(t.Label)
	h.logger.Error("worker stopped",
		zap.Int("worker", worker),
		zap.String("query", t.Label),
		zap.Int("seq", t.Seq),
		zap.Error(err),
	)
	return spatialerrors.NewBenchmarkError(spatialerrors.CodeWorkerFailed,
		fmt.Sprintf("worker %d failed on %s #%d", worker, t.Label, t.Seq), err).
		WithDetails(map[string]interface{}{"worker": worker, "query": t.Label})
}
