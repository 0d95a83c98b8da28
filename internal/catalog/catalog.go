package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/arkilian/spatialbench/internal/bench"
	"github.com/arkilian/spatialbench/internal/config"
	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/logging"
)

// Catalog stores and retrieves benchmark runs.
type Catalog interface {
	// RecordRun stores a finished (or partially finished) run with its samples.
	RecordRun(ctx context.Context, run RunInfo, result *bench.Result) error

	// SetReportKey records where the run's report was archived.
	SetReportKey(ctx context.Context, runID, key string) error

	// ListRuns returns the most recent runs first, up to limit (0 for all).
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// GetRun returns one run.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// Samples returns the samples of a run ordered by query and sequence.
	Samples(ctx context.Context, runID string) ([]bench.Sample, error)

	// Stats recomputes per-query statistics from the stored samples.
	Stats(ctx context.Context, runID string) ([]bench.QueryStats, error)

	// Close closes the database connections.
	Close() error
}

// RunInfo describes the target of a run.
type RunInfo struct {
	Core        string
	URL         string
	Repetitions map[string]int
}

// RunRecord is a stored run.
type RunRecord struct {
	RunID      string
	Core       string
	URL        string
	Mode       config.Mode
	Workers    int
	Seed       int64
	StartedAt  time.Time
	FinishedAt time.Time
	Failures   []string
	ReportKey  string
	Samples    int
}

// Failed reports whether any worker failed during the run.
func (r *RunRecord) Failed() bool { return len(r.Failures) > 0 }

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool
	dbPath string
	mu     sync.Mutex // Write-only lock
	logger *zap.Logger
}

// NewCatalog opens (creating if needed) the run history database at dbPath.
func NewCatalog(dbPath string, logger *zap.Logger) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
		logger: logging.OrNop(logger).Named("catalog"),
	}

	// The schema must exist before a read-only connection can open the file.
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to initialize schema", err)
	}

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to open read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	c.readDB = readDB

	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores the run, its query types and samples in one transaction.
func (c *SQLiteCatalog) RecordRun(ctx context.Context, run RunInfo, result *bench.Result) error {
	if result == nil || result.RunID == "" {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "run result with an id is required")
	}

	var failures []byte
	if len(result.Failures) > 0 {
		var err error
		failures, err = json.Marshal(result.Failures)
		if err != nil {
			return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to encode failures", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, core, url, mode, workers, seed, started_at, finished_at, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, run.Core, run.URL, string(result.Mode), result.Workers, result.Seed,
		result.Started.UnixMilli(), result.Finished.UnixMilli(), nullableString(failures),
	)
	if err != nil {
		return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to insert run", err)
	}

	repetitions := run.Repetitions
	if repetitions == nil {
		repetitions = make(map[string]int, len(result.Stats))
		for _, s := range result.Stats {
			repetitions[s.Label] = s.Repetitions
		}
	}
	for query, reps := range repetitions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_queries (run_id, query, repetitions) VALUES (?, ?, ?)",
			result.RunID, query, reps,
		); err != nil {
			return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to insert run query", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, query, seq, worker, elapsed_ns, row_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to prepare sample insert", err)
	}
	defer stmt.Close()

	for _, s := range result.Samples {
		if _, err := stmt.ExecContext(ctx, result.RunID, s.Label, s.Seq, s.Worker, s.Elapsed.Nanoseconds(), s.Rows); err != nil {
			return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to insert sample", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to commit run", err)
	}

	c.logger.Debug("run recorded",
		zap.String("run_id", result.RunID),
		zap.Int("samples", len(result.Samples)),
	)
	return nil
}

// SetReportKey records where the run's report was archived.
func (c *SQLiteCatalog) SetReportKey(ctx context.Context, runID, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, "UPDATE runs SET report_key = ? WHERE run_id = ?", key, runID)
	if err != nil {
		return spatialerrors.NewCatalogError(spatialerrors.CodeWriteFailed, "failed to update run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return runNotFound(runID)
	}
	return nil
}

const selectRunSQL = `
	SELECT r.run_id, r.core, r.url, r.mode, r.workers, r.seed, r.started_at, r.finished_at,
	       r.failures, r.report_key,
	       (SELECT COUNT(*) FROM samples s WHERE s.run_id = r.run_id)
	FROM runs r`

// ListRuns returns the most recent runs first.
func (c *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := selectRunSQL + " ORDER BY r.started_at DESC, r.run_id DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to list runs", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to iterate runs", err)
	}
	return records, nil
}

// GetRun returns one run.
func (c *SQLiteCatalog) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := c.readDB.QueryRowContext(ctx, selectRunSQL+" WHERE r.run_id = ?", runID)
	record, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, runNotFound(runID)
		}
		return nil, err
	}
	return record, nil
}

// Samples returns the samples of a run ordered by query and sequence.
func (c *SQLiteCatalog) Samples(ctx context.Context, runID string) ([]bench.Sample, error) {
	rows, err := c.readDB.QueryContext(ctx, `
		SELECT query, seq, worker, elapsed_ns, row_count
		FROM samples WHERE run_id = ?
		ORDER BY query, seq`, runID)
	if err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to query samples", err)
	}
	defer rows.Close()

	var samples []bench.Sample
	for rows.Next() {
		var s bench.Sample
		var elapsed int64
		if err := rows.Scan(&s.Label, &s.Seq, &s.Worker, &elapsed, &s.Rows); err != nil {
			return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to scan sample", err)
		}
		s.Elapsed = time.Duration(elapsed)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to iterate samples", err)
	}
	return samples, nil
}

// Stats recomputes per-query statistics from the stored samples.
func (c *SQLiteCatalog) Stats(ctx context.Context, runID string) ([]bench.QueryStats, error) {
	if _, err := c.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	repetitions, err := c.repetitions(ctx, runID)
	if err != nil {
		return nil, err
	}

	samples, err := c.Samples(ctx, runID)
	if err != nil {
		return nil, err
	}
	return bench.Aggregate(samples, repetitions), nil
}

func (c *SQLiteCatalog) repetitions(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := c.readDB.QueryContext(ctx, "SELECT query, repetitions FROM run_queries WHERE run_id = ?", runID)
	if err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to query run queries", err)
	}
	defer rows.Close()

	repetitions := make(map[string]int)
	for rows.Next() {
		var query string
		var reps int
		if err := rows.Scan(&query, &reps); err != nil {
			return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to scan run query", err)
		}
		repetitions[query] = reps
	}
	if err := rows.Err(); err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to iterate run queries", err)
	}
	return repetitions, nil
}

// Close closes the read connection pool, then the write connection.
func (c *SQLiteCatalog) Close() error {
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		record     RunRecord
		mode       string
		startedAt  int64
		finishedAt int64
		failures   sql.NullString
		reportKey  sql.NullString
	)
	err := row.Scan(&record.RunID, &record.Core, &record.URL, &mode, &record.Workers, &record.Seed,
		&startedAt, &finishedAt, &failures, &reportKey, &record.Samples)
	if err != nil {
		return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to scan run", err)
	}

	record.Mode = config.Mode(mode)
	record.StartedAt = time.UnixMilli(startedAt).UTC()
	record.FinishedAt = time.UnixMilli(finishedAt).UTC()
	record.ReportKey = reportKey.String
	if failures.Valid && failures.String != "" {
		if err := json.Unmarshal([]byte(failures.String), &record.Failures); err != nil {
			return nil, spatialerrors.NewCatalogError(spatialerrors.CodeUnexpected, "failed to decode failures", err)
		}
	}
	return &record, nil
}

func runNotFound(runID string) error {
	return spatialerrors.NewCatalogError(spatialerrors.CodeRunNotFound, fmt.Sprintf("run %q not found", runID), nil)
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
