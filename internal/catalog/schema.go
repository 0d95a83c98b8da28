// Package catalog records benchmark runs and their samples in a SQLite database
// so results can be listed and compared after the process exits.
package catalog

// CreateRunsTableSQL creates the table holding one row per benchmark run.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    core TEXT NOT NULL,
    url TEXT NOT NULL,
    mode TEXT NOT NULL,
    workers INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    failures TEXT,
    report_key TEXT
)`

// CreateRunQueriesTableSQL creates the table of query types registered per run.
const CreateRunQueriesTableSQL = `
CREATE TABLE IF NOT EXISTS run_queries (
    run_id TEXT NOT NULL,
    query TEXT NOT NULL,
    repetitions INTEGER NOT NULL,
    PRIMARY KEY (run_id, query),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)`

// CreateSamplesTableSQL creates the table of timed samples.
// Elapsed time is stored in nanoseconds.
const CreateSamplesTableSQL = `
CREATE TABLE IF NOT EXISTS samples (
    run_id TEXT NOT NULL,
    query TEXT NOT NULL,
    seq INTEGER NOT NULL,
    worker INTEGER NOT NULL,
    elapsed_ns INTEGER NOT NULL,
    row_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, query, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)`

// CreateIndexesSQL creates the secondary indexes.
var CreateIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_core ON runs(core, started_at)`,
}

// AllSchemaSQL returns every schema statement in execution order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateRunsTableSQL,
		CreateRunQueriesTableSQL,
		CreateSamplesTableSQL,
	}
	return append(stmts, CreateIndexesSQL...)
}
