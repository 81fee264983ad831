// Package state maintains a queryable SQLite index of terminal job
// transitions. It is never authoritative: the canonical record of a job's
// outcome is always its job.yml file, and this index can be rebuilt by
// rescanning job_output_dir if lost.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// JobRecord is one row of job history: a snapshot of a job.yml at the
// moment it reached a terminal status.
type JobRecord struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Pattern    string    `json:"pattern"`
	Recipe     string    `json:"recipe"`
	Rule       string    `json:"rule"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// DB wraps the SQLite connection backing the job history index.
type DB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS job_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL UNIQUE,
    pattern TEXT NOT NULL,
    recipe TEXT NOT NULL,
    rule TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    started_at DATETIME,
    finished_at DATETIME,
    error TEXT,
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_job_history_rule ON job_history(rule);
CREATE INDEX IF NOT EXISTS idx_job_history_status ON job_history(status);
CREATE INDEX IF NOT EXISTS idx_job_history_created ON job_history(created_at);
`

// Open opens or creates the job history index at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if count == 0 {
		db.Exec("INSERT INTO schema_version (version) VALUES (1)")
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// RecordJob upserts a job's current state into the index — called once per
// terminal transition, and safe to call more than once for the same job
// (e.g. a reconciliation rescan) since job_id is unique.
func (d *DB) RecordJob(rec JobRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO job_history (job_id, pattern, recipe, rule, status, created_at, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			error = excluded.error`,
		rec.JobID, rec.Pattern, rec.Recipe, rec.Rule, rec.Status,
		rec.CreatedAt, nullableTime(rec.StartedAt), nullableTime(rec.FinishedAt), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", rec.JobID, err)
	}
	return nil
}

// GetHistory retrieves job history filtered by rule and/or status, most
// recent first.
func (d *DB) GetHistory(rule, status string, limit int) ([]JobRecord, error) {
	query := "SELECT id, job_id, pattern, recipe, rule, status, created_at, started_at, finished_at, error FROM job_history WHERE 1=1"
	var args []any

	if rule != "" {
		query += " AND rule = ?"
		args = append(args, rule)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var r JobRecord
		var started, finished sql.NullTime
		var errStr sql.NullString
		if err := rows.Scan(&r.ID, &r.JobID, &r.Pattern, &r.Recipe, &r.Rule, &r.Status,
			&r.CreatedAt, &started, &finished, &errStr); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.StartedAt = started.Time
		r.FinishedAt = finished.Time
		r.Error = errStr.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetJob fetches one record by job id.
func (d *DB) GetJob(jobID string) (*JobRecord, error) {
	var r JobRecord
	var started, finished sql.NullTime
	var errStr sql.NullString
	err := d.db.QueryRow(
		"SELECT id, job_id, pattern, recipe, rule, status, created_at, started_at, finished_at, error FROM job_history WHERE job_id = ?",
		jobID,
	).Scan(&r.ID, &r.JobID, &r.Pattern, &r.Recipe, &r.Rule, &r.Status, &r.CreatedAt, &started, &finished, &errStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	r.StartedAt = started.Time
	r.FinishedAt = finished.Time
	r.Error = errStr.String
	return &r, nil
}

// Cleanup removes job history rows older than retentionDays.
func (d *DB) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := d.db.Exec("DELETE FROM job_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up history: %w", err)
	}
	return result.RowsAffected()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
