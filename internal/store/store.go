// Package store persists run history in a local SQLite database so past
// runs can be listed, inspected, and pruned.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/stagehand/internal/models"
)

// RunRecord is one persisted workflow run
type RunRecord struct {
	ID        int64
	RunID     string
	Workflow  string
	EventKind string
	Branch    string
	Commit    string
	TotalJobs int
	Passed    int
	Failed    int
	Status    string
	StartedAt time.Time
	Duration  time.Duration
	Jobs      []JobRecord
}

// JobRecord is one persisted matrix-entry job within a run
type JobRecord struct {
	ID           int64
	RunID        string
	JobName      string
	EntryName    string
	EnvName      string
	Runtime      string
	Status       string
	ErrorMessage string
	LineRate     float64
	HasCoverage  bool
	Duration     time.Duration
}

// Store manages the SQLite database holding run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	// Handle in-memory database
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	// Ensure parent directory exists for file-based databases
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

// openAndInitStore opens the database connection and initializes schema
func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Configure SQLite for concurrent access with retry logic.
	// Set busy_timeout FIRST so subsequent operations wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on
// lock errors.
func execWithRetry(db *sql.DB, sql string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(sql)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		delay := baseDelay * time.Duration(1<<attempt)
		time.Sleep(delay)
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initSchema applies all pending migrations
func (s *Store) initSchema() error {
	if err := s.ApplyMigrations(context.Background()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SaveRun persists a run result and all of its job results in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, result *models.RunResult) error {
	if result == nil {
		return fmt.Errorf("run result cannot be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
			(run_id, workflow, event_kind, branch, commit_sha, total_jobs, passed, failed, status, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Workflow,
		string(result.Event.Kind),
		result.Event.Branch,
		result.Event.Commit,
		result.TotalJobs,
		result.Passed,
		result.Failed,
		string(result.Status()),
		result.StartedAt.UTC(),
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, job := range result.Jobs {
		errorMessage := ""
		if job.Error != nil {
			errorMessage = job.Error.Error()
		}
		lineRate := 0.0
		hasCoverage := false
		if job.Coverage != nil {
			lineRate = job.Coverage.LineRate
			hasCoverage = true
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs
				(run_id, job_name, entry_name, env_name, runtime, status, error_message, line_rate, has_coverage, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID,
			job.Job.Name,
			job.Entry.Name,
			job.EnvName,
			job.Runtime,
			string(job.Status),
			errorMessage,
			lineRate,
			hasCoverage,
			job.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert job %q: %w", job.Job.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns retrieves the most recent runs, newest first. limit caps the
// result; zero or negative means no cap.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT id, run_id, workflow, event_kind, branch, commit_sha, total_jobs, passed, failed, status, started_at, duration_ms
		FROM runs
		ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetRun retrieves one run by its run ID, including its job records.
// Returns sql.ErrNoRows when no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, workflow, event_kind, branch, commit_sha, total_jobs, passed, failed, status, started_at, duration_ms
		FROM runs
		WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	jobs, err := s.getJobs(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Jobs = jobs
	return run, nil
}

// getJobs retrieves the job records for one run, in insertion order
func (s *Store) getJobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, job_name, entry_name, env_name, runtime, status, error_message, line_rate, has_coverage, duration_ms
		FROM jobs
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var job JobRecord
		var errorMessage sql.NullString
		var durationMS int64
		err := rows.Scan(
			&job.ID,
			&job.RunID,
			&job.JobName,
			&job.EntryName,
			&job.EnvName,
			&job.Runtime,
			&job.Status,
			&errorMessage,
			&job.LineRate,
			&job.HasCoverage,
			&durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		if errorMessage.Valid {
			job.ErrorMessage = errorMessage.String
		}
		job.Duration = time.Duration(durationMS) * time.Millisecond
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// Prune deletes runs older than the cutoff and returns how many were
// removed. Job records go with their runs via the foreign key cascade.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned runs: %w", err)
	}
	return removed, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans one run row without its job records
func scanRun(row rowScanner) (*RunRecord, error) {
	var run RunRecord
	var branch, commit sql.NullString
	var durationMS int64
	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.Workflow,
		&run.EventKind,
		&branch,
		&commit,
		&run.TotalJobs,
		&run.Passed,
		&run.Failed,
		&run.Status,
		&run.StartedAt,
		&durationMS,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if branch.Valid {
		run.Branch = branch.String
	}
	if commit.Valid {
		run.Commit = commit.String
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
