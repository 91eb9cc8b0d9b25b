package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore mirrors terminal jobs into a SQLite table for the
// ManagementAPI's job-history queries, keyed by (agent_id, job_id) (C14).
// This is separate from Manager's in-memory all_jobs table; rows stay in the
// database at path, but nothing reads them back into a Manager, so the
// runtime itself carries no durable job state, per the Non-goals.
type SQLiteStore struct {
	db        *sql.DB
	retention int
	logger    *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures the retention schema exists. retention <= 0 defaults to 1000.
func OpenSQLiteStore(path string, retention int, logger *slog.Logger) (*SQLiteStore, error) {
	if retention <= 0 {
		retention = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("jobs: opening sqlite store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS job_history (
	agent_id TEXT NOT NULL,
	job_id TEXT NOT NULL,
	function_name TEXT NOT NULL,
	status TEXT NOT NULL,
	success INTEGER NOT NULL,
	error_message TEXT,
	enqueued_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	PRIMARY KEY (agent_id, job_id)
);
CREATE INDEX IF NOT EXISTS idx_job_history_agent_finished ON job_history (agent_id, finished_at);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: creating schema: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		retention: retention,
		logger:    logger.With("component", "job_store"),
	}, nil
}

// Record inserts or replaces the terminal record for job under agentID.
func (s *SQLiteStore) Record(agentID string, job Job) error {
	_, err := s.db.Exec(
		`INSERT INTO job_history (agent_id, job_id, function_name, status, success, error_message, enqueued_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id, job_id) DO UPDATE SET
			status=excluded.status, success=excluded.success, error_message=excluded.error_message, finished_at=excluded.finished_at`,
		agentID, job.ID, job.FunctionName, string(job.Status), job.Result.Success, job.Result.ErrorMessage,
		job.EnqueuedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("jobs: recording job %s: %w", job.ID, err)
	}
	return nil
}

// History returns up to limit of the most recently finished jobs for agentID,
// newest first.
func (s *SQLiteStore) History(agentID string, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT job_id, function_name, status, success, error_message, enqueued_at, finished_at
		 FROM job_history WHERE agent_id = ? ORDER BY finished_at DESC LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs: querying history: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(&rec.JobID, &rec.FunctionName, &rec.Status, &rec.Success, &rec.ErrorMessage, &rec.EnqueuedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("jobs: scanning history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// JobRecord is a row read back from the retention store.
type JobRecord struct {
	JobID        string
	FunctionName string
	Status       string
	Success      bool
	ErrorMessage string
	EnqueuedAt   time.Time
	FinishedAt   time.Time
}

// reap deletes the oldest rows for every agent beyond the retention count.
func (s *SQLiteStore) reap() error {
	_, err := s.db.Exec(`
DELETE FROM job_history
WHERE rowid IN (
	SELECT rowid FROM (
		SELECT rowid, ROW_NUMBER() OVER (PARTITION BY agent_id ORDER BY finished_at DESC) AS rn
		FROM job_history
	) WHERE rn > ?
)`, s.retention)
	if err != nil {
		return fmt.Errorf("jobs: reaping job history: %w", err)
	}
	return nil
}

// StartReaper launches a background goroutine that reaps excess rows every
// interval until Stop is called.
func (s *SQLiteStore) StartReaper(interval time.Duration) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.reap(); err != nil {
					s.logger.Warn("job history reap failed", "error", err)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the reaper (if running) and closes the underlying database.
func (s *SQLiteStore) Stop(ctx context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		select {
		case <-s.doneCh:
		case <-ctx.Done():
		}
	}
	return s.db.Close()
}
