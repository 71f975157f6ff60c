package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// StateDir returns the directory holding fast-staged's local state.
// FAST_STAGED_STATE_DIR overrides the per-user cache location.
func StateDir() (string, error) {
	if dir := os.Getenv("FAST_STAGED_STATE_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(base, "fast-staged"), nil
}

// DefaultDBPath is StateDir()/runs.db.
func DefaultDBPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// Store records completed runs and answers history queries.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the run-history database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  id                 TEXT PRIMARY KEY,
  repo_root          TEXT NOT NULL,
  started_at         TEXT NOT NULL,
  finished_at        TEXT NOT NULL,
  elapsed_ms         INTEGER NOT NULL,
  total_ms           INTEGER NOT NULL,
  file_count         INTEGER NOT NULL,
  task_count         INTEGER NOT NULL,
  done_count         INTEGER NOT NULL,
  failed_count       INTEGER NOT NULL,
  timeout_count      INTEGER NOT NULL,
  config_path        TEXT NOT NULL,
  config_fingerprint TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS run_tasks (
  run_id      TEXT NOT NULL,
  idx         INTEGER NOT NULL,
  file        TEXT NOT NULL,
  command     TEXT NOT NULL,
  group_name  TEXT NOT NULL,
  status      TEXT NOT NULL,
  duration_ms INTEGER,
  failure     TEXT,
  PRIMARY KEY (run_id, idx)
);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history db: %w", err)
		}
	}
	return nil
}

// Record inserts a completed run and its tasks in one transaction.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(
  id, repo_root, started_at, finished_at, elapsed_ms, total_ms,
  file_count, task_count, done_count, failed_count, timeout_count,
  config_path, config_fingerprint
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.RepoRoot,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.ElapsedMS, rec.TotalMS,
		rec.FileCount, rec.TaskCount, rec.DoneCount, rec.FailedCount, rec.TimeoutCount,
		rec.ConfigPath, rec.ConfigFingerprint)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, task := range rec.Tasks {
		_, err = tx.ExecContext(ctx, `
INSERT INTO run_tasks(run_id, idx, file, command, group_name, status, duration_ms, failure)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, i, task.File, task.Command, task.Group, task.Status, task.DurationMS, task.Failure)
		if err != nil {
			return fmt.Errorf("insert run task %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, without task rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, repo_root, started_at, finished_at, elapsed_ms, total_ms,
       file_count, task_count, done_count, failed_count, timeout_count,
       config_path, config_fingerprint
FROM runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return recs, nil
}

// Get loads one run with its task rows. Returns (nil, nil) when no run has
// that id.
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, repo_root, started_at, finished_at, elapsed_ms, total_ms,
       file_count, task_count, done_count, failed_count, timeout_count,
       config_path, config_fingerprint
FROM runs
WHERE id = ?;
`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT file, command, group_name, status, duration_ms, failure
FROM run_tasks
WHERE run_id = ?
ORDER BY idx ASC;
`, id)
	if err != nil {
		return nil, fmt.Errorf("load run tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			task       TaskRecord
			durationMS sql.NullInt64
			failure    sql.NullString
		)
		if err := rows.Scan(&task.File, &task.Command, &task.Group, &task.Status, &durationMS, &failure); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		if durationMS.Valid {
			task.DurationMS = &durationMS.Int64
		}
		if failure.Valid {
			task.Failure = &failure.String
		}
		rec.Tasks = append(rec.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load run tasks: %w", err)
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec       RunRecord
		startedS  string
		finishedS string
	)
	err := row.Scan(
		&rec.ID, &rec.RepoRoot, &startedS, &finishedS, &rec.ElapsedMS, &rec.TotalMS,
		&rec.FileCount, &rec.TaskCount, &rec.DoneCount, &rec.FailedCount, &rec.TimeoutCount,
		&rec.ConfigPath, &rec.ConfigFingerprint,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
		rec.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, finishedS); err == nil {
		rec.FinishedAt = t
	}
	return rec, nil
}
