package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/types"
)

// StartRun records the beginning of a guard run
func (s *SQLiteStorage) StartRun(ctx context.Context, run *types.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, head, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, string(run.Mode), run.Head, run.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run started with StartRun.
// A zero FinishedAt is set to now.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *types.Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET head = ?, action = ?, reason = ?, changed = ?, commit_hash = ?,
		    pushed = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Head, run.Action, run.Reason, boolToInt(run.Changed), run.CommitHash,
		boolToInt(run.Pushed), run.Error, run.FinishedAt.UnixNano(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// GetRun returns a single run, or an error if it does not exist
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means no limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// PruneRuns deletes all but the keep most recent runs and their events.
// keep <= 0 keeps everything. Returns the number of runs deleted.
func (s *SQLiteStorage) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return int(n), nil
}

// Record implements events.Recorder
func (s *SQLiteStorage) Record(ctx context.Context, e events.Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, type, message, created_at)
		VALUES (?, ?, ?, ?)
	`, e.RunID, string(e.Type), e.Message, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// GetRunEvents returns the events of a run in the order they were recorded
func (s *SQLiteStorage) GetRunEvents(ctx context.Context, runID string) ([]*types.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, type, message, created_at
		FROM run_events
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.RunEvent
	for rows.Next() {
		var e types.RunEvent
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return out, nil
}

const selectRuns = `
	SELECT id, mode, head, action, reason, changed, commit_hash, pushed, error,
	       started_at, finished_at
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.Run, error) {
	var (
		run        types.Run
		mode       string
		changed    int64
		pushed     int64
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := row.Scan(&run.ID, &mode, &run.Head, &run.Action, &run.Reason, &changed,
		&run.CommitHash, &pushed, &run.Error, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Mode = types.RunMode(mode)
	run.Changed = changed != 0
	run.Pushed = pushed != 0
	run.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
