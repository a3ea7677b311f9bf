package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateRun inserts a new run. The caller assigns the run ID.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	snapshot, err := run.State.Snapshot()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = StatusPending
	}
	if run.BatchID == "" {
		run.BatchID = run.State.ID
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            id, batch_id, status, node, state_json, resume_token,
            error_kind, error_message, created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.BatchID,
		run.Status,
		nullableString(run.Node),
		snapshot,
		nullableString(run.ResumeToken),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
		nullableTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveRun checkpoints the run's status, next node and state.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	snapshot, err := run.State.Snapshot()
	if err != nil {
		return err
	}
	run.UpdatedAt = time.Now().UTC()
	if run.Status.IsTerminal() && run.CompletedAt == nil {
		completed := run.UpdatedAt
		run.CompletedAt = &completed
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET
            status = ?, node = ?, state_json = ?, resume_token = ?,
            error_kind = ?, error_message = ?, updated_at = ?, completed_at = ?
        WHERE id = ?`,
		run.Status,
		nullableString(run.Node),
		snapshot,
		nullableString(run.ResumeToken),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		formatTime(run.UpdatedAt),
		nullableTime(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun fetches a run by identifier. It returns nil without error when the
// run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs filtered by status, newest first. No statuses means
// every run.
func (s *Store) ListRuns(ctx context.Context, statuses ...Status) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ClearFinished removes terminal runs completed before cutoff together with
// their quarantine history.
func (s *Store) ClearFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := []any{StatusSucceeded, StatusFailed, StatusErrored, StatusAborted}
	args := append(terminal, formatTime(cutoff))
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM runs WHERE status IN (`+makePlaceholders(len(terminal))+`) AND completed_at < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished runs: %w", err)
	}
	return res.RowsAffected()
}
