package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Suspend checkpoints run as awaiting_resume and enqueues entry in the same
// transaction. run.ResumeToken is set to entry.Token.
func (s *Store) Suspend(ctx context.Context, run *Run, entry QuarantineEntry) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if strings.TrimSpace(entry.Token) == "" {
		return errors.New("resume token is required")
	}
	ctx = ensureContext(ctx)
	snapshot, err := run.State.Snapshot()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, node = ?, state_json = ?, resume_token = ?, updated_at = ?
             WHERE id = ?`,
			StatusAwaitingResume,
			nullableString(run.Node),
			snapshot,
			entry.Token,
			formatTime(now),
			run.ID,
		)
		if err != nil {
			return fmt.Errorf("checkpoint suspended run: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("suspend run %s: %w", run.ID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quarantine_messages (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)`,
			entry.Token,
			run.ID,
			entry.Node,
			entry.Collection,
			entry.ErrorCount,
			entry.Payload,
			formatTime(now),
		); err != nil {
			return fmt.Errorf("enqueue quarantine message: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.Status = StatusAwaitingResume
	run.ResumeToken = entry.Token
	run.UpdatedAt = now
	return nil
}

// Release describes how a consumed token leaves its run. A zero Status
// releases the run back to running; a terminal Status ends it, recording
// ErrorKind and ErrorMessage and stamping completed_at.
type Release struct {
	Resolution   string
	Status       Status
	ErrorKind    string
	ErrorMessage string
}

// ReleaseToken resolves the pending quarantine message for token and moves
// its run to release.Status. The message resolution and the run transition
// commit together, so a crash can never leave a run running after its
// reviewer aborted it. The token cannot be consumed again; ErrTokenNotFound
// is returned when no pending message matches.
func (s *Store) ReleaseToken(ctx context.Context, token string, release Release) (*Run, QuarantineEntry, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, QuarantineEntry{}, ErrTokenNotFound
	}
	status := release.Status
	if status == "" {
		status = StatusRunning
	}
	if status != StatusRunning && !status.IsTerminal() {
		return nil, QuarantineEntry{}, fmt.Errorf("release token %s: status %q is neither running nor terminal", token, status)
	}
	var (
		run   *Run
		entry QuarantineEntry
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		entry, err = scanEntry(tx.QueryRowContext(ctx,
			`SELECT `+entryColumns+` FROM quarantine_messages WHERE resume_token = ? AND resolved_at IS NULL`,
			token,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup quarantine message: %w", err)
		}

		run, err = scanRun(tx.QueryRowContext(ctx,
			`SELECT `+runColumns+` FROM runs WHERE id = ? AND status = ? AND resume_token = ?`,
			entry.RunID, StatusAwaitingResume, token,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup suspended run: %w", err)
		}

		now := time.Now().UTC()
		var completed *time.Time
		if status.IsTerminal() {
			completed = &now
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE quarantine_messages SET resolved_at = ?, resolution = ? WHERE resume_token = ?`,
			formatTime(now), nullableString(release.Resolution), token,
		); err != nil {
			return fmt.Errorf("resolve quarantine message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, resume_token = NULL, error_kind = ?, error_message = ?,
                 updated_at = ?, completed_at = ?
             WHERE id = ?`,
			status,
			nullableString(release.ErrorKind),
			nullableString(release.ErrorMessage),
			formatTime(now),
			nullableTime(completed),
			run.ID,
		); err != nil {
			return fmt.Errorf("release suspended run: %w", err)
		}
		entry.ResolvedAt = &now
		entry.Resolution = release.Resolution
		run.Status = status
		run.ResumeToken = ""
		run.ErrorKind = release.ErrorKind
		run.ErrorMessage = release.ErrorMessage
		run.UpdatedAt = now
		run.CompletedAt = completed
		return nil
	})
	if err != nil {
		return nil, QuarantineEntry{}, err
	}
	return run, entry, nil
}

// PendingMessages lists quarantine messages that have not been resumed,
// oldest first.
func (s *Store) PendingMessages(ctx context.Context) ([]QuarantineEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM quarantine_messages WHERE resolved_at IS NULL ORDER BY created_at, resume_token`)
}

// MessagesForRun lists every quarantine message a run produced.
func (s *Store) MessagesForRun(ctx context.Context, runID string) ([]QuarantineEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM quarantine_messages WHERE run_id = ? ORDER BY created_at, resume_token`, runID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]QuarantineEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quarantine messages: %w", err)
	}
	defer rows.Close()

	var entries []QuarantineEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarantine message: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
