package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"batchflow/internal/batch"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, batch_id, status, node, state_json, resume_token, error_kind, error_message, created_at, updated_at, completed_at"

const entryColumns = "resume_token, run_id, node, collection, error_count, payload, created_at, resolved_at, resolution"

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		id           string
		batchID      string
		statusStr    string
		node         sql.NullString
		stateJSON    string
		resumeToken  sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&batchID,
		&statusStr,
		&node,
		&stateJSON,
		&resumeToken,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	state, err := batch.ParseSnapshot(stateJSON)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}

	run := &Run{
		ID:           id,
		BatchID:      batchID,
		Status:       Status(statusStr),
		Node:         node.String,
		State:        state,
		ResumeToken:  resumeToken.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return run, nil
}

func scanEntry(scanner rowScanner) (QuarantineEntry, error) {
	var (
		entry       QuarantineEntry
		createdRaw  string
		resolvedRaw sql.NullString
		resolution  sql.NullString
	)
	if err := scanner.Scan(
		&entry.Token,
		&entry.RunID,
		&entry.Node,
		&entry.Collection,
		&entry.ErrorCount,
		&entry.Payload,
		&createdRaw,
		&resolvedRaw,
		&resolution,
	); err != nil {
		return QuarantineEntry{}, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			entry.ResolvedAt = &resolved
		}
	}
	entry.Resolution = resolution.String
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
