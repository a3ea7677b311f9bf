package api

import (
	"context"
	"fmt"
	"time"

	"batchflow/internal/store"
)

// RunReader abstracts run persistence needed for API queries and pruning.
type RunReader interface {
	ListRuns(ctx context.Context, statuses ...store.Status) ([]*store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
	Stats(ctx context.Context) (map[store.Status]int, error)
	PendingMessages(ctx context.Context) ([]store.QuarantineEntry, error)
	ClearFinished(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunService exposes read-only run operations returning API DTOs.
type RunService struct {
	store RunReader
}

// NewRunService constructs a RunService around the provided reader.
func NewRunService(store RunReader) *RunService {
	if store == nil {
		return nil
	}
	return &RunService{store: store}
}

// List returns runs filtered by status.
func (s *RunService) List(ctx context.Context, statuses ...store.Status) ([]Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	runs, err := s.store.ListRuns(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// Stats returns run summary counts keyed by status string.
func (s *RunService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeRunStats(stats), nil
}

// Describe fetches a single run. A missing run returns nil, nil.
func (s *RunService) Describe(ctx context.Context, id string) (*Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil || run == nil {
		return nil, err
	}
	dto := FromRun(run)
	return &dto, nil
}

// Quarantine lists entries awaiting resume.
func (s *RunService) Quarantine(ctx context.Context) ([]QuarantineEntry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.PendingMessages(ctx)
	if err != nil {
		return nil, err
	}
	return FromEntries(entries), nil
}

// Prune deletes terminal runs that completed more than olderThan ago.
func (s *RunService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %s", olderThan)
	}
	return s.store.ClearFinished(ctx, time.Now().Add(-olderThan))
}

// ParseStatuses converts status filter strings, dropping unknown values.
func ParseStatuses(values []string) []store.Status {
	var out []store.Status
	for _, value := range values {
		if status, ok := store.ParseStatus(value); ok {
			out = append(out, status)
		}
	}
	return out
}
