package workflow

import (
	"context"
	"fmt"
	"sort"

	"batchflow/internal/logging"
	"batchflow/internal/quarantine"
	"batchflow/internal/stage"
	"batchflow/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	ActiveRuns      []string
	LastError       string
	RunStats        map[store.Status]int
	PendingMessages int
	StageHealth     []stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	active := make([]string, 0, len(m.active))
	for id := range m.active {
		active = append(active, id)
	}
	lastErr := m.lastErr
	m.mu.Unlock()
	sort.Strings(active)

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read run stats", logging.Error(err))
	}
	pending, err := m.store.PendingMessages(ctx)
	if err != nil {
		m.logger.Warn("failed to read quarantine queue", logging.Error(err))
	}

	summary := StatusSummary{ActiveRuns: active, RunStats: stats, PendingMessages: len(pending)}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if reg, ok := m.invoker.(*stage.Registry); ok {
		summary.StageHealth = reg.Health(stage.FirstChain(), stage.SecondChain())
	}
	return summary
}

// Get returns a run by id, or store.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*store.Run, error) {
	run, err := m.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return run, nil
}

// List returns runs filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...store.Status) ([]*store.Run, error) {
	return m.store.ListRuns(ctx, statuses...)
}

// PendingQuarantine lists quarantine messages awaiting resume.
func (m *Manager) PendingQuarantine(ctx context.Context) ([]quarantine.Message, error) {
	entries, err := m.store.PendingMessages(ctx)
	if err != nil {
		return nil, err
	}
	messages := make([]quarantine.Message, 0, len(entries))
	for _, entry := range entries {
		msg, err := quarantine.DecodeMessage(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("quarantine message %s: %w", entry.Token, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// PendingEntries lists quarantine queue rows awaiting resume.
func (m *Manager) PendingEntries(ctx context.Context) ([]store.QuarantineEntry, error) {
	return m.store.PendingMessages(ctx)
}
