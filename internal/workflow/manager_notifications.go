package workflow

import (
	"context"
	"errors"
	"time"

	"batchflow/internal/logging"
	"batchflow/internal/notifications"
	"batchflow/internal/store"
)

func (m *Manager) notifyCompletion(ctx context.Context, run *store.Run) {
	if m.notifier == nil || run == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	duration := time.Duration(0)
	if !run.CreatedAt.IsZero() {
		duration = time.Since(run.CreatedAt)
	}
	if err := m.notifier.NotifyRunCompleted(ctx, notifications.Completion{
		ExecutionID: run.ID,
		BatchID:     run.BatchID,
		Status:      string(run.Status),
		Verdict:     string(run.State.FinalStepResult),
		Duration:    duration,
	}); err != nil {
		m.logger.Debug("run completion notification failed",
			logging.String(logging.FieldRunID, run.ID),
			logging.Error(err),
		)
	}
}

func (m *Manager) notifyError(ctx context.Context, run *store.Run, runErr *RunError) {
	if m.notifier == nil || runErr == nil {
		return
	}
	if err := m.notifier.NotifyError(context.WithoutCancel(ctx), runErr.Err, runLabel(run)); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send error notification")
			return
		}
		m.logger.Debug("run error notification failed", logging.Error(err))
	}
}
