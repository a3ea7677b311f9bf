package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/quarantine"
	"batchflow/internal/store"
)

// ErrStopped is returned when work is submitted after Stop.
var ErrStopped = errors.New("workflow manager stopped")

// ErrRunActive is returned when a run is already executing in this process.
var ErrRunActive = errors.New("run already executing")

// Execute creates a run from input and drives it until it completes or
// suspends. Runs that end errored or aborted return a *RunError alongside the
// run.
func (m *Manager) Execute(ctx context.Context, input batch.RunInput) (*store.Run, error) {
	run, err := m.createRun(ctx, input)
	if err != nil {
		return nil, err
	}
	return run, m.drive(ctx, run)
}

// Submit creates a run and executes it in the background.
func (m *Manager) Submit(ctx context.Context, input batch.RunInput) (*store.Run, error) {
	run, err := m.createRun(ctx, input)
	if err != nil {
		return nil, err
	}
	snapshot := *run
	if err := m.launch(run); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Resume consumes token and applies action to the suspended run. Continue
// drives the run from the node after its gate; abort ends it as aborted.
func (m *Manager) Resume(ctx context.Context, token string, action quarantine.Action) (*store.Run, error) {
	action, err := quarantine.ParseAction(string(action))
	if err != nil {
		return nil, faults.Wrap(faults.ErrValidation, "resume", "parse action", "", err)
	}
	run, err := m.claim(ctx, token, action)
	if err != nil {
		return nil, err
	}
	if action == quarantine.ActionAbort {
		return run, m.aborted(ctx, run)
	}
	return run, m.drive(ctx, run)
}

// ResumeAsync consumes token synchronously and then continues the run in
// the background. Abort is applied synchronously. When the manager is
// already stopping the claimed run is still returned without error; it
// stays running in the store and Recover picks it up.
func (m *Manager) ResumeAsync(ctx context.Context, token string, action quarantine.Action) (*store.Run, error) {
	action, err := quarantine.ParseAction(string(action))
	if err != nil {
		return nil, faults.Wrap(faults.ErrValidation, "resume", "parse action", "", err)
	}
	run, err := m.claim(ctx, token, action)
	if err != nil {
		return nil, err
	}
	if action == quarantine.ActionAbort {
		return run, m.aborted(ctx, run)
	}
	snapshot := *run
	if err := m.launch(run); err != nil {
		if !errors.Is(err, ErrStopped) {
			return nil, err
		}
		// The token is spent and the run is checkpointed as running, so
		// Recover continues it on the next start.
		m.logger.Warn("resume deferred until restart",
			logging.String(logging.FieldRunID, run.ID),
			logging.String("node", run.Node),
			logging.String(logging.FieldEventType, "resume_deferred"),
			logging.String(logging.FieldErrorHint, "start the daemon again to continue the run"),
		)
	}
	return &snapshot, nil
}

// Recover restarts every pending or running run at its checkpointed node in
// the background and reports how many were restarted.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	runs, err := m.store.ListRuns(ctx, store.StatusPending, store.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("list recoverable runs: %w", err)
	}
	started := 0
	for _, run := range runs {
		if err := m.launch(run); err != nil {
			if errors.Is(err, ErrRunActive) {
				continue
			}
			return started, err
		}
		m.logger.Info("recovering run",
			logging.String(logging.FieldRunID, run.ID),
			logging.String("node", run.Node),
			logging.String(logging.FieldEventType, "run_recovered"),
		)
		started++
	}
	return started, nil
}

// Wait blocks until every background run has finished or suspended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop cancels background runs and waits for them to return. Cancelled runs
// stay running at their last checkpoint and are picked up by Recover.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) createRun(ctx context.Context, input batch.RunInput) (*store.Run, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}
	run := &store.Run{
		ID:      m.newID(),
		BatchID: strings.TrimSpace(input.ID),
		Status:  store.StatusPending,
		Node:    m.engine.Graph().Start(),
		State:   batch.NewState(input),
	}
	if err := m.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	m.logger.Info("run created",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldBatchID, run.BatchID),
		logging.Int("first_steps", len(run.State.FirstSteps)),
		logging.Int("second_steps", len(run.State.SecondSteps)),
		logging.String(logging.FieldEventType, "run_created"),
	)
	return run, nil
}

// claim consumes token. An abort ends the run in the same store
// transaction; continue hands back a running run for the caller to drive.
func (m *Manager) claim(ctx context.Context, token string, action quarantine.Action) (*store.Run, error) {
	release := store.Release{Resolution: string(action)}
	if action == quarantine.ActionAbort {
		cause := abortCause()
		release.Status = store.StatusAborted
		release.ErrorKind = faults.Kind(cause)
		release.ErrorMessage = cause.Error()
	}
	run, entry, err := m.store.ReleaseToken(ctx, token, release)
	if errors.Is(err, store.ErrTokenNotFound) {
		return nil, quarantine.ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("consume resume token: %w", err)
	}
	m.logger.Info("quarantine resolved",
		logging.String(logging.FieldRunID, run.ID),
		logging.String("gate", entry.Node),
		logging.String("action", string(action)),
		logging.String("resume_node", run.Node),
		logging.String(logging.FieldEventType, "quarantine_resolved"),
	)
	return run, nil
}

func abortCause() error {
	return faults.Wrap(faults.ErrQuarantineAborted, "quarantine", "resume", "run aborted by reviewer", nil)
}

// aborted reports a run that claim already ended as aborted.
func (m *Manager) aborted(ctx context.Context, run *store.Run) error {
	m.logger.Info("run aborted",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldEventType, "run_aborted"),
	)
	m.notifyCompletion(ctx, run)
	return &RunError{RunID: run.ID, Status: run.Status, Node: run.Node, Err: abortCause()}
}

func (m *Manager) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[id]; busy {
		return false
	}
	m.active[id] = struct{}{}
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) launch(run *store.Run) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if _, busy := m.active[run.ID]; busy {
		m.mu.Unlock()
		return ErrRunActive
	}
	m.active[run.ID] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.release(run.ID)
		_ = m.execute(m.baseCtx, run)
	}()
	return nil
}

func (m *Manager) drive(ctx context.Context, run *store.Run) error {
	if !m.acquire(run.ID) {
		return ErrRunActive
	}
	defer m.release(run.ID)
	return m.execute(ctx, run)
}

func (m *Manager) execute(ctx context.Context, run *store.Run) error {
	started := time.Now()
	err := m.engine.Run(ctx, run)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.setLastError(err)
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		m.notifyError(ctx, run, runErr)
	}
	if run.Status.IsTerminal() {
		m.logger.Info("run finished",
			logging.String(logging.FieldRunID, run.ID),
			logging.String("status", string(run.Status)),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "run_finished"),
		)
		m.notifyCompletion(ctx, run)
	}
	return err
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func runLabel(run *store.Run) string {
	if id := strings.TrimSpace(run.BatchID); id != "" {
		return fmt.Sprintf("run %s (%s)", run.ID, id)
	}
	return fmt.Sprintf("run %s", run.ID)
}
