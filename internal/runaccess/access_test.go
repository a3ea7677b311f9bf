package runaccess_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/quarantine"
	"batchflow/internal/retry"
	"batchflow/internal/runaccess"
	"batchflow/internal/testsupport"
	"batchflow/internal/workflow"
)

func noSleep(time.Duration) {}

func TestOpenLocalWhenUnlocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session, err := runaccess.Open(cfg, logging.NewNop(), workflow.WithRetryOptions(retry.WithSleeper(noSleep)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	if session.Access.Mode() != runaccess.ModeLocal {
		t.Fatalf("mode = %s, want local", session.Access.Mode())
	}
	ctx := context.Background()

	input := testsupport.Input("batch-local", 1)
	input.FirstSteps[0].PassFirst = false
	run, err := session.Access.Submit(ctx, input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.Status != "awaiting_resume" || run.ItemErrors != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}

	entries, err := session.Access.Quarantine(ctx)
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	if len(entries) != 1 || entries[0].ExecutionID != run.ID {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	resumed, err := session.Access.Resume(ctx, entries[0].ResumeToken, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != "succeeded" || resumed.Verdict != "PASS" {
		t.Fatalf("unexpected resumed run: %+v", resumed)
	}

	listed, err := session.Access.List(ctx, []string{"succeeded"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 run, got %d", len(listed))
	}
	missing, err := session.Access.Describe(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing run: %v %v", missing, err)
	}
}

func TestLocalSubmitReturnsRunWithRunError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session, err := runaccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	input := testsupport.Input("batch-unauth", 1)
	input.PassFinal = false
	run, err := session.Access.Submit(context.Background(), input)
	if !errors.Is(err, faults.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if run == nil || run.Status != "errored" || run.ErrorKind != "authorization" {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestLocalResumeUnknownToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session, err := runaccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	run, err := session.Access.Resume(context.Background(), "missing", "continue")
	if !errors.Is(err, quarantine.ErrUnknownToken) || run != nil {
		t.Fatalf("expected ErrUnknownToken, got %v %v", run, err)
	}
}

func TestOpenUsesDaemonWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer lock.Unlock()

	session, err := runaccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()
	if session.Access.Mode() != runaccess.ModeDaemon {
		t.Fatalf("mode = %s, want daemon", session.Access.Mode())
	}
}

func TestLocalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	session, err := runaccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	if _, err := session.Access.Submit(context.Background(), batch.RunInput{ID: "one", PassFinal: true}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status, err := session.Access.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running || status.Workflow.RunStats["succeeded"] != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
