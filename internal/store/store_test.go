package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"batchflow/internal/batch"
	"batchflow/internal/store"
	"batchflow/internal/testsupport"
)

func TestCreateAndGetRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, "exec-1", testsupport.Input("batch-1", 2))
	if run.Status != store.StatusPending || run.BatchID != "batch-1" {
		t.Fatalf("unexpected defaults: %+v", run)
	}

	fetched, err := st.GetRun(ctx, "exec-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if fetched == nil || fetched.BatchID != "batch-1" || len(fetched.State.FirstSteps) != 2 {
		t.Fatalf("unexpected run: %#v", fetched)
	}
	if fetched.CreatedAt.IsZero() || fetched.CompletedAt != nil {
		t.Fatalf("unexpected timestamps: %#v", fetched)
	}

	missing, err := st.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil run for missing id, got %v %v", missing, err)
	}
}

func TestSaveRunCheckpointsState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, "exec-1", testsupport.Input("batch-1", 1))
	run.Status = store.StatusRunning
	run.Node = "second-map"
	run.State.FirstSteps[0].PreSetupResult = batch.ResultPass
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	fetched, _ := st.GetRun(ctx, "exec-1")
	if fetched.Node != "second-map" || fetched.State.FirstSteps[0].PreSetupResult != batch.ResultPass {
		t.Fatalf("checkpoint not persisted: %#v", fetched)
	}

	run.Status = store.StatusSucceeded
	run.Node = ""
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun terminal: %v", err)
	}
	fetched, _ = st.GetRun(ctx, "exec-1")
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at on terminal run")
	}

	ghost := &store.Run{ID: "ghost", State: batch.State{ID: "x"}}
	if err := st.SaveRun(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunsFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewRun(t, st, "a", testsupport.Input("a", 1))
	testsupport.NewRun(t, st, "b", testsupport.Input("b", 1))
	a.Status = store.StatusRunning
	if err := st.SaveRun(ctx, a); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	all, err := st.ListRuns(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d (%v)", len(all), err)
	}
	running, err := st.ListRuns(ctx, store.StatusRunning)
	if err != nil || len(running) != 1 || running[0].ID != "a" {
		t.Fatalf("unexpected running runs: %v (%v)", running, err)
	}
	pending, err := st.ListRuns(ctx, store.StatusPending, store.StatusAwaitingResume)
	if err != nil || len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("unexpected pending runs: %v (%v)", pending, err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[store.StatusRunning] != 1 || stats[store.StatusPending] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestSuspendAndReleaseToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, "exec-1", testsupport.Input("batch-1", 1))
	run.Status = store.StatusRunning
	run.Node = "first-quarantine"
	run.State.FirstSteps[0].Error = &batch.ErrorInfo{Stage: "first-step", Error: "injected"}
	entry := store.QuarantineEntry{
		Token:      "tok-1",
		Node:       "first-quarantine",
		Collection: string(batch.FirstSteps),
		ErrorCount: 1,
		Payload:    `{"executionId":"exec-1"}`,
	}
	if err := st.Suspend(ctx, run, entry); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if run.Status != store.StatusAwaitingResume || run.ResumeToken != "tok-1" {
		t.Fatalf("run not updated in place: %+v", run)
	}

	persisted, _ := st.GetRun(ctx, "exec-1")
	if persisted.Status != store.StatusAwaitingResume || !persisted.State.FirstSteps[0].HasError() {
		t.Fatalf("suspension checkpoint missing: %#v", persisted)
	}

	pending, err := st.PendingMessages(ctx)
	if err != nil || len(pending) != 1 || pending[0].RunID != "exec-1" || !pending[0].Pending() {
		t.Fatalf("unexpected pending messages: %v (%v)", pending, err)
	}

	resumed, resolved, err := st.ReleaseToken(ctx, "tok-1", store.Release{Resolution: "continue"})
	if err != nil {
		t.Fatalf("ReleaseToken: %v", err)
	}
	if resumed.Status != store.StatusRunning || resumed.Node != "first-quarantine" || resumed.ResumeToken != "" {
		t.Fatalf("unexpected resumed run: %+v", resumed)
	}
	if resolved.Resolution != "continue" || resolved.Pending() {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	if _, _, err := st.ReleaseToken(ctx, "tok-1", store.Release{Resolution: "continue"}); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected single-use token, got %v", err)
	}
	if _, _, err := st.ReleaseToken(ctx, "unknown", store.Release{Resolution: "continue"}); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	pending, _ = st.PendingMessages(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages, got %v", pending)
	}
	history, err := st.MessagesForRun(ctx, "exec-1")
	if err != nil || len(history) != 1 {
		t.Fatalf("expected quarantine history, got %v (%v)", history, err)
	}
}

func TestSuspendRollsBackOnDuplicateToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewRun(t, st, "a", testsupport.Input("a", 1))
	second := testsupport.NewRun(t, st, "b", testsupport.Input("b", 1))
	entry := store.QuarantineEntry{Token: "dup", Node: "n", Collection: "firstSteps", Payload: "{}"}
	if err := st.Suspend(ctx, first, entry); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := st.Suspend(ctx, second, entry); err == nil {
		t.Fatal("expected duplicate token to fail")
	}
	persisted, _ := st.GetRun(ctx, "b")
	if persisted.Status != store.StatusPending {
		t.Fatalf("expected rollback to keep status pending, got %s", persisted.Status)
	}
}

func TestReleaseTokenAbortsInOneStep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, "exec-abort", testsupport.Input("batch-abort", 1))
	run.Node = "first-collector"
	if err := st.Suspend(ctx, run, store.QuarantineEntry{Token: "tok-abort", Node: "first-quarantine", ErrorCount: 1, Payload: "{}"}); err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	released, entry, err := st.ReleaseToken(ctx, "tok-abort", store.Release{
		Resolution:   "abort",
		Status:       store.StatusAborted,
		ErrorKind:    "quarantine_aborted",
		ErrorMessage: "run aborted by reviewer",
	})
	if err != nil {
		t.Fatalf("ReleaseToken: %v", err)
	}
	if released.Status != store.StatusAborted || released.CompletedAt == nil || entry.Resolution != "abort" {
		t.Fatalf("unexpected release: run=%+v entry=%+v", released, entry)
	}

	persisted, err := st.GetRun(ctx, "exec-abort")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if persisted.Status != store.StatusAborted || persisted.ErrorKind != "quarantine_aborted" || persisted.CompletedAt == nil {
		t.Fatalf("abort not committed with the token: %+v", persisted)
	}
	recoverable, _ := st.ListRuns(ctx, store.StatusPending, store.StatusRunning)
	if len(recoverable) != 0 {
		t.Fatalf("aborted run still recoverable: %v", recoverable)
	}

	if _, _, err := st.ReleaseToken(ctx, "tok-abort", store.Release{Resolution: "continue"}); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for reused token, got %v", err)
	}
}

func TestReleaseTokenRejectsNonTerminalTarget(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, _, err := st.ReleaseToken(context.Background(), "tok", store.Release{Status: store.StatusAwaitingResume}); err == nil {
		t.Fatal("expected error for awaiting_resume target")
	}
}

func TestClearFinished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewRun(t, st, "done", testsupport.Input("done", 1))
	done.Status = store.StatusSucceeded
	if err := st.SaveRun(ctx, done); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	testsupport.NewRun(t, st, "open", testsupport.Input("open", 1))

	removed, err := st.ClearFinished(ctx, time.Now().Add(time.Minute))
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d (%v)", removed, err)
	}
	left, _ := st.ListRuns(ctx)
	if len(left) != 1 || left[0].ID != "open" {
		t.Fatalf("unexpected remaining runs: %v", left)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.NewRun(t, st, "keep", testsupport.Input("keep", 1))
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	run, err := reopened.GetRun(context.Background(), "keep")
	if err != nil || run == nil {
		t.Fatalf("expected run to survive reopen, got %v (%v)", run, err)
	}
}

func TestOpenRejectsForeignSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := store.ParseStatus(" Awaiting_Resume "); !ok || status != store.StatusAwaitingResume {
		t.Fatalf("unexpected parse: %q %v", status, ok)
	}
	if _, ok := store.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
	if !store.StatusAborted.IsTerminal() || store.StatusAwaitingResume.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
