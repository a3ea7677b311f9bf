package daemon_test

import (
	"context"
	"testing"
	"time"

	"batchflow/internal/api"
	"batchflow/internal/daemon"
	"batchflow/internal/logging"
	"batchflow/internal/retry"
	"batchflow/internal/store"
	"batchflow/internal/testsupport"
	"batchflow/internal/workflow"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr, err := workflow.NewManager(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(cfg, st, logging.NewNop(), mgr, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if d.APIAddress() == "" {
		t.Fatal("expected api listener address")
	}

	client := api.NewClient(d.APIAddress(), "")
	remote, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("client.Status: %v", err)
	}
	if !remote.Running {
		t.Fatal("expected remote status running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	first, err := workflow.NewManager(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d1, err := daemon.New(cfg, st, logging.NewNop(), first, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d1.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d1.Stop)

	second, err := workflow.NewManager(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(second.Stop)
	d2, err := daemon.New(cfg, st, logging.NewNop(), second, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d2.Start(context.Background()); err == nil {
		d2.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonRecoversRunsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, st, "exec-left-running", testsupport.Input("batch-restart", 1))
	run.Status = store.StatusRunning
	run.Node = workflow.NodeFinalStep
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	mgr, err := workflow.NewManager(cfg, st, logging.NewNop(),
		workflow.WithRetryOptions(retry.WithSleeper(func(time.Duration) {})))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(cfg, st, logging.NewNop(), mgr, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	mgr.Wait()

	got, err := mgr.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != store.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", got.Status)
	}
}
