package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"batchflow/internal/api"
	"batchflow/internal/daemon"
	"batchflow/internal/logging"
	"batchflow/internal/testsupport"
	"batchflow/internal/workflow"
)

const (
	passingInput = `{"id":"batch-ok","firstSteps":[{"passPre":true,"passFirst":true}],` +
		`"secondSteps":[{"passPre":true,"passSecond":true}],"passFinal":true}`
	failingInput = `{"id":"batch-fail","firstSteps":[{"passPre":false,"passFirst":true}],` +
		`"secondSteps":[{"passPre":true,"passSecond":true}],"passFinal":true}`
	quarantineInput = `{"id":"batch-q","firstSteps":[{"passPre":true,"passFirst":true},{"passPre":true,"passFirst":false}],` +
		`"secondSteps":[{"passPre":true,"passSecond":true}],"passFinal":true}`
	unauthorizedInput = `{"id":"batch-auth","firstSteps":[],"secondSteps":[],"passFinal":false}`
)

func TestRunLocalSucceeds(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeInput(t, env.baseDir, passingInput)

	out, _, err := runCLI(t, []string{"run", path}, env.configPath, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Succeeded")
	requireContains(t, out, "PASS")
	requireContains(t, out, "batch-ok")
}

func TestRunReadsStdinAndReportsFailVerdict(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--json"}, env.configPath, failingInput)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run api.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	if run.Status != "failed" || run.Verdict != "FAIL" {
		t.Fatalf("status=%s verdict=%s", run.Status, run.Verdict)
	}
	if run.State.FirstSteps[0].StageResult != "FAIL" {
		t.Fatalf("first step result = %s", run.State.FirstSteps[0].StageResult)
	}
}

func TestRunUnauthorizedFinalStepErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "-"}, env.configPath, unauthorizedInput)
	if err == nil {
		t.Fatal("expected error for unauthorized final step")
	}
	requireContains(t, out, "Errored")
}

func TestRunRejectsMalformedInput(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"run", "-"}, env.configPath, `{"firstSteps":[]}`); err == nil {
		t.Fatal("expected error for input without id")
	}
	if _, _, err := runCLI(t, []string{"run", "-"}, env.configPath, `{"id":"x","bogus":1}`); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestQuarantineAndResumeLocal(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeInput(t, env.baseDir, quarantineInput)

	out, _, err := runCLI(t, []string{"run", path}, env.configPath, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Awaiting Resume")
	requireContains(t, out, "Resume with: batchflow resume")

	out, _, err = runCLI(t, []string{"quarantine", "list", "--json"}, env.configPath, "")
	if err != nil {
		t.Fatalf("quarantine list: %v", err)
	}
	var pending api.QuarantineListResponse
	if err := json.Unmarshal([]byte(out), &pending); err != nil {
		t.Fatalf("decode quarantine: %v\n%s", err, out)
	}
	if len(pending.Entries) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(pending.Entries))
	}
	entry := pending.Entries[0]
	if entry.Collection != "firstSteps" || entry.ErrorCount != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	out, _, err = runCLI(t, []string{"quarantine", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("quarantine list table: %v", err)
	}
	requireContains(t, out, entry.ResumeToken)

	out, _, err = runCLI(t, []string{"resume", entry.ResumeToken}, env.configPath, "")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "Succeeded")
	requireContains(t, out, "injected")

	_, _, err = runCLI(t, []string{"resume", entry.ResumeToken}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "already used") {
		t.Fatalf("expected single-use token error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"quarantine", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("quarantine list after resume: %v", err)
	}
	requireContains(t, out, "No runs awaiting resume")
}

func TestResumeAbortLocal(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--json", "-"}, env.configPath, quarantineInput)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run api.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ResumeToken == "" {
		t.Fatal("expected resume token")
	}

	out, _, err = runCLI(t, []string{"resume", "--abort", run.ResumeToken}, env.configPath, "")
	if err != nil {
		t.Fatalf("resume --abort: %v", err)
	}
	requireContains(t, out, "aborted")

	out, _, err = runCLI(t, []string{"runs", "show", run.ID}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "Aborted")
	requireContains(t, out, "quarantine_aborted")
}

func TestRunsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"run", "-"}, env.configPath, passingInput); err != nil {
		t.Fatalf("run passing: %v", err)
	}
	if _, _, err := runCLI(t, []string{"run", "-"}, env.configPath, failingInput); err != nil {
		t.Fatalf("run failing: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "batch-ok")
	requireContains(t, out, "batch-fail")

	out, _, err = runCLI(t, []string{"runs", "list", "--status", "failed", "--json"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs list filtered: %v", err)
	}
	var listed api.RunListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(listed.Runs) != 1 || listed.Runs[0].BatchID != "batch-fail" {
		t.Fatalf("unexpected filtered runs: %+v", listed.Runs)
	}

	out, _, err = runCLI(t, []string{"runs", "show", listed.Runs[0].ID}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "firstSteps")
	requireContains(t, out, "secondSteps")

	if _, _, err := runCLI(t, []string{"runs", "show", "missing"}, env.configPath, ""); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestRunsPrune(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"run", "-"}, env.configPath, passingInput); err != nil {
		t.Fatalf("run passing: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs", "prune"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs prune: %v", err)
	}
	requireContains(t, out, "Removed 0 finished runs")

	time.Sleep(5 * time.Millisecond)
	out, _, err = runCLI(t, []string{"runs", "prune", "--older-than", "1ms"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs prune --older-than: %v", err)
	}
	requireContains(t, out, "Removed 1 finished run older than 1ms")

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs")

	if _, _, err := runCLI(t, []string{"runs", "prune", "--older-than", "0s"}, env.configPath, ""); err == nil {
		t.Fatal("expected error for zero age")
	}
}

func TestStatusLocal(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Awaiting Resume")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath, "")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Run database")
	requireContains(t, out, "Disabled (no ntfy topic)")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath, "")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "no ntfy topic configured")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestCommandsUseRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	st := testsupport.MustOpenStore(t, env.cfg)
	mgr, err := workflow.NewManager(env.cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(env.cfg, st, logging.NewNop(), mgr, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	daemonCfg := *env.cfg
	daemonCfg.Paths.APIBind = d.APIAddress()
	writeTestConfig(t, env.configPath, &daemonCfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "daemon")

	out, _, err = runCLI(t, []string{"run", "-"}, env.configPath, passingInput)
	if err != nil {
		t.Fatalf("run via daemon: %v", err)
	}
	requireContains(t, out, "Succeeded")

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("runs list via daemon: %v", err)
	}
	requireContains(t, out, "batch-ok")

	if _, _, err := runCLI(t, []string{"resume", "not-a-token"}, env.configPath, ""); err == nil {
		t.Fatal("expected unknown token error via daemon")
	}
}

func TestLogsPrintsCurrentLog(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.configPath, "")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log output")

	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.cfg.CurrentLogPath(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath, "")
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.configPath, "")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "not running")
}
