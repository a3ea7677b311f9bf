package api

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"batchflow/internal/batch"
	"batchflow/internal/stage"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

func TestFromRun(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	run := &store.Run{
		ID:      "exec-1",
		BatchID: "batch-1",
		Status:  store.StatusFailed,
		Node:    "failed",
		State: batch.State{
			ID: "batch-1",
			FirstSteps: []batch.StepRecord{
				{PassPre: true, PreSetupResult: batch.ResultPass, Error: &batch.ErrorInfo{Stage: "first-step", Error: "injected"}},
				{PassPre: true, PreSetupResult: batch.ResultPass, PassStage: true, StageResult: batch.ResultPass},
			},
			FinalStepResult: batch.ResultFail,
		},
		CreatedAt:   created,
		UpdatedAt:   completed,
		CompletedAt: &completed,
	}

	dto := FromRun(run)
	if dto.Verdict != "FAIL" || dto.Status != "failed" || dto.ItemErrors != 1 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" || dto.CompletedAt != "2026-03-01T12:01:30.000Z" {
		t.Fatalf("unexpected timestamps: %s %s", dto.CreatedAt, dto.CompletedAt)
	}
	if diff := cmp.Diff(run.State, dto.State); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRunNil(t *testing.T) {
	if diff := cmp.Diff(Run{}, FromRun(nil)); diff != "" {
		t.Fatalf("expected zero value: %s", diff)
	}
	if FromRuns(nil) != nil {
		t.Fatal("expected nil slice")
	}
}

func TestFromEntry(t *testing.T) {
	resolved := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	dto := FromEntry(store.QuarantineEntry{
		Token:      "tok",
		RunID:      "exec-1",
		Node:       "first-quarantine",
		Collection: "firstSteps",
		ErrorCount: 2,
		ResolvedAt: &resolved,
		Resolution: "abort",
	})
	want := QuarantineEntry{
		ResumeToken: "tok",
		ExecutionID: "exec-1",
		Gate:        "first-quarantine",
		Collection:  "firstSteps",
		ErrorCount:  2,
		ResolvedAt:  "2026-03-01T13:00:00.000Z",
		Resolution:  "abort",
	}
	if diff := cmp.Diff(want, dto); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		ActiveRuns:      []string{"exec-2"},
		RunStats:        map[store.Status]int{store.StatusSucceeded: 3},
		PendingMessages: 1,
		StageHealth: []stage.Health{
			{Name: "second-step", Detail: "not registered; items stop at step 2 of pre-setup -> second-step"},
			{Name: "first-step", Ready: true},
		},
	}
	wf := FromStatusSummary(summary)
	if wf.RunStats["succeeded"] != 3 || wf.RunStats["pending"] != 0 {
		t.Fatalf("unexpected stats: %+v", wf.RunStats)
	}
	if _, ok := wf.RunStats["awaiting_resume"]; !ok {
		t.Fatal("expected every status key present")
	}
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "first-step" || wf.StageHealth[1].Ready {
		t.Fatalf("unexpected stage health: %+v", wf.StageHealth)
	}
}

func TestParseStatuses(t *testing.T) {
	got := ParseStatuses([]string{"Succeeded", "bogus", " awaiting_resume "})
	want := []store.Status{store.StatusSucceeded, store.StatusAwaitingResume}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}
}
