package batch_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"batchflow/internal/batch"
)

func TestNewStateMapsStageFlags(t *testing.T) {
	input := batch.RunInput{
		ID:          " run-1 ",
		FirstSteps:  []batch.FirstStepInput{{PassPre: true, PassFirst: false}},
		SecondSteps: []batch.SecondStepInput{{PassPre: false, PassSecond: true}, {PassPre: true, PassSecond: true}},
		PassFinal:   true,
	}
	got := batch.NewState(input)
	want := batch.State{
		ID:          "run-1",
		FirstSteps:  []batch.StepRecord{{PassPre: true, PassStage: false}},
		SecondSteps: []batch.StepRecord{{PassPre: false, PassStage: true}, {PassPre: true, PassStage: true}},
		PassFinal:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeInputRequiresID(t *testing.T) {
	if _, err := batch.DecodeInput(strings.NewReader(`{"firstSteps":[],"secondSteps":[],"passFinal":true}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := batch.DecodeInput(strings.NewReader(`{"id":"x","bogus":1}`)); err == nil {
		t.Fatal("expected error for unknown field")
	}
	in, err := batch.DecodeInput(strings.NewReader(`{"id":"x","firstSteps":[{"passPre":true,"passFirst":true}],"secondSteps":[],"passFinal":false}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(in.FirstSteps) != 1 || !in.FirstSteps[0].PassFirst {
		t.Fatalf("unexpected input: %#v", in)
	}
}

func TestCollectionReplacementPreservesOtherFields(t *testing.T) {
	state := batch.State{
		ID:          "run",
		FirstSteps:  []batch.StepRecord{{PassPre: true}},
		SecondSteps: []batch.StepRecord{{PassPre: false}},
		PassFinal:   true,
	}
	replaced := []batch.StepRecord{{PassPre: true, PreSetupResult: batch.ResultPass}}
	next, err := batch.FirstSteps.WithSteps(state, replaced)
	if err != nil {
		t.Fatalf("WithSteps: %v", err)
	}
	if next.FirstSteps[0].PreSetupResult != batch.ResultPass {
		t.Fatalf("collection not replaced: %#v", next.FirstSteps)
	}
	if state.FirstSteps[0].PreSetupResult.IsSet() {
		t.Fatal("original state was mutated")
	}
	if diff := cmp.Diff(state.SecondSteps, next.SecondSteps); diff != "" {
		t.Fatalf("second steps changed:\n%s", diff)
	}
	if _, err := batch.Collection("thirdSteps").WithSteps(state, nil); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}

func TestSnapshotRoundTripKeepsErrors(t *testing.T) {
	state := batch.State{
		ID: "run",
		FirstSteps: []batch.StepRecord{{
			PassPre:        true,
			PreSetupResult: batch.ResultPass,
			Error:          &batch.ErrorInfo{Stage: "first-step", Error: "boom", Attempts: 3},
		}},
	}
	raw, err := state.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.Contains(raw, `"stage":"first-step"`) {
		t.Fatalf("snapshot missing error stage: %s", raw)
	}
	restored, err := batch.ParseSnapshot(raw)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if diff := cmp.Diff(state, restored); diff != "" {
		t.Fatalf("restored state mismatch:\n%s", diff)
	}
	if _, err := batch.ParseSnapshot("  "); err == nil {
		t.Fatal("expected error for empty snapshot")
	}
}
