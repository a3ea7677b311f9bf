package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/stage"
)

func TestRegistryInvokesBuiltins(t *testing.T) {
	reg := stage.DefaultRegistry(logging.NewNop())
	ctx := context.Background()

	inv := stage.NewInvocation("run-1", batch.StepRecord{PassPre: true, PassStage: true})
	for _, name := range stage.FirstChain() {
		var err error
		inv, err = reg.Invoke(ctx, name, inv)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if inv.ID != "run-1" || inv.State == nil {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if inv.State.PreSetupResult != batch.ResultPass || inv.State.StageResult != batch.ResultPass {
		t.Fatalf("unexpected record: %+v", *inv.State)
	}
}

func TestRegistryRejectsUnknownStage(t *testing.T) {
	reg := stage.NewRegistry(nil)
	_, err := reg.Invoke(context.Background(), "missing", stage.NewInvocation("run", batch.StepRecord{}))
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryRejectsMissingState(t *testing.T) {
	reg := stage.DefaultRegistry(nil)
	_, err := reg.Invoke(context.Background(), stage.PreSetupName, stage.Invocation{ID: "run"})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegistryHealth(t *testing.T) {
	reg := stage.NewRegistry(nil)
	reg.Register(stage.PreSetupName, func(_ context.Context, r batch.StepRecord) (batch.StepRecord, error) { return r, nil })
	reg.Register(stage.SecondStepName, func(_ context.Context, r batch.StepRecord) (batch.StepRecord, error) { return r, nil })

	got := reg.Health(stage.FirstChain(), stage.SecondChain())
	want := []stage.Health{
		{Name: stage.PreSetupName, Ready: true},
		{Name: stage.FirstStepName, Detail: "not registered; items stop at step 2 of pre-setup -> first-step"},
		{Name: stage.SecondStepName, Ready: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("health mismatch (-want +got):\n%s", diff)
	}
}
