package stage

import (
	"context"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
)

// PreSetup records whether the item passed its pre-setup check. It never
// fails.
func PreSetup(record batch.StepRecord) batch.StepRecord {
	out := record.Clone()
	out.PreSetupResult = batch.ResultOf(record.PassPre)
	return out
}

// FirstStep resolves the first stage for record.
func FirstStep(record batch.StepRecord) (batch.StepRecord, error) {
	return itemStep(FirstStepName, "first step was set not to pass", record)
}

// SecondStep resolves the second stage for record.
func SecondStep(record batch.StepRecord) (batch.StepRecord, error) {
	return itemStep(SecondStepName, "second step was set not to pass", record)
}

// The provisional result follows the pre-setup outcome only. The pass flag
// decides whether it is returned at all.
func itemStep(name, message string, record batch.StepRecord) (batch.StepRecord, error) {
	provisional := batch.ResultFail
	if record.PreSetupResult == batch.ResultPass {
		provisional = batch.ResultPass
	}
	if !record.PassStage {
		return record, faults.Wrap(faults.ErrInjected, name, "execute", message, nil)
	}
	out := record.Clone()
	out.StageResult = provisional
	return out, nil
}

// FailCount counts records across both collections whose pre-setup and stage
// both resolved to FAIL.
func FailCount(state batch.State) int {
	count := 0
	for _, steps := range [][]batch.StepRecord{state.FirstSteps, state.SecondSteps} {
		for _, step := range steps {
			if step.PreSetupResult == batch.ResultFail && step.StageResult == batch.ResultFail {
				count++
			}
		}
	}
	return count
}

// FinalStep derives the run verdict. When PassFinal is false the provisional
// verdict is discarded and an authorization fault is returned.
func FinalStep(state batch.State) (batch.State, error) {
	verdict := batch.ResultOf(FailCount(state) == 0)
	if !state.PassFinal {
		return state, faults.Wrap(faults.ErrAuthorization, FinalStepName, "execute", "final step was set not to pass", nil)
	}
	out := state.Clone()
	out.FinalStepResult = verdict
	return out, nil
}

func preSetupFunc(_ context.Context, record batch.StepRecord) (batch.StepRecord, error) {
	return PreSetup(record), nil
}

func firstStepFunc(_ context.Context, record batch.StepRecord) (batch.StepRecord, error) {
	return FirstStep(record)
}

func secondStepFunc(_ context.Context, record batch.StepRecord) (batch.StepRecord, error) {
	return SecondStep(record)
}

// Final adapts FinalStep to FinalFunc.
func Final(_ context.Context, state batch.State) (batch.State, error) {
	return FinalStep(state)
}
