package batchmap

import (
	"batchflow/internal/batch"
	"batchflow/internal/faults"
)

// Normalize flattens out into a StepRecord with any captured error merged
// in. It fails when out carries no state, whether or not an error is
// present.
func Normalize(out Output) (batch.StepRecord, error) {
	if out.State == nil {
		return batch.StepRecord{}, faults.Wrap(faults.ErrValidation, "normalize", "", "incorrect input", nil)
	}
	record := out.State.Clone()
	if out.Error != nil {
		info := *out.Error
		record.Error = &info
	}
	return record, nil
}
