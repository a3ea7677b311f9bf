package batch

import (
	"encoding/json"
	"io"
	"strings"

	"batchflow/internal/faults"
)

// FirstStepInput seeds one record of the firstSteps collection.
type FirstStepInput struct {
	PassPre   bool `json:"passPre"`
	PassFirst bool `json:"passFirst"`
}

// SecondStepInput seeds one record of the secondSteps collection.
type SecondStepInput struct {
	PassPre    bool `json:"passPre"`
	PassSecond bool `json:"passSecond"`
}

// RunInput is the external request that starts a batch run.
type RunInput struct {
	ID          string            `json:"id"`
	FirstSteps  []FirstStepInput  `json:"firstSteps"`
	SecondSteps []SecondStepInput `json:"secondSteps"`
	PassFinal   bool              `json:"passFinal"`
}

// DecodeInput parses a JSON run input and validates it.
func DecodeInput(r io.Reader) (RunInput, error) {
	var input RunInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return RunInput{}, faults.Wrap(faults.ErrValidation, "input", "decode", "malformed run input", err)
	}
	if err := input.Validate(); err != nil {
		return RunInput{}, err
	}
	return input, nil
}

// Validate checks the input is usable.
func (in RunInput) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return faults.Wrap(faults.ErrValidation, "input", "validate", "id is required", nil)
	}
	return nil
}

// NewState converts the run input into the initial batch state.
func NewState(in RunInput) State {
	state := State{
		ID:          strings.TrimSpace(in.ID),
		FirstSteps:  make([]StepRecord, len(in.FirstSteps)),
		SecondSteps: make([]StepRecord, len(in.SecondSteps)),
		PassFinal:   in.PassFinal,
	}
	for i, step := range in.FirstSteps {
		state.FirstSteps[i] = StepRecord{PassPre: step.PassPre, PassStage: step.PassFirst}
	}
	for i, step := range in.SecondSteps {
		state.SecondSteps[i] = StepRecord{PassPre: step.PassPre, PassStage: step.PassSecond}
	}
	return state
}
