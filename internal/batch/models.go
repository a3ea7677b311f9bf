package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the business outcome of a stage for one record.
type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// ResultOf maps a boolean outcome onto PASS/FAIL.
func ResultOf(pass bool) Result {
	if pass {
		return ResultPass
	}
	return ResultFail
}

// IsSet reports whether the result has been computed.
func (r Result) IsSet() bool {
	return r != ""
}

// ErrorInfo is the captured failure attached to a record whose stage chain
// exhausted its retries.
type ErrorInfo struct {
	Stage    string `json:"stage,omitempty"`
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// StepRecord is one item processed through a stage chain.
type StepRecord struct {
	PassPre        bool       `json:"passPre"`
	PreSetupResult Result     `json:"preSetupResult,omitempty"`
	PassStage      bool       `json:"passStage"`
	StageResult    Result     `json:"stageResult,omitempty"`
	Error          *ErrorInfo `json:"error,omitempty"`
}

// HasError reports whether the record carries a captured error.
func (r StepRecord) HasError() bool {
	return r.Error != nil
}

// Clone returns a deep copy of the record.
func (r StepRecord) Clone() StepRecord {
	if r.Error != nil {
		info := *r.Error
		r.Error = &info
	}
	return r
}

// State is the full data of one run.
type State struct {
	ID              string       `json:"id"`
	FirstSteps      []StepRecord `json:"firstSteps"`
	SecondSteps     []StepRecord `json:"secondSteps"`
	PassFinal       bool         `json:"passFinal"`
	FinalStepResult Result       `json:"finalStepResult,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.FirstSteps = cloneSteps(s.FirstSteps)
	s.SecondSteps = cloneSteps(s.SecondSteps)
	return s
}

// Snapshot serializes the state to the JSON form carried by quarantine
// messages and run checkpoints.
func (s State) Snapshot() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal batch state: %w", err)
	}
	return string(data), nil
}

// ParseSnapshot restores a state serialized with Snapshot.
func ParseSnapshot(raw string) (State, error) {
	var state State
	if strings.TrimSpace(raw) == "" {
		return state, fmt.Errorf("empty batch state snapshot")
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, fmt.Errorf("parse batch state: %w", err)
	}
	return state, nil
}

func cloneSteps(steps []StepRecord) []StepRecord {
	if steps == nil {
		return nil
	}
	out := make([]StepRecord, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}
