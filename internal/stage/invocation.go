package stage

import (
	"context"

	"batchflow/internal/batch"
)

// Stage names as registered with a Registry.
const (
	PreSetupName   = "pre-setup"
	FirstStepName  = "first-step"
	SecondStepName = "second-step"
	FinalStepName  = "final-step"
)

// Invocation is the envelope passed to and returned from a stage call.
// State is nil when an upstream producer failed to attach a record.
type Invocation struct {
	ID    string            `json:"id"`
	State *batch.StepRecord `json:"state,omitempty"`
}

// NewInvocation wraps a copy of record for the run id.
func NewInvocation(id string, record batch.StepRecord) Invocation {
	cp := record.Clone()
	return Invocation{ID: id, State: &cp}
}

// ItemFunc is the signature of an item stage.
type ItemFunc func(context.Context, batch.StepRecord) (batch.StepRecord, error)

// FinalFunc is the signature of the aggregating stage.
type FinalFunc func(context.Context, batch.State) (batch.State, error)

// Invoker executes a named item stage. Implementations may be remote.
type Invoker interface {
	Invoke(ctx context.Context, name string, inv Invocation) (Invocation, error)
}

// Chain is an ordered list of stage names run for each item.
type Chain []string

// FirstChain is the per-item chain of the first map stage.
func FirstChain() Chain { return Chain{PreSetupName, FirstStepName} }

// SecondChain is the per-item chain of the second map stage.
func SecondChain() Chain { return Chain{PreSetupName, SecondStepName} }
