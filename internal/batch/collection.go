package batch

import "fmt"

// Collection names a step collection field of State.
type Collection string

const (
	FirstSteps  Collection = "firstSteps"
	SecondSteps Collection = "secondSteps"
)

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	switch c {
	case FirstSteps, SecondSteps:
		return true
	default:
		return false
	}
}

// Steps returns a copy of the collection's records.
func (c Collection) Steps(state State) []StepRecord {
	switch c {
	case FirstSteps:
		return cloneSteps(state.FirstSteps)
	case SecondSteps:
		return cloneSteps(state.SecondSteps)
	default:
		return nil
	}
}

// WithSteps returns a copy of state with the collection replaced by steps.
func (c Collection) WithSteps(state State, steps []StepRecord) (State, error) {
	next := state.Clone()
	switch c {
	case FirstSteps:
		next.FirstSteps = cloneSteps(steps)
	case SecondSteps:
		next.SecondSteps = cloneSteps(steps)
	default:
		return state, fmt.Errorf("unknown collection %q", string(c))
	}
	return next, nil
}
