package workflow

import (
	"fmt"

	"batchflow/internal/store"
)

// RunError reports a run that ended without a verdict: a fatal stage error
// or an aborted quarantine. A FAIL verdict is not a RunError.
type RunError struct {
	RunID  string
	Status store.Status
	Node   string
	Err    error
}

func (e *RunError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("run %s %s at %s: %v", e.RunID, e.Status, e.Node, e.Err)
}

func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
