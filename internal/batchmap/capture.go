package batchmap

import (
	"context"
	"errors"
	"log/slog"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/retry"
	"batchflow/internal/stage"
)

// Output is the outcome of one record's chain. Error is set when the chain
// was cut short; State then holds the last state reached.
type Output struct {
	State *batch.StepRecord `json:"state,omitempty"`
	Error *batch.ErrorInfo  `json:"error,omitempty"`
}

// Capture runs chain for a single invocation. Failures that exhaust the
// policy are folded into Output.Error. Context cancellation and validation
// or configuration faults are returned as errors because they are fatal to
// the whole run.
func Capture(ctx context.Context, invoker stage.Invoker, policy retry.Policy, chain stage.Chain, inv stage.Invocation) (Output, error) {
	return capture(ctx, invoker, policy, chain, inv, nil)
}

func capture(ctx context.Context, invoker stage.Invoker, policy retry.Policy, chain stage.Chain, inv stage.Invocation, logger *slog.Logger) (Output, error) {
	current := inv
	for _, name := range chain {
		stageCtx := logging.WithStage(ctx, name)
		itemPolicy := policy
		if logger != nil {
			log := logging.WithContext(stageCtx, logger)
			itemPolicy = policy.With(retry.WithObserver(func(a retry.Attempt) {
				log.Info("stage attempt failed; retrying",
					logging.Int("attempt", a.Number),
					logging.Duration("delay", a.Delay),
					logging.Error(a.Err),
					logging.String(logging.FieldEventType, "stage_retry"),
				)
			}))
		}

		var next stage.Invocation
		attempts, err := itemPolicy.Run(stageCtx, func(ctx context.Context) error {
			out, err := invoker.Invoke(ctx, name, current)
			if err != nil {
				return err
			}
			next = out
			return nil
		})
		if err != nil {
			if fatal(ctx, err) {
				return Output{}, err
			}
			return Output{
				State: current.State,
				Error: &batch.ErrorInfo{
					Stage:    name,
					Error:    faults.Kind(err),
					Cause:    err.Error(),
					Attempts: attempts,
				},
			}, nil
		}
		current = next
	}
	return Output{State: current.State}, nil
}

func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !faults.Retryable(err)
}
