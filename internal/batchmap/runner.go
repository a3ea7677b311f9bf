package batchmap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"batchflow/internal/batch"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/retry"
	"batchflow/internal/stage"
)

// Runner executes a chain over every record of a collection.
type Runner struct {
	invoker        stage.Invoker
	policy         retry.Policy
	maxConcurrency int
	logger         *slog.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithMaxConcurrency bounds the number of records processed at once. Zero or
// negative means unbounded.
func WithMaxConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		r.maxConcurrency = n
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner constructs a runner.
func NewRunner(invoker stage.Invoker, policy retry.Policy, opts ...RunnerOption) *Runner {
	r := &Runner{invoker: invoker, policy: policy}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = logging.NewComponentLogger(r.logger, "batchmap")
	return r
}

// Run processes every record of collection in state through chain and
// returns state with that collection replaced. Positions are preserved.
// The first fatal error cancels the remaining records and is returned.
func (r *Runner) Run(ctx context.Context, state batch.State, collection batch.Collection, chain stage.Chain) (batch.State, error) {
	if !collection.Valid() {
		return state, faults.Wrap(faults.ErrConfiguration, "batchmap", "run", fmt.Sprintf("unknown collection %q", collection), nil)
	}
	if r.invoker == nil {
		return state, faults.Wrap(faults.ErrConfiguration, "batchmap", "run", "no stage invoker configured", nil)
	}

	ctx = logging.WithCollection(ctx, string(collection))
	steps := collection.Steps(state)
	outputs := make([]batch.StepRecord, len(steps))

	group, groupCtx := errgroup.WithContext(ctx)
	if r.maxConcurrency > 0 {
		group.SetLimit(r.maxConcurrency)
	}
	for i, step := range steps {
		group.Go(func() error {
			itemCtx := logging.WithItemIndex(groupCtx, i)
			out, err := capture(itemCtx, r.invoker, r.policy, chain, stage.NewInvocation(state.ID, step), r.logger)
			if err != nil {
				return err
			}
			record, err := Normalize(out)
			if err != nil {
				return err
			}
			if record.Error != nil {
				logging.WarnWithContext(logging.WithContext(itemCtx, r.logger), "item failed; error captured", "item_captured",
					logging.String("failed_stage", record.Error.Stage),
					logging.String("error_message", record.Error.Cause),
					logging.Int("attempts", record.Error.Attempts),
					logging.String(logging.FieldErrorKind, record.Error.Error),
					logging.String(logging.FieldErrorHint, "the run will be quarantined for review"),
					logging.String(logging.FieldImpact, "item keeps its last successful state"),
				)
			}
			outputs[i] = record
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return state, err
	}

	next, err := collection.WithSteps(state, outputs)
	if err != nil {
		return state, faults.Wrap(faults.ErrConfiguration, "batchmap", "replace collection", "", err)
	}
	scan := Scan(outputs)
	logging.WithContext(ctx, r.logger).Info("map stage completed",
		logging.Int("items", len(outputs)),
		logging.Int("errors", scan.ErrorCount),
		logging.String(logging.FieldEventType, "map_completed"),
	)
	return next, nil
}
