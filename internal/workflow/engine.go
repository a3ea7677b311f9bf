package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"batchflow/internal/batch"
	"batchflow/internal/batchmap"
	"batchflow/internal/faults"
	"batchflow/internal/logging"
	"batchflow/internal/quarantine"
	"batchflow/internal/store"
)

// Checkpointer persists run progress.
type Checkpointer interface {
	SaveRun(ctx context.Context, run *store.Run) error
	Suspend(ctx context.Context, run *store.Run, entry store.QuarantineEntry) error
}

// storePublisher queues quarantine messages through the run store. The run
// row is rewritten with the resume node so a resumed run continues after the
// gate.
type storePublisher struct {
	store Checkpointer
}

func (p storePublisher) Publish(ctx context.Context, esc quarantine.Escalation) error {
	payload, err := esc.Message.Encode()
	if err != nil {
		return err
	}
	run := &store.Run{ID: esc.ExecutionID, Node: esc.Resume, State: esc.State}
	return p.store.Suspend(ctx, run, store.QuarantineEntry{
		Token:      esc.Message.ResumeToken,
		Node:       esc.Node,
		Collection: string(esc.Collection),
		ErrorCount: esc.Scan.ErrorCount,
		Payload:    payload,
	})
}

// Engine executes runs over a Graph.
type Engine struct {
	graph  *Graph
	store  Checkpointer
	runner *batchmap.Runner
	gate   *quarantine.Gate
	logger *slog.Logger
}

// NewEngine wires an engine. gateOpts configure the quarantine gate; its
// publisher is always the checkpointer.
func NewEngine(graph *Graph, cp Checkpointer, runner *batchmap.Runner, logger *slog.Logger, gateOpts ...quarantine.Option) *Engine {
	logger = logging.NewComponentLogger(logger, "workflow")
	opts := append([]quarantine.Option{quarantine.WithLogger(logger)}, gateOpts...)
	return &Engine{
		graph:  graph,
		store:  cp,
		runner: runner,
		gate:   quarantine.NewGate(storePublisher{store: cp}, opts...),
		logger: logger,
	}
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *Graph { return e.graph }

type stepResult struct {
	state     batch.State
	next      string
	suspended bool
	token     string
	outcome   store.Status
}

// Run executes run from run.Node (or the graph start) until it suspends or
// reaches a terminal node, checkpointing after every node. A fatal error
// marks the run errored and is returned as *RunError. When ctx ends the run
// is left running at its last checkpoint and ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context, run *store.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	ctx = logging.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, e.logger)

	if run.Node == "" {
		run.Node = e.graph.Start()
	}
	if run.Status != store.StatusRunning {
		run.Status = store.StatusRunning
		if err := e.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("checkpoint run start: %w", err)
		}
	}

	for {
		node, ok := e.graph.Node(run.Node)
		if !ok {
			return e.fail(ctx, run, faults.Wrap(faults.ErrConfiguration, run.Node, "lookup", "node not in graph", nil))
		}
		nodeCtx := logging.WithStage(ctx, node.Name())
		nodeLogger := logging.WithContext(nodeCtx, e.logger)
		nodeLogger.Debug("node started",
			logging.String("node_kind", string(node.Kind())),
			logging.String(logging.FieldEventType, "stage_start"),
		)
		started := time.Now()

		res, err := e.step(nodeCtx, run, node)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("run interrupted; left at last checkpoint",
					logging.String(logging.FieldStage, node.Name()),
					logging.String(logging.FieldEventType, "run_interrupted"),
				)
				return ctx.Err()
			}
			return e.fail(nodeCtx, run, err)
		}

		switch {
		case res.suspended:
			run.Status = store.StatusAwaitingResume
			run.Node = res.next
			run.ResumeToken = res.token
			nodeLogger.Info("run suspended",
				logging.String("resume_node", res.next),
				logging.String(logging.FieldEventType, "run_suspended"),
			)
			return nil
		case res.outcome != "":
			run.Status = res.outcome
			run.ErrorKind = ""
			run.ErrorMessage = ""
			if err := e.store.SaveRun(ctx, run); err != nil {
				return fmt.Errorf("checkpoint terminal %s: %w", node.Name(), err)
			}
			logger.Info("run completed",
				logging.String("status", string(run.Status)),
				logging.String("verdict", string(run.State.FinalStepResult)),
				logging.String(logging.FieldEventType, "run_completed"),
			)
			return nil
		}

		run.State = res.state
		run.Node = res.next
		if err := e.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("checkpoint after %s: %w", node.Name(), err)
		}
		nodeLogger.Debug("node completed",
			logging.String("next", res.next),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "stage_completed"),
		)
	}
}

func (e *Engine) step(ctx context.Context, run *store.Run, node *Node) (stepResult, error) {
	switch node.Kind() {
	case KindTask:
		state, err := node.task(ctx, run.State)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{state: state, next: node.next}, nil

	case KindParallelMap:
		if e.runner == nil {
			return stepResult{}, faults.Wrap(faults.ErrConfiguration, node.name, "map", "no batch runner configured", nil)
		}
		state, err := e.runner.Run(ctx, run.State, node.collection, node.chain)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{state: state, next: node.next}, nil

	case KindChoice:
		next, label := node.choose(run.State)
		if next == "" {
			return stepResult{}, faults.Wrap(faults.ErrConfiguration, node.name, "choose", "no route matched", nil)
		}
		logging.WithContext(ctx, e.logger).Debug("choice routed",
			logging.String("route", label),
			logging.String("next", next),
		)
		return stepResult{state: run.State, next: next}, nil

	case KindWait:
		decision, err := e.gate.Evaluate(ctx, quarantine.Checkpoint{
			ExecutionID: run.ID,
			Node:        node.name,
			Resume:      node.next,
			Collection:  node.collection,
			State:       run.State,
		})
		if err != nil {
			return stepResult{}, err
		}
		if decision.Outcome == quarantine.Escalate {
			return stepResult{state: run.State, next: node.next, suspended: true, token: decision.Message.ResumeToken}, nil
		}
		return stepResult{state: run.State, next: node.next}, nil

	case KindTerminal:
		return stepResult{state: run.State, outcome: node.outcome}, nil
	}
	return stepResult{}, faults.Wrap(faults.ErrConfiguration, node.name, "execute", fmt.Sprintf("unknown node kind %q", node.kind), nil)
}

func (e *Engine) fail(ctx context.Context, run *store.Run, cause error) error {
	node := run.Node
	run.Status = store.StatusErrored
	run.ErrorKind = faults.Kind(cause)
	run.ErrorMessage = cause.Error()
	logging.ErrorWithContext(logging.WithContext(ctx, e.logger), "run failed with fatal error", "run_errored",
		logging.Error(cause),
		logging.String(logging.FieldErrorKind, run.ErrorKind),
		logging.String(logging.FieldErrorHint, hintFor(cause)),
		logging.Alert("run_errored"),
	)
	if err := e.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return errors.Join(&RunError{RunID: run.ID, Status: run.Status, Node: node, Err: cause}, fmt.Errorf("checkpoint errored run: %w", err))
	}
	return &RunError{RunID: run.ID, Status: run.Status, Node: node, Err: cause}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, faults.ErrAuthorization):
		return "the final step was not authorized; set passFinal and submit a new run"
	case errors.Is(err, faults.ErrValidation):
		return "a stage returned a record without state; check the stage implementation"
	case errors.Is(err, faults.ErrConfiguration):
		return "check the stage registry and pipeline definition"
	default:
		return "check logs for details"
	}
}
