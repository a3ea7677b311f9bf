package workflow_test

import (
	"strings"
	"testing"

	"batchflow/internal/batch"
	"batchflow/internal/stage"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

func TestPipelineShape(t *testing.T) {
	graph, err := workflow.NewPipeline(nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if graph.Start() != workflow.NodeFirstMap {
		t.Fatalf("start = %q", graph.Start())
	}
	wait, ok := graph.Node(workflow.NodeFirstQuarantine)
	if !ok {
		t.Fatal("first quarantine node missing")
	}
	if wait.Kind() != workflow.KindWait || wait.Next() != workflow.NodeSecondMap {
		t.Fatalf("unexpected wait node: kind=%s next=%s", wait.Kind(), wait.Next())
	}
	second, _ := graph.Node(workflow.NodeSecondQuarantine)
	if second.Next() != workflow.NodeFinalStep || second.Collection() != batch.SecondSteps {
		t.Fatalf("unexpected second wait: next=%s collection=%s", second.Next(), second.Collection())
	}
	for _, name := range []string{workflow.NodeSucceeded, workflow.NodeFailed} {
		node, ok := graph.Node(name)
		if !ok || node.Kind() != workflow.KindTerminal {
			t.Fatalf("expected terminal %s", name)
		}
	}
	if got, _ := graph.Node(workflow.NodeSucceeded); got.Outcome() != store.StatusSucceeded {
		t.Fatalf("succeeded outcome = %s", got.Outcome())
	}
}

func TestBuilderRejectsChoiceWithoutDefault(t *testing.T) {
	b := workflow.NewBuilder()
	choice := b.Choice("pick")
	done := b.Terminal("done", store.StatusSucceeded)
	b.Branch(choice, workflow.HasErrors(batch.FirstSteps), done)

	_, err := b.Build(choice)
	if err == nil || !strings.Contains(err.Error(), "no default route") {
		t.Fatalf("expected default route error, got %v", err)
	}
}

func TestBuilderRejectsDanglingTask(t *testing.T) {
	b := workflow.NewBuilder()
	task := b.Task("final", stage.Final)
	_, err := b.Build(task)
	if err == nil {
		t.Fatal("expected error for task without successor")
	}
}

func TestBuilderRejectsUndeclaredStart(t *testing.T) {
	other := workflow.NewBuilder()
	foreign := other.Terminal("elsewhere", store.StatusFailed)

	b := workflow.NewBuilder()
	b.Terminal("done", store.StatusSucceeded)
	_, err := b.Build(foreign)
	if err == nil || !strings.Contains(err.Error(), "start node") {
		t.Fatalf("expected start node error, got %v", err)
	}
}

func TestBuilderRejectsDuplicateNames(t *testing.T) {
	b := workflow.NewBuilder()
	first := b.Terminal("done", store.StatusSucceeded)
	b.Terminal("done", store.StatusFailed)
	if _, err := b.Build(first); err == nil {
		t.Fatal("expected duplicate node error")
	}
}

func TestVerdictCondition(t *testing.T) {
	cond := workflow.VerdictIs(batch.ResultPass)
	if !cond.Test(batch.State{FinalStepResult: batch.ResultPass}) {
		t.Fatal("PASS should match")
	}
	if cond.Test(batch.State{FinalStepResult: batch.ResultFail}) {
		t.Fatal("FAIL should not match")
	}
	hasErr := workflow.HasErrors(batch.SecondSteps)
	state := batch.State{SecondSteps: []batch.StepRecord{{}, {Error: &batch.ErrorInfo{Error: "injected"}}}}
	if !hasErr.Test(state) {
		t.Fatal("expected errors in second collection")
	}
	if workflow.HasErrors(batch.FirstSteps).Test(state) {
		t.Fatal("first collection has no errors")
	}
}
