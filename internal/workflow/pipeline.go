package workflow

import (
	"batchflow/internal/batch"
	"batchflow/internal/stage"
	"batchflow/internal/store"
)

// Node names of the standard pipeline.
const (
	NodeFirstMap         = "first-map"
	NodeFirstErrors      = "first-errors"
	NodeFirstQuarantine  = "first-quarantine"
	NodeSecondMap        = "second-map"
	NodeSecondErrors     = "second-errors"
	NodeSecondQuarantine = "second-quarantine"
	NodeFinalStep        = "final-step"
	NodeVerdict          = "verdict"
	NodeSucceeded        = "succeeded"
	NodeFailed           = "failed"
)

// NewPipeline builds the standard batch graph. final defaults to
// stage.Final.
func NewPipeline(final stage.FinalFunc) (*Graph, error) {
	if final == nil {
		final = stage.Final
	}
	b := NewBuilder()

	firstMap := b.ParallelMap(NodeFirstMap, batch.FirstSteps, stage.FirstChain())
	firstErrors := b.Choice(NodeFirstErrors)
	firstWait := b.Wait(NodeFirstQuarantine, batch.FirstSteps)
	secondMap := b.ParallelMap(NodeSecondMap, batch.SecondSteps, stage.SecondChain())
	secondErrors := b.Choice(NodeSecondErrors)
	secondWait := b.Wait(NodeSecondQuarantine, batch.SecondSteps)
	finalStep := b.Task(NodeFinalStep, final)
	verdict := b.Choice(NodeVerdict)
	succeeded := b.Terminal(NodeSucceeded, store.StatusSucceeded)
	failed := b.Terminal(NodeFailed, store.StatusFailed)

	b.Then(firstMap, firstErrors)
	b.Branch(firstErrors, HasErrors(batch.FirstSteps), firstWait)
	b.Otherwise(firstErrors, secondMap)
	b.Then(firstWait, secondMap)

	b.Then(secondMap, secondErrors)
	b.Branch(secondErrors, HasErrors(batch.SecondSteps), secondWait)
	b.Otherwise(secondErrors, finalStep)
	b.Then(secondWait, finalStep)

	b.Then(finalStep, verdict)
	b.Branch(verdict, VerdictIs(batch.ResultPass), succeeded)
	b.Otherwise(verdict, failed)

	return b.Build(firstMap)
}
