// Package stage holds the business logic for the named stages of a batch
// run and the registry the workflow uses to invoke them.
//
// Item stages (pre-setup, first-step, second-step) transform one StepRecord.
// The final stage aggregates a whole batch.State into a verdict. The
// first-step, second-step and final-step stages carry a kill switch: when the
// record's pass flag is false the stage fails with a fault marker instead of
// returning its provisional result. Item faults are tagged
// faults.ErrInjected so the retry policy attempts them again; the final
// stage's fault is tagged faults.ErrAuthorization and ends the run.
package stage
