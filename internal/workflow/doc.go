// Package workflow drives batch runs through a typed stage graph.
//
// A Builder assembles an immutable Graph from five node kinds: Task,
// ParallelMap, Choice, Wait and Terminal. Edges are explicit: Then links a
// node to its successor (for a Wait node this is the resume edge), Branch and
// Otherwise give a Choice its guarded routes. NewPipeline builds the standard
// two-map pipeline with a quarantine gate after each map and a verdict
// choice after the final step.
//
// The Engine executes a run from its current node and checkpoints the run in
// the store after every node, so an interrupted run continues from the last
// completed node. A Wait node that escalates suspends the run in the store
// until Manager.Resume supplies the token.
//
// The Manager owns run creation, synchronous and background execution,
// resume, crash recovery at startup and completion notifications.
package workflow
