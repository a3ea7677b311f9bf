// Package daemon coordinates the long-running batchflow process.
//
// It wires configuration, run storage, the workflow manager and the HTTP API
// into a single lifecycle with flock-based locking to prevent multiple
// instances. On start the daemon recovers runs left running by a previous
// process; on stop it cancels in-flight runs, which stay checkpointed for the
// next start.
//
// Keep orchestration logic here: pipeline semantics live in workflow while
// the daemon focuses on startup, shutdown and the API surface.
package daemon
