// Package api defines wire-format types, converters and the HTTP client for
// the daemon API. It translates internal run models into transport-friendly
// DTOs that the CLI and other consumers can render without coupling to
// internal types.
//
// # Key Types
//
// Run: transport representation of a workflow run with its batch state.
//
// QuarantineEntry: a pending quarantine message and the review context
// (gate, collection, error count) needed to resume it.
//
// DaemonStatus: daemon running state, run stats, stage health and lock paths.
//
// # Converters
//
// FromRun: store.Run -> Run. FromEntry: store.QuarantineEntry ->
// QuarantineEntry. FromStatusSummary: workflow.StatusSummary ->
// WorkflowStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (store.Status) are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds. Batch state is
// embedded as batch.State, whose JSON encoding is the quarantine message
// currentState format.
package api
