// Package logging builds the slog loggers used by the daemon, the CLI, and the
// workflow engine.
//
// Console output puts the run id, stage, and item index in a fixed header so a
// single run can be followed through a busy log; JSON output carries the same
// fields as plain attributes. Context helpers attach those fields once per
// call chain. NewNop serves tests and wiring that must not fail.
package logging
