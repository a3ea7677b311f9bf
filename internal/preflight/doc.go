// Package preflight provides readiness checks for the filesystem paths and
// services batchflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs each failing check. The
//     daemon still starts; a failing check is a warning, not a gate.
//   - The CLI "batchflow check" command prints every result.
package preflight
