// Package faults defines the error markers shared by stage functions, the
// batch map runner, the quarantine gate, and the workflow engine.
//
// Key responsibilities:
//   - Sentinel markers that separate validation failures (fatal, never
//     retried) from injected kill-switch failures (retried, then captured per
//     item) and final authorization failures (fatal for the whole run).
//   - The Wrap helper that attaches stage and operation context while keeping
//     errors.Is working on both the marker and the underlying cause.
//   - Kind and Retryable classifiers used when persisting run status and when
//     deciding whether a retry policy should try again.
//
// Use these helpers when adding new stages so failure handling stays uniform
// across the pipeline.
package faults
