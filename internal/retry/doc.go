// Package retry runs an operation with a bounded number of attempts and
// exponential backoff between them.
//
// The delay before attempt k+1 is InitialDelay * Multiplier^(k-1), so the
// default policy (3 attempts, 2s, x2) waits 2s and then 4s. Waits honour the
// caller's context and suspend only the calling goroutine. Failures tagged
// faults.ErrValidation or faults.ErrConfiguration are returned immediately.
// After the final attempt the last error is returned unmodified so callers
// can classify it with errors.Is.
package retry
