// Package batchmap fans a stage chain out over every record of a batch
// collection.
//
// Each record runs its chain independently through the retry policy. A
// record whose chain exhausts its retries keeps the last state it reached
// and gains an ErrorInfo; siblings are unaffected. The normalizer flattens
// each outcome back to a StepRecord and rejects outcomes without a state.
// Scan reports which records of a processed collection carry errors.
package batchmap
