// Package logs reads the daemon log file for `batchflow logs`.
//
// Reads are offset based with bounded memory: Last returns the final lines
// and the end offset, ReadFrom continues from an offset, and Follow polls
// until its context ends. A file that shrinks below the saved offset is
// treated as replaced and is read again from the start.
package logs
