// Command batchflow submits, inspects and resumes batch runs, and hosts the
// daemon that executes them.
//
// Commands that touch runs use the daemon API when a daemon holds the
// instance lock and otherwise execute in-process against the same run store.
package main
