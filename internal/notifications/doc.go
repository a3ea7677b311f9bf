// Package notifications delivers operator alerts through ntfy.
//
// The quarantine gate uses it to tell a reviewer that a run is suspended and
// which resume token unblocks it. The workflow manager reports finished runs
// and fatal errors. When no topic is configured every call is a no-op.
package notifications
