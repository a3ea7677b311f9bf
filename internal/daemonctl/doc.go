// Package daemonctl launches and stops a background batchflow daemon.
//
// Liveness is judged by the instance lock rather than the API: a daemon that
// holds the lock is running even if its listener is disabled. The pid file
// written by the daemon identifies the process to signal.
package daemonctl
