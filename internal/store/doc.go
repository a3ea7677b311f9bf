// Package store persists batch runs and the quarantine message queue in
// SQLite.
//
// Every run row carries the JSON checkpoint of its batch.State and the name
// of the next graph node to execute, so a daemon restart can pick a run up
// where it stopped. Suspension writes the awaiting_resume checkpoint and the
// quarantine message in a single transaction; a resume token is consumed at
// most once. Writes retry briefly when SQLite reports the database as busy.
package store
