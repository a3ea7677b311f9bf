package store

import (
	"strings"
	"time"

	"batchflow/internal/batch"
)

// Status represents the lifecycle of a run.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusAwaitingResume Status = "awaiting_resume"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	StatusErrored        Status = "errored"
	StatusAborted        Status = "aborted"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusAwaitingResume,
	StatusSucceeded,
	StatusFailed,
	StatusErrored,
	StatusAborted,
}

var terminalStatuses = map[Status]struct{}{
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusErrored:   {},
	StatusAborted:   {},
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied value to a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further node will execute for the status.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Run is one execution of the batch pipeline.
type Run struct {
	ID           string
	BatchID      string
	Status       Status
	Node         string
	State        batch.State
	ResumeToken  string
	ErrorKind    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// QuarantineEntry is a persisted quarantine message and its resolution.
type QuarantineEntry struct {
	Token      string
	RunID      string
	Node       string
	Collection string
	ErrorCount int
	Payload    string
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Resolution string
}

// Pending reports whether the entry still awaits a resume.
func (q QuarantineEntry) Pending() bool {
	return q.ResolvedAt == nil
}

// DatabaseHealth captures diagnostic information about the run database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalRuns        int
	PendingMessages  int
	Error            string
}
