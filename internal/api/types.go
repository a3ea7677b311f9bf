package api

import "batchflow/internal/batch"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a workflow run in a transport-friendly format.
type Run struct {
	ID           string      `json:"id"`
	BatchID      string      `json:"batchId"`
	Status       string      `json:"status"`
	Node         string      `json:"node"`
	Verdict      string      `json:"verdict,omitempty"`
	ResumeToken  string      `json:"resumeToken,omitempty"`
	ErrorKind    string      `json:"errorKind,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	ItemErrors   int         `json:"itemErrors"`
	CreatedAt    string      `json:"createdAt,omitempty"`
	UpdatedAt    string      `json:"updatedAt,omitempty"`
	CompletedAt  string      `json:"completedAt,omitempty"`
	State        batch.State `json:"state"`
}

// QuarantineEntry describes a quarantine message awaiting resume.
type QuarantineEntry struct {
	ResumeToken string `json:"resumeToken"`
	ExecutionID string `json:"executionId"`
	Gate        string `json:"gate"`
	Collection  string `json:"collection"`
	ErrorCount  int    `json:"errorCount"`
	CreatedAt   string `json:"createdAt,omitempty"`
	ResolvedAt  string `json:"resolvedAt,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	ActiveRuns      []string       `json:"activeRuns"`
	RunStats        map[string]int `json:"runStats"`
	PendingMessages int            `json:"pendingMessages"`
	LastError       string         `json:"lastError,omitempty"`
	StageHealth     []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	LogPath      string         `json:"logPath,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a single run.
type RunResponse struct {
	Run Run `json:"run"`
}

// QuarantineListResponse wraps pending quarantine entries.
type QuarantineListResponse struct {
	Entries []QuarantineEntry `json:"entries"`
}

// ResumeRequest resolves a quarantine message. Action is "continue" (the
// default when blank) or "abort".
type ResumeRequest struct {
	Token  string `json:"token"`
	Action string `json:"action,omitempty"`
}

// PruneRequest asks the daemon to delete old terminal runs. OlderThan is a
// Go duration string such as "720h".
type PruneRequest struct {
	OlderThan string `json:"olderThan"`
}

// PruneResponse reports how many runs were deleted.
type PruneResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
