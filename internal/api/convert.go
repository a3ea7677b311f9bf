package api

import (
	"sort"
	"time"

	"batchflow/internal/batch"
	"batchflow/internal/stage"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

// FromRun converts a run record to its API representation.
func FromRun(run *store.Run) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:           run.ID,
		BatchID:      run.BatchID,
		Status:       string(run.Status),
		Node:         run.Node,
		Verdict:      string(run.State.FinalStepResult),
		ResumeToken:  run.ResumeToken,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.ErrorMessage,
		ItemErrors:   countItemErrors(run.State),
		CreatedAt:    formatTime(run.CreatedAt),
		UpdatedAt:    formatTime(run.UpdatedAt),
		State:        run.State,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	return dto
}

// FromRuns converts a slice of run records into API DTOs.
func FromRuns(runs []*store.Run) []Run {
	if len(runs) == 0 {
		return nil
	}
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromEntry converts a quarantine queue row.
func FromEntry(entry store.QuarantineEntry) QuarantineEntry {
	dto := QuarantineEntry{
		ResumeToken: entry.Token,
		ExecutionID: entry.RunID,
		Gate:        entry.Node,
		Collection:  entry.Collection,
		ErrorCount:  entry.ErrorCount,
		CreatedAt:   formatTime(entry.CreatedAt),
		Resolution:  entry.Resolution,
	}
	if entry.ResolvedAt != nil {
		dto.ResolvedAt = formatTime(*entry.ResolvedAt)
	}
	return dto
}

// FromEntries converts quarantine queue rows.
func FromEntries(entries []store.QuarantineEntry) []QuarantineEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]QuarantineEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		ActiveRuns:      append([]string(nil), summary.ActiveRuns...),
		RunStats:        MergeRunStats(summary.RunStats),
		PendingMessages: summary.PendingMessages,
		LastError:       summary.LastError,
		StageHealth:     StageHealthSlice(summary.StageHealth),
	}
}

// MergeRunStats produces a string-keyed representation of run stats with
// every known status present.
func MergeRunStats(stats map[store.Status]int) map[string]int {
	out := make(map[string]int, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts stage health into a deterministic slice.
func StageHealthSlice(health []stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func countItemErrors(state batch.State) int {
	count := 0
	for _, steps := range [][]batch.StepRecord{state.FirstSteps, state.SecondSteps} {
		for _, step := range steps {
			if step.HasError() {
				count++
			}
		}
	}
	return count
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
