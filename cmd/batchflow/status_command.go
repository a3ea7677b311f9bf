package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"batchflow/internal/api"
	"batchflow/internal/runaccess"
)

var statusOrder = []string{"pending", "running", "awaiting_resume", "succeeded", "failed", "errored", "aborted"}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and run store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				status, err := access.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderDaemonStatus(status, access.Mode(), shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderDaemonStatus(status *api.DaemonStatus, mode runaccess.Mode, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("System", colorize) {
		b.WriteString(line + "\n")
	}
	if status.Running {
		b.WriteString(renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Daemon", statusInfo, "Not running, store opened locally", colorize) + "\n")
	}
	b.WriteString(renderField("Access", string(mode)) + "\n")
	b.WriteString(renderField("Database", status.DatabasePath) + "\n")
	b.WriteString(renderField("Lock file", status.LockFilePath) + "\n")
	if status.LogPath != "" {
		b.WriteString(renderField("Log", status.LogPath) + "\n")
	}

	wf := status.Workflow
	b.WriteString("\n")
	for _, line := range renderSectionHeader("Workflow", colorize) {
		b.WriteString(line + "\n")
	}
	active := "none"
	if len(wf.ActiveRuns) > 0 {
		active = strings.Join(wf.ActiveRuns, ", ")
	}
	b.WriteString(renderField("Active runs", active) + "\n")
	pendingKind := statusOK
	if wf.PendingMessages > 0 {
		pendingKind = statusWarn
	}
	b.WriteString(renderStatusLine("Awaiting resume", pendingKind, strconv.Itoa(wf.PendingMessages), colorize) + "\n")
	if wf.LastError != "" {
		b.WriteString(renderStatusLine("Last error", statusError, wf.LastError, colorize) + "\n")
	}
	for _, stage := range wf.StageHealth {
		kind := statusOK
		detail := "Ready"
		if !stage.Ready {
			kind = statusError
			detail = "Not ready"
		}
		if stage.Detail != "" {
			detail += " (" + stage.Detail + ")"
		}
		b.WriteString(renderStatusLine(stage.Name, kind, detail, colorize) + "\n")
	}

	rows := make([][]string, 0, len(statusOrder))
	for _, name := range statusOrder {
		rows = append(rows, []string{humanLabel(name), strconv.Itoa(wf.RunStats[name])})
	}
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"Status", "Runs"}, rows, []columnAlignment{alignLeft, alignRight}))
	return b.String()
}
