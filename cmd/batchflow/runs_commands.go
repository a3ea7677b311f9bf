package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"batchflow/internal/api"
	"batchflow/internal/batch"
	"batchflow/internal/runaccess"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect batch runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				runs, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.RunListResponse{Runs: runs})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Batch", "Status", "Node", "Verdict", "Errors", "Updated"},
					buildRunListRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show a run and its per-item results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				run, err := access.Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, run)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderRunDetail(run, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				removed, err := access.Prune(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s older than %s\n", pluralize(removed, "finished run"), olderThan)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of finished runs to delete")
	return cmd
}

func pluralize(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.FormatInt(n, 10) + " " + noun + "s"
}

func buildRunListRows(runs []api.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.BatchID,
			humanLabel(run.Status),
			run.Node,
			dash(run.Verdict),
			strconv.Itoa(run.ItemErrors),
			dash(run.UpdatedAt),
		})
	}
	return rows
}

func renderRunDetail(run *api.Run, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderField("Batch", run.BatchID) + "\n")
	b.WriteString(renderStatusLine("Status", runStatusKind(run.Status), humanLabel(run.Status), colorize) + "\n")
	b.WriteString(renderField("Node", dash(run.Node)) + "\n")
	b.WriteString(renderField("Verdict", dash(run.Verdict)) + "\n")
	b.WriteString(renderField("Pass final", yesNo(run.State.PassFinal)) + "\n")
	if run.ErrorKind != "" {
		b.WriteString(renderStatusLine("Error", statusError, fmt.Sprintf("%s: %s", run.ErrorKind, run.ErrorMessage), colorize) + "\n")
	}
	if run.ResumeToken != "" {
		b.WriteString(renderField("Resume token", run.ResumeToken) + "\n")
	}
	b.WriteString(renderField("Created", dash(run.CreatedAt)) + "\n")
	if run.CompletedAt != "" {
		b.WriteString(renderField("Completed", run.CompletedAt) + "\n")
	}

	rows := buildStepRows(batch.FirstSteps, run.State.FirstSteps)
	rows = append(rows, buildStepRows(batch.SecondSteps, run.State.SecondSteps)...)
	if len(rows) > 0 {
		b.WriteString("\n")
		b.WriteString(renderTable(
			[]string{"Collection", "#", "Pre-setup", "Stage", "Error"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		))
	}
	return b.String()
}

func buildStepRows(collection batch.Collection, steps []batch.StepRecord) [][]string {
	rows := make([][]string, 0, len(steps))
	for i, step := range steps {
		errText := "-"
		if step.Error != nil {
			errText = fmt.Sprintf("%s in %s after %d attempts", step.Error.Error, step.Error.Stage, step.Error.Attempts)
		}
		rows = append(rows, []string{
			string(collection),
			strconv.Itoa(i),
			dash(string(step.PreSetupResult)),
			dash(string(step.StageResult)),
			errText,
		})
	}
	return rows
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
