package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"batchflow/internal/api"
	"batchflow/internal/runaccess"
)

const runPollInterval = 500 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run [input.json|-]",
		Short: "Execute a batch run and wait until it completes or suspends",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readRunInput(firstArg(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				run, runErr := access.Submit(cmd.Context(), input)
				if run == nil {
					return runErr
				}
				if access.Mode() == runaccess.ModeDaemon {
					run, runErr = waitForSettled(cmd.Context(), access, run.ID)
					if run == nil {
						return runErr
					}
				}
				if err := printRunOutcome(cmd, run, jsonOutput); err != nil {
					return err
				}
				return runErr
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run as JSON")
	return cmd
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit [input.json|-]",
		Short: "Start a batch run without waiting for it",
		Long: "Start a batch run without waiting for it. Without a running daemon the run " +
			"executes in this process until it completes or suspends.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readRunInput(firstArg(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				run, runErr := access.Submit(cmd.Context(), input)
				if run == nil {
					return runErr
				}
				if jsonOutput {
					if err := writeJSON(cmd, run); err != nil {
						return err
					}
					return runErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted run %s (batch %s): %s\n", run.ID, run.BatchID, humanLabel(run.Status))
				return runErr
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run as JSON")
	return cmd
}

// waitForSettled polls the daemon until the run leaves pending/running.
func waitForSettled(ctx context.Context, access runaccess.Access, id string) (*api.Run, error) {
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()
	for {
		run, err := access.Describe(ctx, id)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("run %s not found", id)
		}
		if run.Status != "pending" && run.Status != "running" {
			return run, runOutcomeError(run)
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

func runOutcomeError(run *api.Run) error {
	switch run.Status {
	case "errored", "aborted":
		return fmt.Errorf("run %s %s: %s", run.ID, run.Status, run.ErrorMessage)
	default:
		return nil
	}
}

func printRunOutcome(cmd *cobra.Command, run *api.Run, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, run)
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderRunDetail(run, shouldColorize(out)))
	if run.Status == "awaiting_resume" {
		fmt.Fprintf(out, "\nResume with: batchflow resume %s [--abort]\n", run.ResumeToken)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
