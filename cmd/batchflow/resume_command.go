package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"batchflow/internal/quarantine"
	"batchflow/internal/runaccess"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var abort bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resume <token>",
		Short: "Resume a quarantined run, or abort it with --abort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := quarantine.ActionContinue
			if abort {
				action = quarantine.ActionAbort
			}
			token := strings.TrimSpace(args[0])
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				run, err := access.Resume(cmd.Context(), token, string(action))
				if errors.Is(err, quarantine.ErrUnknownToken) {
					return fmt.Errorf("resume token %s is unknown or was already used", token)
				}
				if run == nil {
					return err
				}
				if abort {
					if jsonOutput {
						return writeJSON(cmd, run)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Run %s aborted\n", run.ID)
					return nil
				}
				if access.Mode() == runaccess.ModeDaemon && !jsonOutput {
					fmt.Fprintf(cmd.OutOrStdout(), "Run %s resumed at %s\n", run.ID, run.Node)
					return nil
				}
				if perr := printRunOutcome(cmd, run, jsonOutput); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "End the run instead of continuing it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
