package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"batchflow/internal/api"
	"batchflow/internal/runaccess"
)

func newQuarantineCommand(ctx *commandContext) *cobra.Command {
	quarantineCmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect runs waiting for review",
	}
	quarantineCmd.AddCommand(newQuarantineListCommand(ctx))
	return quarantineCmd
}

func newQuarantineListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantine messages awaiting resume",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(access runaccess.Access) error {
				entries, err := access.Quarantine(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.QuarantineListResponse{Entries: entries})
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs awaiting resume")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.ResumeToken,
						entry.ExecutionID,
						entry.Gate,
						entry.Collection,
						strconv.Itoa(entry.ErrorCount),
						dash(entry.CreatedAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Token", "Run", "Gate", "Collection", "Errors", "Queued"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
