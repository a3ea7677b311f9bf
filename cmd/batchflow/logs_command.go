package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"batchflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the current daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.CurrentLogPath()
			out := cmd.OutOrStdout()
			if follow {
				return logs.Follow(cmd.Context(), path, logs.FollowOptions{Lines: lines}, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			tail, _, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			if len(tail) == 0 {
				fmt.Fprintf(out, "No log output at %s\n", path)
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
