package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one reconciliation cycle over the watch folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				result, err := a.newWatcher().Reconcile(cmd.Context())
				if err != nil {
					return err
				}

				headers := []string{"Files", "Created", "Skipped", "Stale removed", "Errors"}
				rows := [][]string{{
					strconv.Itoa(result.Files),
					strconv.Itoa(result.Created),
					strconv.Itoa(result.Skipped),
					strconv.Itoa(result.StaleRemoved),
					strconv.Itoa(result.Errors),
				}}
				aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}
