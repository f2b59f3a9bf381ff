package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/to-wer/media-renamer/internal/library"
)

func newProposalsCommand(ctx *commandContext) *cobra.Command {
	proposalsCmd := &cobra.Command{
		Use:     "proposals",
		Aliases: []string{"p"},
		Short:   "Inspect and decide rename proposals",
	}

	proposalsCmd.AddCommand(newProposalsListCommand(ctx))
	proposalsCmd.AddCommand(newProposalsApproveCommand(ctx))
	proposalsCmd.AddCommand(newProposalsRejectCommand(ctx))
	proposalsCmd.AddCommand(newProposalsRenameCommand(ctx))
	proposalsCmd.AddCommand(newProposalsDeleteCommand(ctx))
	proposalsCmd.AddCommand(newProposalsStatsCommand(ctx))

	return proposalsCmd
}

func newProposalsListCommand(ctx *commandContext) *cobra.Command {
	var (
		status string
		sortBy string
		desc   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter library.Status
			if status != "" {
				filter = library.Status(status)
				if !filter.Valid() {
					return fmt.Errorf("%w: %q", library.ErrInvalidStatus, status)
				}
			}

			return ctx.withApp(func(a *app) error {
				proposals, err := a.proposals.List(cmd.Context(), library.ParseSortKey(sortBy), desc)
				if err != nil {
					return err
				}
				proposals = filterByStatus(proposals, filter)

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(proposals)
				}
				if len(proposals) == 0 {
					fmt.Fprintln(out, "No proposals")
					return nil
				}
				fmt.Fprintln(out, renderProposals(proposals))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Only show proposals in this status")
	cmd.Flags().StringVar(&sortBy, "sort", "scan_time", "Sort by scan_time, source_path or status")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newProposalsApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>...",
		Short: "Approve and execute pending proposals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				var failed []error
				for _, id := range args {
					p, err := a.proposals.Approve(cmd.Context(), id)
					if p != nil {
						printOutcome(cmd, p)
					}
					if err != nil {
						failed = append(failed, err)
					}
				}
				return errors.Join(failed...)
			})
		},
	}
}

func newProposalsRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>...",
		Short: "Reject pending proposals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				var failed []error
				for _, id := range args {
					p, err := a.proposals.Reject(cmd.Context(), id)
					if err != nil {
						failed = append(failed, fmt.Errorf("%s: %w", id, err))
						continue
					}
					printOutcome(cmd, p)
				}
				return errors.Join(failed...)
			})
		},
	}
}

func newProposalsRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Replace the proposed name of a pending proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				p, err := a.proposals.Rename(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printOutcome(cmd, p)
				return nil
			})
		},
	}
}

func newProposalsDeleteCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [id]...",
		Short: "Delete proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass proposal ids or --all")
			}

			return ctx.withApp(func(a *app) error {
				var (
					n   int64
					err error
				)
				if all {
					n, err = a.proposals.Clear(cmd.Context())
				} else {
					n, err = a.proposals.DeleteMany(cmd.Context(), args)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d proposal(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every proposal")
	return cmd
}

func newProposalsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show proposal counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				stats, err := a.proposals.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
				return nil
			})
		},
	}
}

func filterByStatus(proposals []*library.Proposal, status library.Status) []*library.Proposal {
	if status == "" {
		return proposals
	}
	filtered := proposals[:0:0]
	for _, p := range proposals {
		if p.Status == status {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func renderProposals(proposals []*library.Proposal) string {
	headers := []string{"ID", "Status", "Source", "Proposed name", "Scanned"}
	rows := make([][]string, 0, len(proposals))
	for _, p := range proposals {
		name := p.ProposedName
		if p.Status == library.StatusError && p.Message != "" {
			name = p.Message
		}
		rows = append(rows, []string{
			p.ID,
			string(p.Status),
			p.Source.OriginalPath,
			name,
			p.ScanTime.Local().Format(time.DateTime),
		})
	}
	return renderTable(headers, rows, nil)
}

func renderStats(stats library.Stats) string {
	headers := []string{"Status", "Count"}
	rows := make([][]string, 0, len(library.AllStatuses)+1)
	for _, status := range library.AllStatuses {
		rows = append(rows, []string{string(status), strconv.Itoa(stats.Count(status))})
	}
	rows = append(rows, []string{"total", strconv.Itoa(stats.Total)})
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight})
}

func printOutcome(cmd *cobra.Command, p *library.Proposal) {
	line := fmt.Sprintf("%s  %s", p.ID, p.Status)
	switch {
	case p.TargetPath != "":
		line += "  -> " + p.TargetPath
	case p.Message != "":
		line += "  " + p.Message
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}
