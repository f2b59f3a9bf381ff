package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/naming"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "render <file>...",
		Short: "Preview proposed names without storing proposals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				pipeline := a.proposals.Pipeline()

				headers := []string{"File", "Proposed name"}
				rows := make([][]string, 0, len(args))
				for _, path := range args {
					p := pipeline.Propose(cmd.Context(), path)

					name := p.ProposedName + p.Source.Extension()
					switch {
					case p.Status == library.StatusError:
						name = "error: " + p.Message
					case template != "":
						name = naming.Render(template, p.Source) + p.Source.Extension()
					}
					rows = append(rows, []string{filepath.Base(path), name})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "", "Template to render instead of the configured one")
	return cmd
}
