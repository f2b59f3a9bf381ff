package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
)

type parseResult struct {
	identify.ParsedTitle
	Episode *identify.EpisodeInfo `json:"episode,omitempty"`
	Quality identify.QualityInfo  `json:"quality"`
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <filename>...",
		Short: "Show how file names are classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parser, err := identify.NewParser(cfg.ParserConfiguration())
			if err != nil {
				return err
			}

			results := make([]parseResult, 0, len(args))
			for _, name := range args {
				results = append(results, parseName(parser, name))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			headers := []string{"File", "Type", "Title", "Year", "S", "E", "Quality", "Confidence"}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				var season, episode *int
				if r.Episode != nil {
					season, episode = r.Episode.Season, r.Episode.Episode
				}
				rows = append(rows, []string{
					r.RawFilename,
					string(r.Type),
					r.NormalizedTitle,
					optionalInt(r.Year),
					optionalInt(season),
					optionalInt(episode),
					strings.TrimSpace(r.Quality.Resolution + " " + r.Quality.Codec),
					strconv.FormatFloat(r.Confidence, 'f', 2, 64),
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func parseName(parser *identify.Parser, name string) parseResult {
	r := parseResult{
		ParsedTitle: parser.Parse(name),
		Quality:     identify.ExtractQuality(name),
	}
	if r.Type == library.MediaTypeEpisode {
		ep := identify.ExtractEpisode(name)
		r.Episode = &ep
	}
	return r
}
