package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/metrics"
	"github.com/to-wer/media-renamer/internal/naming"
	"github.com/to-wer/media-renamer/internal/probe"
	"github.com/to-wer/media-renamer/internal/provider"
)

// MetadataResolver defines the resolution step of the pipeline.
type MetadataResolver interface {
	Resolve(ctx context.Context, file library.MediaFile) (library.MediaFile, bool)
}

// Compile-time verification
var _ MetadataResolver = (*provider.Resolver)(nil)

const (
	msgUnresolved = "metadata could not be resolved"
	msgEmptyName  = "template produced an empty name"
)

// Pipeline turns a source path into a rename proposal.
type Pipeline struct {
	parser          *identify.Parser
	resolver        MetadataResolver
	prober          probe.Prober // Optional
	movieTemplate   string
	episodeTemplate string
	metrics         *metrics.Metrics // Optional
	log             *slog.Logger
}

// PipelineOption configures optional dependencies.
type PipelineOption func(*Pipeline)

// WithProber enables container probing for resolution and codec.
func WithProber(p probe.Prober) PipelineOption {
	return func(pl *Pipeline) {
		pl.prober = p
	}
}

// WithTemplates overrides the default path templates. Empty values keep the default.
func WithTemplates(movie, episode string) PipelineOption {
	return func(pl *Pipeline) {
		if movie != "" {
			pl.movieTemplate = movie
		}
		if episode != "" {
			pl.episodeTemplate = episode
		}
	}
}

// WithPipelineMetrics records resolver misses.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(pl *Pipeline) {
		pl.metrics = m
	}
}

// NewPipeline creates a new Pipeline.
func NewPipeline(parser *identify.Parser, resolver MetadataResolver, opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{
		parser:          parser,
		resolver:        resolver,
		movieTemplate:   naming.DefaultMovieTemplate,
		episodeTemplate: naming.DefaultEpisodeTemplate,
		log:             slog.With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Parser returns the filename parser in use.
func (pl *Pipeline) Parser() *identify.Parser {
	return pl.parser
}

// Analyze builds the MediaFile for a path from its name and, when a prober
// is configured, from the container.
func (pl *Pipeline) Analyze(ctx context.Context, path string) (library.MediaFile, identify.ParsedTitle) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parsed := pl.parser.Parse(name)

	file := library.MediaFile{
		OriginalPath: path,
		FileName:     name,
		ParsedTitle:  parsed.NormalizedTitle,
		Type:         parsed.Type,
	}.WithYear(parsed.Year)

	if file.Type == library.MediaTypeEpisode {
		ep := identify.ExtractEpisode(name)
		file = file.WithEpisode(ep.Season, ep.Episode, "")
	}

	q := identify.ExtractQuality(name)
	file = file.WithQuality(q.Resolution, q.Codec)

	if pl.prober != nil {
		info, err := pl.prober.Probe(ctx, path)
		if err != nil {
			pl.log.Debug("Probe failed, using filename quality", "path", path, "error", err)
		} else {
			resolution, codec := file.Resolution, file.Codec
			if info.Resolution != "" {
				resolution = info.Resolution
			}
			if info.Codec != "" {
				codec = info.Codec
			}
			file = file.WithQuality(resolution, codec)
		}
	}

	return file, parsed
}

// Propose analyzes, resolves and renders a proposal for path. The result is
// not persisted. When resolution fails the proposal has status error and an
// empty name.
func (pl *Pipeline) Propose(ctx context.Context, path string) *library.Proposal {
	file, _ := pl.Analyze(ctx, path)

	resolved, ok := pl.resolver.Resolve(ctx, file)
	if !ok {
		pl.metrics.ResolverMiss()
		pl.log.Warn("Metadata could not be resolved", "file", path)
		return errorProposal(file, msgUnresolved)
	}

	if resolved.Title == "" {
		resolved = resolved.WithTitle(provider.FilenameTitle(resolved))
	}

	name := pl.Render(resolved)
	if name == "" {
		return errorProposal(resolved, msgEmptyName)
	}

	return &library.Proposal{
		Source:       resolved,
		ProposedName: name,
		Status:       library.StatusPending,
	}
}

// Render renders the template that applies to the file's type.
func (pl *Pipeline) Render(file library.MediaFile) string {
	return naming.Render(naming.TemplateFor(file.Type, pl.movieTemplate, pl.episodeTemplate), file)
}

func errorProposal(file library.MediaFile, msg string) *library.Proposal {
	return &library.Proposal{
		Source:  file,
		Status:  library.StatusError,
		Message: msg,
	}
}
