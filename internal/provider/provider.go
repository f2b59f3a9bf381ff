// Package provider enriches media files with metadata from external sources.
package provider

import (
	"context"
	"log/slog"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
)

// Provider looks up metadata for a file. ok is false when the provider
// has nothing to say about the file.
type Provider interface {
	Name() string
	Enrich(ctx context.Context, file library.MediaFile) (enriched library.MediaFile, ok bool, err error)
}

// Resolver tries providers in order and returns the first titled result.
type Resolver struct {
	providers []Provider
	log       *slog.Logger
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{
		providers: providers,
		log:       slog.With("component", "metadata-resolver"),
	}
}

// Providers returns the names of the registered providers in order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Resolve returns the enriched file and true, or the input and false when no
// provider produced a title. With no providers the file passes through.
func (r *Resolver) Resolve(ctx context.Context, file library.MediaFile) (library.MediaFile, bool) {
	if len(r.providers) == 0 {
		return file, true
	}

	for _, p := range r.providers {
		enriched, ok, err := p.Enrich(ctx, file.Clone())
		if err != nil {
			r.log.Warn("Provider failed", "provider", p.Name(), "file", file.OriginalPath, "error", err)
			continue
		}
		if ok && enriched.Title != "" {
			r.log.Debug("Resolved metadata", "provider", p.Name(), "file", file.OriginalPath, "title", enriched.Title)
			return enriched, true
		}
	}

	return file, false
}

// Filename titles files from their own name. Registered last, it turns a
// lookup miss into a proposal the user can still correct.
type Filename struct{}

func (Filename) Name() string { return "filename" }

func (Filename) Enrich(_ context.Context, file library.MediaFile) (library.MediaFile, bool, error) {
	title := FilenameTitle(file)
	return file.WithTitle(title), title != "", nil
}

// FilenameTitle derives a display title from the parsed filename. Episodes
// use the series part before the episode marker.
func FilenameTitle(file library.MediaFile) string {
	var title string
	if file.Type == library.MediaTypeEpisode {
		title = identify.SeriesName(file.FileName)
	} else {
		title = file.ParsedTitle
	}
	if title == "" {
		title = identify.Normalize(file.FileName)
	}
	return identify.TitleCase(title)
}
