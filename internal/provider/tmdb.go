package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/tmdb"
)

// TMDBClient is the subset of the TMDB client used here.
type TMDBClient interface {
	SearchMovies(ctx context.Context, query string, year int) ([]tmdb.Movie, error)
	SearchShows(ctx context.Context, query string, year int) ([]tmdb.Show, error)
	GetEpisode(ctx context.Context, showID, season, episode int) (*tmdb.Episode, error)
}

// TMDB resolves movies and episodes against The Movie Database.
type TMDB struct {
	client TMDBClient
	log    *slog.Logger
}

func NewTMDB(client TMDBClient) *TMDB {
	return &TMDB{
		client: client,
		log:    slog.With("component", "tmdb-provider"),
	}
}

func (t *TMDB) Name() string { return "tmdb" }

func (t *TMDB) Enrich(ctx context.Context, file library.MediaFile) (library.MediaFile, bool, error) {
	switch file.Type {
	case library.MediaTypeEpisode:
		return t.enrichEpisode(ctx, file)
	default:
		return t.enrichMovie(ctx, file)
	}
}

func (t *TMDB) enrichMovie(ctx context.Context, file library.MediaFile) (library.MediaFile, bool, error) {
	query := file.ParsedTitle
	if query == "" {
		query = identify.Normalize(file.FileName)
	}
	if query == "" {
		return file, false, nil
	}

	year := 0
	if file.Year != nil {
		year = *file.Year
	}

	results, err := t.client.SearchMovies(ctx, query, year)
	if err != nil {
		return file, false, fmt.Errorf("search movie %q: %w", query, err)
	}
	if len(results) == 0 && year > 0 {
		// Release years in filenames are often off; retry without the filter.
		results, err = t.client.SearchMovies(ctx, query, 0)
		if err != nil {
			return file, false, fmt.Errorf("search movie %q: %w", query, err)
		}
	}

	movie, ok := pickMovie(results, year)
	if !ok {
		t.log.Debug("No movie match", "query", query, "year", year, "results", len(results))
		return file, false, nil
	}

	out := file.WithTitle(movie.Title)
	if y := movie.Year(); y > 0 {
		out = out.WithYear(&y)
	}
	return out, true, nil
}

// pickMovie returns the first result whose release year is within one year of
// the wanted year. Without a wanted year the first result wins.
func pickMovie(results []tmdb.Movie, year int) (tmdb.Movie, bool) {
	for _, m := range results {
		if year == 0 {
			return m, true
		}
		if y := m.Year(); y != 0 && abs(y-year) <= 1 {
			return m, true
		}
	}
	return tmdb.Movie{}, false
}

func (t *TMDB) enrichEpisode(ctx context.Context, file library.MediaFile) (library.MediaFile, bool, error) {
	if file.Season == nil || file.Episode == nil {
		return file, false, nil
	}

	series := identify.SeriesName(file.FileName)
	if series == "" {
		return file, false, nil
	}

	shows, err := t.client.SearchShows(ctx, series, 0)
	if err != nil {
		return file, false, fmt.Errorf("search show %q: %w", series, err)
	}
	if len(shows) == 0 {
		t.log.Debug("No show match", "query", series)
		return file, false, nil
	}
	show := shows[0]

	ep, err := t.client.GetEpisode(ctx, show.ID, *file.Season, *file.Episode)
	if err != nil {
		return file, false, fmt.Errorf("get episode %d/S%02dE%02d: %w", show.ID, *file.Season, *file.Episode, err)
	}

	out := file.WithTitle(show.Name).WithEpisode(file.Season, file.Episode, ep.Name)
	year := show.Year()
	if year == 0 {
		year = ep.Year()
	}
	if year > 0 {
		out = out.WithYear(&year)
	}
	return out, true, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
