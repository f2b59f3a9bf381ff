package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

// ErrNotFound is returned when TMDB answers 404.
var ErrNotFound = errors.New("tmdb: not found")

// Cache stores raw responses keyed by request URL (without the API key).
type Cache interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Client is a TMDB API client
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	cache      Cache
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server, e.g. a test fake.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithLanguage sets the language parameter sent with every request.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithCache enables response caching.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a new TMDB client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: slog.With("component", "tmdb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Movie represents a movie from TMDB
type Movie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
}

// Year extracts the year from the release date
func (m *Movie) Year() int {
	return yearOf(m.ReleaseDate)
}

// Show represents a TV show from TMDB
type Show struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
}

// Year extracts the year from the first air date
func (s *Show) Year() int {
	return yearOf(s.FirstAirDate)
}

// Episode represents a TV episode from TMDB
type Episode struct {
	ID            int    `json:"id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
}

// Year extracts the year from the air date
func (e *Episode) Year() int {
	return yearOf(e.AirDate)
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// SearchMovies searches for movies by title. A zero year searches all years.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]Movie, error) {
	params := url.Values{"query": {query}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", params, &result); err != nil {
		return nil, err
	}

	return result.Results, nil
}

// SearchShows searches for TV shows by title. A zero year searches all years.
func (c *Client) SearchShows(ctx context.Context, query string, year int) ([]Show, error) {
	params := url.Values{"query": {query}}
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var result struct {
		Results []Show `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", params, &result); err != nil {
		return nil, err
	}

	return result.Results, nil
}

// GetEpisode fetches a single episode of a show.
func (c *Client) GetEpisode(ctx context.Context, showID, season, episode int) (*Episode, error) {
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", showID, season, episode)

	ep := &Episode{}
	if err := c.get(ctx, path, nil, ep); err != nil {
		return nil, err
	}

	return ep, nil
}

// get performs a GET request and decodes the response
func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	if c.language != "" {
		q.Set("language", c.language)
	}
	cacheKey := path + "?" + q.Encode()

	if c.cache != nil {
		if data, err := c.cache.Get(cacheKey); err == nil {
			if err := json.Unmarshal(data, v); err == nil {
				return nil
			}
		}
	}

	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Put(cacheKey, data); err != nil {
			c.log.Warn("Failed to cache response", "path", path, "error", err)
		}
	}

	return nil
}
