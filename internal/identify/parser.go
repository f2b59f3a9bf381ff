package identify

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/to-wer/media-renamer/internal/library"
)

var (
	ordinalPrefix = regexp.MustCompile(`^\s*\d+\.?\s*`)
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	episodeMarker = regexp.MustCompile(`(?i)s\d+e\d+|season\s*\d+|episode\s*\d+|staffel\s*\d+|folge\s*\d+`)
)

// ParsedTitle is the result of classifying a filename.
type ParsedTitle struct {
	RawFilename     string            `json:"raw_filename"`
	NormalizedTitle string            `json:"normalized_title"`
	Year            *int              `json:"year,omitempty"`
	Type            library.MediaType `json:"type"`
	Confidence      float64           `json:"confidence"`
	RemovedNoise    []string          `json:"removed_noise"`
}

// Parser extracts a title, year and media type from release-style filenames.
type Parser struct {
	cfg       Configuration
	patterns  []compiledPattern
	removable []compiledPattern
	log       *slog.Logger
}

// NewParser compiles the given pattern table. An empty table falls back to
// DefaultConfiguration.
func NewParser(cfg Configuration) (*Parser, error) {
	if len(cfg.Patterns) == 0 {
		cfg = DefaultConfiguration()
	}

	patterns, err := compilePatterns(cfg)
	if err != nil {
		return nil, err
	}

	return &Parser{
		cfg:       cfg,
		patterns:  patterns,
		removable: byPriority(patterns),
		log:       slog.With("component", "parser"),
	}, nil
}

// NewDefaultParser returns a parser using the built-in pattern table.
func NewDefaultParser() *Parser {
	p, err := NewParser(DefaultConfiguration())
	if err != nil {
		// The built-in table is static; a compile failure is a programming error.
		panic(err)
	}
	return p
}

// Configuration returns the pattern table the parser was built with.
func (p *Parser) Configuration() Configuration {
	return p.cfg
}

// Parse classifies a filename (without extension).
func (p *Parser) Parse(filename string) ParsedTitle {
	result := ParsedTitle{
		RawFilename:  filename,
		Type:         library.MediaTypeMovie,
		RemovedNoise: []string{},
	}
	if strings.TrimSpace(filename) == "" {
		return result
	}

	normalized := Normalize(filename)
	truncated := ordinalPrefix.ReplaceAllString(normalized, "")

	// The first noise hit drops everything after it.
	for _, pat := range p.removable {
		if loc := pat.truncate.FindStringIndex(truncated); loc != nil {
			truncated = truncated[:loc[0]]
		}
	}

	result.RemovedNoise = p.noiseReport(filename)

	title := strings.TrimSpace(truncated)
	if loc := yearPattern.FindStringIndex(truncated); loc != nil {
		year, _ := strconv.Atoi(truncated[loc[0]:loc[1]])
		result.Year = &year
		title = strings.TrimSpace(truncated[:loc[0]])
	}
	result.NormalizedTitle = title

	if IsEpisode(filename) || IsEpisode(normalized) {
		result.Type = library.MediaTypeEpisode
	}

	result.Confidence = confidence(result)

	p.log.Debug("Parsed filename",
		"filename", filename,
		"title", result.NormalizedTitle,
		"type", result.Type,
		"confidence", result.Confidence,
	)

	return result
}

// noiseReport collects the first literal match of every enabled pattern in
// the raw filename, de-duplicated case-insensitively, in table order.
func (p *Parser) noiseReport(raw string) []string {
	found := []string{}
	seen := make(map[string]bool)
	for _, pat := range p.patterns {
		match := pat.find.FindString(raw)
		if match == "" {
			continue
		}
		key := strings.ToLower(match)
		if seen[key] {
			continue
		}
		seen[key] = true
		found = append(found, match)
	}
	return found
}

// confidence is computed in tenths so the result is exact.
func confidence(pt ParsedTitle) float64 {
	score := 5
	if pt.Year != nil {
		score += 3
	}
	if n := utf8.RuneCountInString(pt.NormalizedTitle); n > 5 && n < 100 {
		score += 2
	}
	if len(pt.RemovedNoise) > 0 {
		score++
	}
	score = max(0, min(score, 10))
	return float64(score) / 10
}

// IsEpisode reports whether the name carries a season or episode marker.
func IsEpisode(name string) bool {
	return episodeMarker.MatchString(name)
}
