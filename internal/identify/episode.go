package identify

import (
	"regexp"
	"strconv"
	"strings"
)

// EpisodeInfo holds the season and episode numbers found in a filename.
type EpisodeInfo struct {
	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Found reports whether at least a season marker was detected.
func (e EpisodeInfo) Found() bool {
	return e.Season != nil || e.Episode != nil
}

type episodePatterns struct {
	SxxExxRange   *regexp.Regexp
	SxxExx        *regexp.Regexp
	XxYY          *regexp.Regexp
	SeasonEpisode *regexp.Regexp
	StaffelFolge  *regexp.Regexp
	SeasonOnly    *regexp.Regexp
	EpisodeOnly   *regexp.Regexp
}

var episodeRegexes = episodePatterns{
	SxxExxRange:   regexp.MustCompile(`(?i)s(\d{1,2})e(\d{1,3})\s*e(\d{1,3})`),
	SxxExx:        regexp.MustCompile(`(?i)\bs(\d{1,2})\s*e(\d{1,3})`),
	XxYY:          regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`),
	SeasonEpisode: regexp.MustCompile(`(?i)season\s*(\d{1,2})\s*episode\s*(\d{1,3})`),
	StaffelFolge:  regexp.MustCompile(`(?i)staffel\s*(\d{1,2})\s*folge\s*(\d{1,3})`),
	SeasonOnly:    regexp.MustCompile(`(?i)(?:season|staffel)\s*(\d{1,2})`),
	EpisodeOnly:   regexp.MustCompile(`(?i)(?:episode|folge)\s*(\d{1,3})`),
}

// ExtractEpisode finds season and episode numbers, trying the most specific
// markers first. A multi-episode marker (S01E01E02) yields its first episode.
func ExtractEpisode(name string) EpisodeInfo {
	normalized := Normalize(name)

	if m := episodeRegexes.SxxExx.FindStringSubmatch(normalized); m != nil {
		pattern := "SxxExx"
		if episodeRegexes.SxxExxRange.MatchString(normalized) {
			pattern = "SxxExx-Exx"
		}
		return episodeInfo(m[1], m[2], pattern)
	}

	if m := episodeRegexes.XxYY.FindStringSubmatch(normalized); m != nil {
		return episodeInfo(m[1], m[2], "XxYY")
	}

	if m := episodeRegexes.SeasonEpisode.FindStringSubmatch(normalized); m != nil {
		return episodeInfo(m[1], m[2], "Season X Episode Y")
	}

	if m := episodeRegexes.StaffelFolge.FindStringSubmatch(normalized); m != nil {
		return episodeInfo(m[1], m[2], "Staffel X Folge Y")
	}

	var info EpisodeInfo
	if m := episodeRegexes.SeasonOnly.FindStringSubmatch(normalized); m != nil {
		info.Season = intPtr(parseInt(m[1]))
		info.Pattern = "Season X"
	}
	if m := episodeRegexes.EpisodeOnly.FindStringSubmatch(normalized); m != nil {
		info.Episode = intPtr(parseInt(m[1]))
		if info.Pattern == "" {
			info.Pattern = "Episode Y"
		}
	}
	return info
}

// SeriesName returns the text in front of the first episode marker, with a
// trailing year and the ordinal prefix removed.
func SeriesName(name string) string {
	normalized := ordinalPrefix.ReplaceAllString(Normalize(name), "")
	if loc := episodeMarker.FindStringIndex(normalized); loc != nil {
		normalized = normalized[:loc[0]]
	}
	if loc := yearPattern.FindStringIndex(normalized); loc != nil && loc[0] > 0 {
		normalized = normalized[:loc[0]]
	}
	return strings.TrimSpace(normalized)
}

func episodeInfo(season, episode, pattern string) EpisodeInfo {
	return EpisodeInfo{
		Season:  intPtr(parseInt(season)),
		Episode: intPtr(parseInt(episode)),
		Pattern: pattern,
	}
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func intPtr(n int) *int {
	return &n
}
