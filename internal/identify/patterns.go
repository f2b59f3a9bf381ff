package identify

import (
	"fmt"
	"regexp"
	"sort"
)

// PatternCategory groups parser patterns by the kind of noise they detect.
type PatternCategory string

const (
	CategoryResolution      PatternCategory = "resolution"
	CategoryCodec           PatternCategory = "codec"
	CategoryAudioCodec      PatternCategory = "audio_codec"
	CategoryLanguage        PatternCategory = "language"
	CategoryReleaseSource   PatternCategory = "release_source"
	CategoryFileSize        PatternCategory = "file_size"
	CategoryQualityModifier PatternCategory = "quality_modifier"
	CategoryEpisode         PatternCategory = "episode"
	CategoryCustom          PatternCategory = "custom"
)

// Pattern is a single configurable noise pattern.
type Pattern struct {
	ID              string          `yaml:"id" toml:"id" json:"id"`
	Pattern         string          `yaml:"pattern" toml:"pattern" json:"pattern"`
	Category        PatternCategory `yaml:"category" toml:"category" json:"category"`
	RemoveFromTitle bool            `yaml:"remove_from_title" toml:"remove_from_title" json:"remove_from_title"`
	CaseInsensitive bool            `yaml:"case_insensitive" toml:"case_insensitive" json:"case_insensitive"`
	Priority        int             `yaml:"priority" toml:"priority" json:"priority"`
	Enabled         bool            `yaml:"enabled" toml:"enabled" json:"enabled"`
	Description     string          `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
}

// Configuration is the ordered pattern table used by the parser.
type Configuration struct {
	Patterns []Pattern `yaml:"patterns" toml:"patterns" json:"patterns"`
}

func noise(id, pattern string, category PatternCategory, priority int, description string) Pattern {
	return Pattern{
		ID:              id,
		Pattern:         pattern,
		Category:        category,
		RemoveFromTitle: true,
		CaseInsensitive: true,
		Priority:        priority,
		Enabled:         true,
		Description:     description,
	}
}

// DefaultConfiguration returns the built-in pattern table.
func DefaultConfiguration() Configuration {
	episodeStandard := noise("episode-standard", `s\d+e\d+|season\s*\d+|episode\s*\d+`, CategoryEpisode, 1, "Episode markers")
	episodeStandard.RemoveFromTitle = false
	episodeGerman := noise("episode-german", `staffel\s*\d+|folge\s*\d+`, CategoryEpisode, 2, "German episode markers")
	episodeGerman.RemoveFromTitle = false

	return Configuration{Patterns: []Pattern{
		noise("4k-uhd", `2160[p|i]|4k|uhd`, CategoryResolution, 1, "4K / UHD"),
		noise("1080p", `1080[p|i]`, CategoryResolution, 2, "Full HD"),
		noise("720p", `720[p|i]`, CategoryResolution, 3, "HD"),
		noise("480p", `480[p|i]`, CategoryResolution, 4, "SD"),

		noise("h265-hevc", `h265|hevc|x265`, CategoryCodec, 1, "H.265 / HEVC"),
		noise("h264-avc", `h264|avc|x264`, CategoryCodec, 2, "H.264 / AVC"),
		noise("av1", `av1`, CategoryCodec, 3, "AV1"),

		noise("truehd", `truehd`, CategoryAudioCodec, 1, "Dolby TrueHD"),
		noise("dts-hd", `dts.?hd|dtshd`, CategoryAudioCodec, 2, "DTS-HD"),
		noise("eac3", `eac3`, CategoryAudioCodec, 3, "Dolby Digital Plus"),
		noise("dd51", `dd5\.1`, CategoryAudioCodec, 4, "Dolby Digital 5.1"),
		noise("dd71", `dd7\.1`, CategoryAudioCodec, 5, "Dolby Digital 7.1"),
		noise("dts", `dts`, CategoryAudioCodec, 6, "DTS"),

		noise("german", `german|deutsch|german\.dubbed|dl\.german`, CategoryLanguage, 1, "German"),
		noise("english", `english|eng`, CategoryLanguage, 2, "English"),
		noise("multilingual", `multi`, CategoryLanguage, 3, "Multiple languages"),
		noise("forced", `forced`, CategoryLanguage, 4, "Forced subtitles"),

		noise("blu-ray", `blu.?ray|bdrip|bdr`, CategoryReleaseSource, 1, "Blu-ray"),
		noise("dvd", `dvdrip|dvd`, CategoryReleaseSource, 2, "DVD"),
		noise("web-dl", `web[-.]?(dl|rip)`, CategoryReleaseSource, 3, "Web download"),
		noise("rarbg", `rarbg`, CategoryReleaseSource, 4, "RARBG"),
		noise("yts", `yts`, CategoryReleaseSource, 5, "YTS"),
		noise("torrentgalaxy", `torrentgalaxy`, CategoryReleaseSource, 6, "TorrentGalaxy"),

		noise("proper", `proper`, CategoryQualityModifier, 1, "Proper release"),
		noise("repack", `repack`, CategoryQualityModifier, 2, "Repacked release"),

		noise("file-size", `\d+\.?\d*\.?(gb|mb|kb)`, CategoryFileSize, 1, "File size"),

		episodeStandard,
		episodeGerman,
	}}
}

// compiledPattern holds the two regexes derived from one Pattern: the
// truncating form applied to the normalized title and the plain form used for
// the noise report.
type compiledPattern struct {
	Pattern
	truncate *regexp.Regexp
	find     *regexp.Regexp
}

func compilePatterns(cfg Configuration) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if !p.Enabled {
			continue
		}
		flags := ""
		if p.CaseInsensitive {
			flags = "(?i)"
		}
		find, err := regexp.Compile(flags + `\b(?:` + p.Pattern + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p.ID, err)
		}
		// Truncation always matches case-insensitively.
		truncate, err := regexp.Compile(`(?i)\b(?:` + p.Pattern + `)\b.*$`)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p.ID, err)
		}
		compiled = append(compiled, compiledPattern{Pattern: p, truncate: truncate, find: find})
	}
	return compiled, nil
}

// byPriority returns the removable patterns in ascending priority, keeping
// table order for equal priorities.
func byPriority(patterns []compiledPattern) []compiledPattern {
	removable := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.RemoveFromTitle {
			removable = append(removable, p)
		}
	}
	sort.SliceStable(removable, func(i, j int) bool {
		return removable[i].Priority < removable[j].Priority
	})
	return removable
}
