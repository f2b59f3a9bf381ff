package identify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// QualityInfo contains quality metadata extracted from filenames
type QualityInfo struct {
	Resolution string `json:"resolution,omitempty"` // 4K, 1080p, 720p, 480p
	Source     string `json:"source,omitempty"`     // BluRay, WEB-DL, DVDRip
	Codec      string `json:"codec,omitempty"`      // x264, x265, AV1
	HDR        bool   `json:"hdr"`
}

var (
	resolutionPattern = regexp.MustCompile(`(?i)\b(2160[pi]|1080[pi]|720[pi]|480[pi]|4k|uhd)\b`)
	sourcePattern     = regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|web[-.]?dl|webrip|hdtv|dvdrip)\b`)
	codecPattern      = regexp.MustCompile(`(?i)\b([xh]\.?26[45]|hevc|avc|av1)\b`)
	hdrPattern        = regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|dolby[. ]?vision|dv)\b`)
)

// ExtractQuality extracts quality information from filename tokens.
func ExtractQuality(filename string) QualityInfo {
	quality := QualityInfo{}

	if match := resolutionPattern.FindString(filename); match != "" {
		quality.Resolution = normalizeResolution(match)
	}

	if match := sourcePattern.FindString(filename); match != "" {
		quality.Source = normalizeSource(match)
	}

	if match := codecPattern.FindString(filename); match != "" {
		quality.Codec = normalizeCodec(match)
	}

	quality.HDR = hdrPattern.MatchString(filename)

	return quality
}

// normalizeResolution converts resolution to standard format
func normalizeResolution(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "2160") || upper == "4K" || upper == "UHD":
		return "4K"
	case strings.Contains(upper, "1080"):
		return "1080p"
	case strings.Contains(upper, "720"):
		return "720p"
	case strings.Contains(upper, "480"):
		return "480p"
	default:
		return match
	}
}

// normalizeSource converts source to standard format
func normalizeSource(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "BLURAY") || strings.Contains(upper, "BLU-RAY") || strings.Contains(upper, "BDRIP"):
		return "BluRay"
	case strings.Contains(upper, "WEB-DL") || strings.Contains(upper, "WEBDL") || strings.Contains(upper, "WEB.DL"):
		return "WEB-DL"
	case strings.Contains(upper, "WEBRIP"):
		return "WEBRip"
	case strings.Contains(upper, "HDTV"):
		return "HDTV"
	case strings.Contains(upper, "DVDRIP"):
		return "DVDRip"
	default:
		return match
	}
}

// normalizeCodec converts codec to the naming used in rendered paths
func normalizeCodec(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "265") || strings.Contains(upper, "HEVC"):
		return "x265"
	case strings.Contains(upper, "264") || strings.Contains(upper, "AVC"):
		return "x264"
	case strings.Contains(upper, "AV1"):
		return "AV1"
	default:
		return match
	}
}

// NormalizeCodecName maps a container codec name (as reported by ffprobe) to
// the same vocabulary as filename codecs.
func NormalizeCodecName(name string) string {
	if name == "" {
		return ""
	}
	return normalizeCodec(name)
}

// IsMediaFile checks the extension against the configured list.
func IsMediaFile(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// ShouldSkip returns true if the file should be skipped (samples, trailers, extras)
func ShouldSkip(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))

	skipPatterns := []string{
		"sample",
		"trailer",
		"featurette",
		"deleted.scene",
		"deleted_scene",
		"deleted-scene",
		"behind.the.scene",
		"behind_the_scene",
		"behind-the-scene",
		"/extras/",
		"/bonus/",
	}

	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
