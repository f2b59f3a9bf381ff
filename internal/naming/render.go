// Package naming renders proposed library paths from templates.
package naming

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/to-wer/media-renamer/internal/common"
	"github.com/to-wer/media-renamer/internal/library"
)

const (
	DefaultMovieTemplate   = "{Title} ({Year})/{Title} ({Year}) [{Resolution}] [{Codec}]"
	DefaultEpisodeTemplate = "{SeriesName} ({Year})/Season {Season:D2}/{SeriesName} S{Season:D2}E{Episode:D2} {EpisodeName}"
)

var (
	emptySquare    = regexp.MustCompile(`\[\s*\]`)
	emptyRound     = regexp.MustCompile(`\(\s*\)`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	separatorSpace = regexp.MustCompile(`\s*/\s*`)
	separatorRun   = regexp.MustCompile(`/{2,}`)
)

// placeholder matches every supported placeholder with its optional
// zero-padding width.
var placeholder = regexp.MustCompile(`\{(Title|SeriesName|EpisodeName|Resolution|Codec|Year|Season|Episode)(?::D(\d+))?\}`)

// maxPadWidth bounds the :Dn width.
const maxPadWidth = 10

// Render substitutes the placeholders of tmpl with values from file and
// cleans up what absent values leave behind. The result uses "/" as the
// separator and has no extension. Substitution is a single pass, so braces
// inside values are kept literally.
func Render(tmpl string, file library.MediaFile) string {
	strs := map[string]string{
		"Title":       file.Title,
		"SeriesName":  file.Title,
		"EpisodeName": file.EpisodeTitle,
		"Resolution":  file.Resolution,
		"Codec":       file.Codec,
	}
	nums := map[string]*int{
		"Year":    file.Year,
		"Season":  file.Season,
		"Episode": file.Episode,
	}

	out := placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if value, ok := strs[sub[1]]; ok {
			if sub[2] != "" {
				// Padding only applies to numbers.
				return match
			}
			return SanitizeSegment(value)
		}
		return formatNumber(nums[sub[1]], sub[2])
	})

	return cleanup(out)
}

// formatNumber renders a numeric value with an optional zero-padding width,
// or nothing when the value is absent.
func formatNumber(value *int, width string) string {
	if value == nil {
		return ""
	}
	if width == "" {
		return strconv.Itoa(*value)
	}
	n, err := strconv.Atoi(width)
	if err != nil {
		return strconv.Itoa(*value)
	}
	return common.PadZero(*value, min(n, maxPadWidth))
}

func cleanup(s string) string {
	// Nested pairs like "[ () ]" need more than one pass.
	for {
		next := emptyRound.ReplaceAllString(emptySquare.ReplaceAllString(s, ""), "")
		if next == s {
			break
		}
		s = next
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = separatorSpace.ReplaceAllString(s, "/")
	s = separatorRun.ReplaceAllString(s, "/")
	return strings.Trim(strings.TrimSpace(s), "/")
}

// SanitizeSegment replaces characters that are invalid in a path segment
// with an underscore.
func SanitizeSegment(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// TemplateFor returns the template that applies to the media type.
func TemplateFor(t library.MediaType, movieTemplate, episodeTemplate string) string {
	if t == library.MediaTypeEpisode {
		return episodeTemplate
	}
	return movieTemplate
}
