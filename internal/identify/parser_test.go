package identify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-wer/media-renamer/internal/library"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dots and dashes", "The.Matrix-1999_x264", "the matrix 1999 x264"},
		{"brackets", "Movie (2020) [1080p] {x}", "movie 2020 1080p x"},
		{"punctuation deleted", "Movie!@#$%2020", "movie2020"},
		{"diacritics", "Café Zoë Curaçao", "cafe zoe curacao"},
		{"non combining letter kept", "Ðuke", "ðuke"},
		{"unicode spaces", "a\u00a0b\u2003c\u3000d\ufeffe", "a b c d e"},
		{"trim", "  spaced   out  ", "spaced out"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"The.Matrix.1999.1080p.BluRay.x264",
		"Café.Naïve.René",
		"001.James.Bond.007.-.Jagt.Dr.No.1962",
		"weird  spacing\t\nhere",
		"Movie (2020) [1080p]",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeForDisplay(t *testing.T) {
	assert.Equal(t, "Café Müller", NormalizeForDisplay("  Café   Müller "))
}

func TestParseTitleAndYear(t *testing.T) {
	tests := []struct {
		filename string
		title    string
		year     int
	}{
		{"The.Matrix.1999.1080p.BluRay.x264", "the matrix", 1999},
		{"The Matrix (1999) 1080p BluRay x264", "the matrix", 1999},
		{"matrix_1999_720p", "matrix", 1999},
		{"001.James.Bond.007.-.Jagt.Dr.No.1962.German.AC3.DL.720p.Bluray.Rip.x264", "james bond 007 jagt dr no", 1962},
		{"Movie.2099.x264", "movie", 2099},
		{"01.The.First.Movie.2020.1080p", "the first movie", 2020},
		{"100.The.Hundredth.Movie.2020.1080p", "the hundredth movie", 2020},
		{"Café.2020.1080p", "cafe", 2020},
		{"Naïve.2020.1080p", "naive", 2020},
		{"Ðuke.2020.1080p", "ðuke", 2020},
	}

	p := NewDefaultParser()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := p.Parse(tt.filename)
			assert.Equal(t, tt.title, got.NormalizedTitle)
			require.NotNil(t, got.Year)
			assert.Equal(t, tt.year, *got.Year)
		})
	}
}

func TestParseRejectsOutOfRangeYears(t *testing.T) {
	p := NewDefaultParser()
	for _, name := range []string{"Movie.1899.x264", "Movie.2100.x264", "Movie.x264"} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, p.Parse(name).Year)
		})
	}
}

func TestParseEdgeCases(t *testing.T) {
	p := NewDefaultParser()

	t.Run("empty", func(t *testing.T) {
		got := p.Parse("")
		assert.Equal(t, "", got.NormalizedTitle)
		assert.Nil(t, got.Year)
		assert.Equal(t, library.MediaTypeMovie, got.Type)
		assert.Equal(t, 0.0, got.Confidence)
		assert.Empty(t, got.RemovedNoise)
	})

	t.Run("whitespace only", func(t *testing.T) {
		got := p.Parse("   ")
		assert.Equal(t, "   ", got.RawFilename)
		assert.Equal(t, "", got.NormalizedTitle)
		assert.Equal(t, 0.0, got.Confidence)
	})

	t.Run("special characters glue the year", func(t *testing.T) {
		got := p.Parse("Movie!@#$%2020.1080p")
		assert.Equal(t, "movie2020", got.NormalizedTitle)
		assert.Nil(t, got.Year)
	})

	t.Run("parentheses", func(t *testing.T) {
		assert.Equal(t, "movie", p.Parse("Movie (2020) [1080p]").NormalizedTitle)
	})

	t.Run("very long title", func(t *testing.T) {
		long := strings.Repeat("a", 150)
		got := p.Parse(long + ".2020.1080p")
		assert.Equal(t, long, got.NormalizedTitle)
		assert.Equal(t, 0.9, got.Confidence)
	})
}

func TestParseTruncatesAfterFirstNoise(t *testing.T) {
	p := NewDefaultParser()

	got := p.Parse("Some.Movie.1080p.Director.Cut.2010")
	assert.Equal(t, "some movie", got.NormalizedTitle)
	assert.Nil(t, got.Year)
	assert.Contains(t, got.RemovedNoise, "1080p")
}

func TestParseNoiseReport(t *testing.T) {
	tests := []struct {
		filename string
		contains string
	}{
		{"Movie.2160p.4k.UHD.x265", "2160p"},
		{"Movie.720p.WEB-DL.x265", "720p"},
		{"Movie.HEVC.x265", "hevc"},
		{"Movie.AVC.x264", "avc"},
		{"Movie.AV1", "av1"},
		{"Movie.TrueHD.x264", "truehd"},
		{"Movie.DTS-HD.MA.x264", "dts"},
		{"Movie.DD5.1.x264", "dd5.1"},
		{"Movie.2020.1080p.5GB", "gb"},
		{"Movie.2020.720p.1.5GB", "1.5gb"},
		{"Movie.2020.480p.700MB", "mb"},
	}

	p := NewDefaultParser()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := p.Parse(tt.filename)
			found := false
			for _, n := range got.RemovedNoise {
				if strings.Contains(strings.ToLower(n), tt.contains) {
					found = true
				}
			}
			assert.True(t, found, "noise %v should contain %q", got.RemovedNoise, tt.contains)
		})
	}
}

func TestParseNoiseIsDeduplicated(t *testing.T) {
	got := NewDefaultParser().Parse("The.Matrix.1080p.1080P.BluRay")

	count := 0
	for _, n := range got.RemovedNoise {
		if strings.EqualFold(n, "1080p") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		filename string
		want     library.MediaType
	}{
		{"The.Matrix.S01E01.1080p.WEB-DL", library.MediaTypeEpisode},
		{"The.Matrix.S01E01.720p", library.MediaTypeEpisode},
		{"TV.Show.Season.1.Episode.1.1080p", library.MediaTypeEpisode},
		{"TV.Show.Staffel.1.Folge.1.1080p", library.MediaTypeEpisode},
		{"TV.Show.Season.1.1080p", library.MediaTypeEpisode},
		{"The.Matrix.1999.1080p.BluRay", library.MediaTypeMovie},
		{"Movie.2020.1080p", library.MediaTypeMovie},
	}

	p := NewDefaultParser()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.filename).Type)
		})
	}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		filename string
		want     float64
	}{
		{"The.Matrix.1999.1080p.BluRay.x264", 1.0},
		{"Movie.2020.1080p.BluRay.x264", 0.9},
		{"Movie.2020", 0.8},
		{"Short.2020", 0.8},
		{"Some Very Long Movie Title Here 2020 Without Any Extra Info", 1.0},
		{"Movie.x264", 0.6},
		{"Movie", 0.5},
	}

	p := NewDefaultParser()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.filename).Confidence)
		})
	}
}

func TestParseConfidenceIsMonotoneInYear(t *testing.T) {
	p := NewDefaultParser()
	for _, base := range []string{"Movie", "Some.Longer.Title", "Title.1080p", ""} {
		without := p.Parse(base)
		with := p.Parse(base + ".2001")
		assert.GreaterOrEqual(t, with.Confidence, without.Confidence, "base %q", base)
	}
}

func TestCustomConfiguration(t *testing.T) {
	cfg := Configuration{Patterns: []Pattern{{
		ID:              "custom-resolution",
		Pattern:         `8k`,
		Category:        CategoryResolution,
		Enabled:         true,
		RemoveFromTitle: true,
	}}}

	p, err := NewParser(cfg)
	require.NoError(t, err)

	got := p.Parse("Movie.8k.2020")
	assert.Contains(t, got.RemovedNoise, "8k")
	assert.Equal(t, "movie", got.NormalizedTitle)
}

func TestPriorityZeroPatternAppliesFirst(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Patterns = append(cfg.Patterns, Pattern{
		ID:              "test-marker",
		Pattern:         `testmarker`,
		Category:        CategoryCustom,
		Priority:        0,
		Enabled:         true,
		RemoveFromTitle: true,
	})

	p, err := NewParser(cfg)
	require.NoError(t, err)
	assert.Equal(t, "movie", p.Parse("Movie.testmarker.2020").NormalizedTitle)
}

func TestDisabledPatternIsIgnored(t *testing.T) {
	cfg := DefaultConfiguration()
	for i := range cfg.Patterns {
		if cfg.Patterns[i].ID == "1080p" {
			cfg.Patterns[i].Enabled = false
		}
	}

	p, err := NewParser(cfg)
	require.NoError(t, err)

	got := p.Parse("Movie.1080p")
	assert.Equal(t, "movie 1080p", got.NormalizedTitle)
	assert.NotContains(t, got.RemovedNoise, "1080p")
}

func TestInvalidPatternFails(t *testing.T) {
	_, err := NewParser(Configuration{Patterns: []Pattern{{ID: "broken", Pattern: `(`, Enabled: true}}})
	assert.Error(t, err)
}

func TestDefaultConfigurationCategories(t *testing.T) {
	seen := make(map[PatternCategory]bool)
	for _, p := range DefaultConfiguration().Patterns {
		seen[p.Category] = true
	}
	for _, c := range []PatternCategory{CategoryResolution, CategoryCodec, CategoryAudioCodec, CategoryLanguage, CategoryReleaseSource} {
		assert.True(t, seen[c], "missing category %s", c)
	}
}
