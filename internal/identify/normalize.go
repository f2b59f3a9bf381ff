package identify

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// separators become a single space
const separatorChars = ".-_ ()[]{}"

// deletedChars are removed outright
const deletedChars = "\"'`~^°§$%&/\\|<>*+=?!,;:@#"

// stripMarks decomposes to NFD and drops combining diacritical marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))

func isCombiningMark(r rune) bool {
	switch {
	case r >= 0x0300 && r <= 0x036F,
		r >= 0x0483 && r <= 0x0489,
		r >= 0x1DC0 && r <= 0x1DFF,
		r >= 0x20D0 && r <= 0x20FF,
		r >= 0xFE20 && r <= 0xFE2F:
		return true
	}
	return false
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Normalize turns a raw filename (without extension) into the lowercase
// matching form used by the parser: separators become spaces, punctuation is
// dropped, diacritics are stripped and whitespace is collapsed.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	mapped := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(separatorChars, r):
			return ' '
		case strings.ContainsRune(deletedChars, r):
			return -1
		}
		return r
	}, raw)

	stripped, _, err := transform.String(stripMarks, mapped)
	if err != nil {
		stripped = mapped
	}

	return collapseSpaces(strings.ToLower(stripped))
}

// NormalizeForDisplay collapses whitespace and trims, keeping case and
// diacritics intact.
func NormalizeForDisplay(raw string) string {
	return collapseSpaces(raw)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}

// TitleCase capitalizes each word of a normalized title for presentation.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
