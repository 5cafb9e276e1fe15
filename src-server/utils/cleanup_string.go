package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// strips spaces, uppercase first letter, remove trailing periods.
// CleanupString(CleanupString(s)) == CleanupString(s)
func CleanupString(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	s = strings.TrimRightFunc(s, func(r rune) bool { return r == '.' || unicode.IsSpace(r) })
	if s == "" {
		return s
	}
	first := strings.SplitAfterN(s, " ", 2)
	first[0] = cases.Title(language.Czech, cases.NoLower).String(first[0])
	return strings.Join(first, "")
}

// Slugify lowercases, strips diacritics ("Zvon Marie – 1920" -> "zvon-marie-1920").
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = cases.Lower(language.Und).String(stripped)

	var b strings.Builder
	dash := false
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
