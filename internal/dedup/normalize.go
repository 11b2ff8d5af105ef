// Package dedup normalizes raw suggestion strings and removes exact and
// near-duplicate candidates in two passes: a basic cleaning pass and a
// fuzzy-similarity pass.
package dedup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// disallowedRunes removes everything except letters, digits, spaces,
	// and hyphens. Accented Latin letters are letters and survive.
	disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)

	yearToken      = regexp.MustCompile(`\b20\d{2}\b`)
	multiSpace     = regexp.MustCompile(`\s+`)
	multiHyphen    = regexp.MustCompile(`-+`)
	spacedHyphen   = regexp.MustCompile(`\s*-\s*`)
	urlFragments   = []string{"http", "www", ".com", "@"}
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// stopWords are function words ignored when building comparison keys.
// They carry no discriminating power between near-duplicate queries.
var stopWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "en": {}, "y": {}, "a": {},
	"para": {}, "con": {}, "del": {}, "las": {}, "los": {},
	"the": {}, "of": {}, "for": {}, "and": {}, "in": {}, "to": {},
}

// CleanText applies the basic cleaning pass to a single string: Unicode
// normalization, disallowed-character removal, year-token stripping, and
// whitespace/hyphen collapsing. Casing and diacritics are preserved so the
// result is suitable as display text.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	s = disallowedRunes.ReplaceAllString(s, "")
	s = yearToken.ReplaceAllString(s, "")
	s = spacedHyphen.ReplaceAllString(s, " ")
	s = multiHyphen.ReplaceAllString(s, "-")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Normalize is the case-folded form of CleanText, used for exact duplicate
// detection and as a candidate's unique normalized text.
func Normalize(s string) string {
	return strings.ToLower(CleanText(s))
}

// Valid reports whether a cleaned string is a usable candidate. Rejects
// empty, too short/long, purely numeric, and URL-like strings.
func Valid(s string) bool {
	n := len([]rune(s))
	if n < 3 || n > 100 {
		return false
	}
	if isNumeric(s) {
		return false
	}
	for _, frag := range urlFragments {
		if strings.Contains(s, frag) {
			return false
		}
	}
	return true
}

// ComparisonKey builds the normalized key used for fuzzy duplicate
// detection: basic cleaning plus accent removal, simple plural-suffix
// stripping, and stopword removal. The key is for comparison only and is
// never shown to users.
func ComparisonKey(s string) string {
	cleaned := Normalize(s)
	if stripped, _, err := transform.String(accentStripper, cleaned); err == nil {
		cleaned = stripped
	}

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		w = stripPluralSuffix(w)
		if _, stop := stopWords[w]; stop || w == "" {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// stripPluralSuffix removes simple Spanish/English plural endings.
func stripPluralSuffix(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "es"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func isNumeric(s string) bool {
	seen := false
	for _, r := range s {
		if r == ' ' {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}
