package harvest

import (
	"strings"
	"time"

	"github.com/keywordscout/keywordscout/internal/geo"
)

// Variant template placeholders.
const (
	seedPlaceholder = "{seed}"
	yearPlaceholder = "{year}"
	geoPlaceholder  = "{geo}"
)

// soupChars are the alphabet-soup suffixes appended when enabled.
const soupChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// DefaultVariantTemplates is the tuned expansion set: course, how-to, and
// definitional prefixes that historically produced the most suggestions,
// commercial and transactional modifiers, current-year and geo qualifiers.
var DefaultVariantTemplates = []string{
	"curso {seed}",
	"{seed} curso",
	"como hacer {seed}",
	"que es {seed}",
	"mejor {seed}",
	"{seed} precio",
	"{seed} {year}",
	"{seed} {geo}",
	"guia {seed}",
	"{seed} profesional",
	"herramientas {seed}",
	"{seed} online",
	"{seed} gratis",
}

// VariantConfig controls deterministic variant generation.
type VariantConfig struct {
	// Templates expand each seed; {seed}, {year}, and {geo} are
	// substituted. Empty uses DefaultVariantTemplates.
	Templates []string `yaml:"templates"`

	// AlphabetSoup appends single-character suffixes (a-z, 0-9) to widen
	// autocomplete coverage.
	AlphabetSoup bool `yaml:"alphabet_soup"`
}

// GenerateVariants expands one seed into its query variants. The seed
// itself is always first; order follows the template list and duplicates
// are dropped, so the output is deterministic for a given seed, market,
// and year.
func GenerateVariants(seed string, cfg VariantConfig, market geo.Market, now time.Time) []string {
	templates := cfg.Templates
	if len(templates) == 0 {
		templates = DefaultVariantTemplates
	}
	year := now.Format("2006")

	variants := make([]string, 0, len(templates)+2)
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(seed)
	for _, tpl := range templates {
		expanded := strings.ReplaceAll(tpl, seedPlaceholder, seed)
		expanded = strings.ReplaceAll(expanded, yearPlaceholder, year)
		if strings.Contains(expanded, geoPlaceholder) {
			// One variant per leading place term of the target market.
			for _, place := range leadingPlaceTerms(market, 2) {
				add(strings.ReplaceAll(expanded, geoPlaceholder, place))
			}
			continue
		}
		add(expanded)
	}

	if cfg.AlphabetSoup {
		for _, ch := range soupChars {
			add(seed + " " + string(ch))
		}
	}
	return variants
}

func leadingPlaceTerms(market geo.Market, n int) []string {
	terms := market.PlaceTerms
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
