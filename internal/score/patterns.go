package score

import (
	"fmt"
	"regexp"
	"strings"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
)

// Intent categories recognized by the pattern table.
const (
	CategoryTransactional = "transactional"
	CategoryCommercial    = "commercial"
)

// Intent weights by conversion value. Everything the pattern table does not
// claim is informational.
const (
	IntentTransactional = 1.0
	IntentCommercial    = 0.7
	IntentInformational = 0.4
)

// IntentPattern is one entry in the ordered intent classification table.
// Tables are data: they load from configuration and are walked in order,
// first match wins.
type IntentPattern struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// DefaultIntentPatterns returns the built-in intent table. Transactional
// entries come first so they win over commercial ones when both match.
func DefaultIntentPatterns() []IntentPattern {
	return []IntentPattern{
		// Direct conversion value: hiring a provider, buying, or a
		// service paired with a location.
		{Pattern: `\b(agencia|empresa|consultor|servicio)\b`, Category: CategoryTransactional},
		{Pattern: `\b(contratar|comprar|solicitar)\b`, Category: CategoryTransactional},
		{Pattern: `\b(lima|perú|madrid)\b.*\b(marketing|seo|publicidad)\b`, Category: CategoryTransactional},
		{Pattern: `\bpara (pymes|empresas|negocios)\b`, Category: CategoryTransactional},
		// Research-stage queries with medium value.
		{Pattern: `\b(precio|costo|mejor|top|comparar)\b`, Category: CategoryCommercial},
		{Pattern: `\b(curso|clase|diplomado|certificado)\b`, Category: CategoryCommercial},
		{Pattern: `\b(herramientas|software|plataforma)\b`, Category: CategoryCommercial},
		{Pattern: `\b(gratis|barato|oferta)\b`, Category: CategoryCommercial},
	}
}

type intentEntry struct {
	re       *regexp.Regexp
	category string
	weight   float64
}

// IntentTable is a compiled, ordered intent pattern table.
type IntentTable struct {
	entries []intentEntry
}

// CompileIntentPatterns compiles patterns into a table, preserving order.
// An empty list compiles the defaults. Invalid regexes and unknown
// categories are validation errors.
func CompileIntentPatterns(patterns []IntentPattern) (*IntentTable, error) {
	if len(patterns) == 0 {
		patterns = DefaultIntentPatterns()
	}

	entries := make([]intentEntry, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, scouterr.ValidationError(
				fmt.Sprintf("intent pattern %q does not compile", p.Pattern), err)
		}
		var weight float64
		switch p.Category {
		case CategoryTransactional:
			weight = IntentTransactional
		case CategoryCommercial:
			weight = IntentCommercial
		default:
			return nil, scouterr.ValidationError(
				"unknown intent category: "+p.Category, nil)
		}
		entries = append(entries, intentEntry{re: re, category: p.Category, weight: weight})
	}
	return &IntentTable{entries: entries}, nil
}

// Weight classifies a lower-cased keyword by search intent and returns its
// conversion-value weight. Entries are walked in order; first match wins.
func (t *IntentTable) Weight(keywordLower string) float64 {
	if keywordLower == "" {
		return IntentInformational
	}
	for _, e := range t.entries {
		if e.re.MatchString(keywordLower) {
			return e.weight
		}
	}
	return IntentInformational
}

// matchesCategory reports whether any entry of the given category matches.
func (t *IntentTable) matchesCategory(keywordLower, category string) bool {
	for _, e := range t.entries {
		if e.category == category && e.re.MatchString(keywordLower) {
			return true
		}
	}
	return false
}

// defaultIntentTable backs the package-level helpers; the defaults always
// compile.
var defaultIntentTable = func() *IntentTable {
	t, err := CompileIntentPatterns(nil)
	if err != nil {
		panic(err)
	}
	return t
}()

// IntentWeight classifies a lower-cased keyword against the default intent
// table.
func IntentWeight(keywordLower string) float64 {
	return defaultIntentTable.Weight(keywordLower)
}

// Term lists used by the cheap SERP-difficulty and centrality estimators.
var (
	// strongBrands raise estimated difficulty: their branded SERPs are
	// hard to displace.
	strongBrands = []string{"google", "facebook", "amazon", "microsoft", "adobe", "hubspot"}

	// commercialDifficultyTerms each add a small difficulty increment.
	commercialDifficultyTerms = []string{"curso", "precio", "mejor", "top", "gratis"}

	// coreDomainTerms raise estimated cluster centrality.
	coreDomainTerms = []string{"marketing", "seo", "publicidad", "digital", "online"}

	// trendyTerms get a freshness boost independent of the calendar.
	trendyTerms = []string{"ia", "inteligencia artificial", "automation", "chatbot", "saas"}

	// seasonalTerms get a freshness boost during Q4 only.
	seasonalTerms = []string{"navidad", "año nuevo", "black friday", "cyber monday"}
)

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func countMatches(s string, terms []string) int {
	n := 0
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			n++
		}
	}
	return n
}
