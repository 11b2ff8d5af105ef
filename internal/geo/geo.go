// Package geo holds the per-country targeting table: suggestion request
// parameters, local place-name terms, and irrelevant-term blocklists.
package geo

import (
	"log/slog"
	"strings"
)

// Market describes request targeting and scoring terms for one country.
type Market struct {
	Code string
	Name string

	// HL is the host-language request parameter.
	HL string
	// GL is the geo-location request parameter (empty for global).
	GL string
	// LR is the language-restrict request parameter.
	LR string

	// PlaceTerms are local place names that grant the full geo weight.
	PlaceTerms []string

	// IrrelevantTerms trigger the blocklist guardrail penalty.
	IrrelevantTerms []string
}

// DefaultCode is the market used when an unsupported code is requested.
const DefaultCode = "PE"

var markets = map[string]Market{
	"PE": {
		Code: "PE", Name: "Peru", HL: "es-PE", GL: "PE", LR: "lang_es",
		PlaceTerms:      []string{"lima", "perú", "peru", "arequipa", "trujillo", "cusco"},
		IrrelevantTerms: []string{"sepe", "santander", "utn", "sena"},
	},
	"ES": {
		Code: "ES", Name: "Spain", HL: "es-ES", GL: "ES", LR: "lang_es",
		PlaceTerms:      []string{"madrid", "barcelona", "valencia", "sevilla", "españa"},
		IrrelevantTerms: []string{"conacyt", "unam", "ipn"},
	},
	"MX": {
		Code: "MX", Name: "Mexico", HL: "es-MX", GL: "MX", LR: "lang_es",
		PlaceTerms:      []string{"mexico", "méxico", "cdmx", "guadalajara", "monterrey"},
		IrrelevantTerms: []string{"sunat", "reniec", "essalud"},
	},
	"AR": {
		Code: "AR", Name: "Argentina", HL: "es-AR", GL: "AR", LR: "lang_es",
		PlaceTerms: []string{"argentina", "buenos aires", "córdoba", "rosario"},
	},
	"CO": {
		Code: "CO", Name: "Colombia", HL: "es-CO", GL: "CO", LR: "lang_es",
		PlaceTerms: []string{"colombia", "bogotá", "medellín", "cali"},
	},
	"CL": {
		Code: "CL", Name: "Chile", HL: "es-CL", GL: "CL", LR: "lang_es",
		PlaceTerms: []string{"chile", "santiago", "valparaíso", "concepción"},
	},
	"US": {
		Code: "US", Name: "United States", HL: "en-US", GL: "US", LR: "lang_en",
	},
	"GLOBAL": {
		Code: "GLOBAL", Name: "Global", HL: "es", GL: "", LR: "lang_es",
	},
}

// Lookup returns the market for code, falling back to the default market
// for unsupported codes.
func Lookup(code string) Market {
	m, ok := markets[strings.ToUpper(code)]
	if !ok {
		slog.Warn("unsupported country code, using default", "code", code, "default", DefaultCode)
		return markets[DefaultCode]
	}
	return m
}

// Supported reports whether code has an entry in the market table.
func Supported(code string) bool {
	_, ok := markets[strings.ToUpper(code)]
	return ok
}

// QueryParams returns the request parameters for this market, omitting
// empty values (GLOBAL has no gl).
func (m Market) QueryParams() map[string]string {
	params := map[string]string{"hl": m.HL, "lr": m.LR}
	if m.GL != "" {
		params["gl"] = m.GL
	}
	return params
}

// ContainsPlaceTerm reports whether text mentions one of the market's
// local place names. Matching is substring-based on lower-cased text.
func (m Market) ContainsPlaceTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range m.PlaceTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ContainsIrrelevantTerm reports whether text matches the market's
// irrelevant-term blocklist.
func (m Market) ContainsIrrelevantTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range m.IrrelevantTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
