package score

// Guardrail labels recorded on scored keywords for auditability.
const (
	PenaltyTooGeneric         = "too_generic"
	PenaltyInformationalNoGeo = "informational_no_geo"
	PenaltyIrrelevantLocal    = "irrelevant_local_terms"
	BonusOptimalLongtail      = "optimal_longtail"
)

// GuardrailConfig holds the post-ensemble score adjustments. Magnitudes are
// configurable; the defaults were tuned against manual review of top-50
// output.
type GuardrailConfig struct {
	// TooGenericPenalty is subtracted from single-word keywords.
	TooGenericPenalty float64 `yaml:"too_generic_penalty"`

	// OptimalLongtailBonus is added for 3-5 word keywords.
	OptimalLongtailBonus float64 `yaml:"optimal_longtail_bonus"`

	// InformationalNoGeoPenalty is subtracted when intent weight is at the
	// informational level and no geo targeting is present.
	InformationalNoGeoPenalty float64 `yaml:"informational_no_geo_penalty"`

	// IrrelevantLocalPenalty is subtracted when the keyword mentions a
	// blocklisted term for the target market.
	IrrelevantLocalPenalty float64 `yaml:"irrelevant_local_penalty"`
}

// DefaultGuardrailConfig returns the standard guardrail magnitudes.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		TooGenericPenalty:         10,
		OptimalLongtailBonus:      3,
		InformationalNoGeoPenalty: 8,
		IrrelevantLocalPenalty:    6,
	}
}

// guardrailResult is the adjusted score plus the labels of every guardrail
// that fired.
type guardrailResult struct {
	score     float64
	penalties []string
	bonuses   []string
}

// applyGuardrails adjusts an ensemble score for one keyword. Order is
// fixed: informational-without-geo, word-count, market blocklist. The final
// score is clamped at zero; the 100 upper bound holds by construction
// because the ensemble weights sum to 1 and the only positive adjustment is
// the long-tail bonus on scores that never start at 100.
func (e *Engine) applyGuardrails(lower string, s enrichedSignals, score float64) guardrailResult {
	r := guardrailResult{score: score}

	if s.IntentWeight <= IntentInformational && s.GeoWeight <= 0.6 {
		r.score -= e.guard.InformationalNoGeoPenalty
		r.penalties = append(r.penalties, PenaltyInformationalNoGeo)
	}

	switch wc := wordCount(lower); {
	case wc == 1:
		r.score -= e.guard.TooGenericPenalty
		r.penalties = append(r.penalties, PenaltyTooGeneric)
	case wc >= 3 && wc <= 5:
		r.score += e.guard.OptimalLongtailBonus
		r.bonuses = append(r.bonuses, BonusOptimalLongtail)
	}

	if e.market.ContainsIrrelevantTerm(lower) {
		r.score -= e.guard.IrrelevantLocalPenalty
		r.penalties = append(r.penalties, PenaltyIrrelevantLocal)
	}

	if r.score < 0 {
		r.score = 0
	}
	return r
}
