// Package score ranks keyword candidates. It offers two modes: the default
// percentile-rank ensemble with post-hoc guardrails, and a frozen
// standardized formula with per-market min-max normalization. Scored
// keywords are immutable; re-scoring a batch produces new values.
package score

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

// Mode selects the scoring formula.
type Mode string

const (
	// ModeEnsemble is the default percentile-rank ensemble with guardrails.
	ModeEnsemble Mode = "ensemble"
	// ModeStandardized is the frozen v1.0.0 min-max formula.
	ModeStandardized Mode = "standardized"
)

// Input is one candidate with its externally sourced raw signals. Zero
// values are valid: missing providers leave volume/trend/competition at
// their neutral defaults upstream.
type Input struct {
	keyword.Candidate

	Volume      int
	TrendScore  float64 // 0-100
	Competition float64 // 0-1

	// IntentProbability is the optional P(transactional) used by
	// standardized-mode re-ranking. Zero disables re-ranking for this
	// keyword.
	IntentProbability float64
}

// Config configures an Engine.
type Config struct {
	Mode         Mode
	Geo          string
	Language     string
	Ensemble     EnsembleWeights
	Standardized StandardizedConfig
	Guardrails   GuardrailConfig

	// Intent is the ordered intent pattern table. Empty uses the
	// defaults.
	Intent []IntentPattern
}

// DefaultConfig returns an ensemble-mode configuration for the default
// market.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeEnsemble,
		Geo:          geo.DefaultCode,
		Language:     "es",
		Ensemble:     DefaultEnsembleWeights(),
		Standardized: DefaultStandardizedConfig(),
		Guardrails:   DefaultGuardrailConfig(),
	}
}

// Engine scores batches of candidates. Safe for concurrent use; all state
// is set at construction.
type Engine struct {
	mode     Mode
	market   geo.Market
	language string
	weights  EnsembleWeights
	std      StandardizedConfig
	guard    GuardrailConfig
	intent   *IntentTable
	calc     *SignalCalculator
	now      func() time.Time
}

// NewEngine validates cfg and builds an engine. Weight sets not summing to
// 1.0 within a 0.001 tolerance are rejected with a validation error, for
// whichever mode is selected.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeEnsemble
	}
	switch cfg.Mode {
	case ModeEnsemble:
		if sum := cfg.Ensemble.Sum(); sum < 0.999 || sum > 1.001 {
			return nil, scouterr.WeightsError(sum)
		}
	case ModeStandardized:
		if err := validateStandardized(cfg.Standardized); err != nil {
			return nil, err
		}
	default:
		return nil, scouterr.ValidationError("unknown scoring mode: "+string(cfg.Mode), nil)
	}

	intent, err := CompileIntentPatterns(cfg.Intent)
	if err != nil {
		return nil, err
	}

	market := geo.Lookup(cfg.Geo)
	calc := NewSignalCalculator(market)
	calc.intent = intent
	e := &Engine{
		mode:     cfg.Mode,
		market:   market,
		language: cfg.Language,
		weights:  cfg.Ensemble,
		std:      cfg.Standardized,
		guard:    cfg.Guardrails,
		intent:   intent,
		calc:     calc,
		now:      time.Now,
	}
	slog.Info("scoring engine ready", "mode", e.mode, "geo", market.Code, "language", e.language)
	return e, nil
}

// enrichedSignals bundles a candidate's signals with the derived values the
// formulas consume.
type enrichedSignals struct {
	keyword.Signals

	trendNorm    float64
	volumeNorm   float64
	relevanceRaw float64
}

// scoredEntry pairs an input with its score during batch processing.
type scoredEntry struct {
	input   Input
	signals enrichedSignals
	score   float64

	penalties []string
	bonuses   []string
}

// ScoreBatch scores a batch of candidates and returns them sorted by final
// score descending. Percentile ranks and market norms are computed within
// the batch, so the batch is the unit of comparability. An empty batch
// returns an empty slice.
func (e *Engine) ScoreBatch(inputs []Input) []keyword.ScoredKeyword {
	if len(inputs) == 0 {
		return []keyword.ScoredKeyword{}
	}

	entries := make([]scoredEntry, len(inputs))
	for i, in := range inputs {
		s := e.calc.Compute(in)
		entries[i] = scoredEntry{
			input: in,
			signals: enrichedSignals{
				Signals:      s,
				trendNorm:    NormalizeTrend(s.TrendScore),
				volumeNorm:   NormalizeVolumeLog(s.VolumeEstimate),
				relevanceRaw: e.intent.relevance(in.NormalizedText),
			},
		}
	}

	switch e.mode {
	case ModeStandardized:
		e.scoreStandardized(entries)
	default:
		e.scoreEnsemble(entries)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	scoredAt := e.now()
	out := make([]keyword.ScoredKeyword, len(entries))
	for i, entry := range entries {
		out[i] = keyword.ScoredKeyword{
			Candidate:        entry.input.Candidate,
			Signals:          entry.signals.Signals,
			FinalScore:       clampFloat(entry.score, 0, 100),
			AppliedPenalties: entry.penalties,
			AppliedBonuses:   entry.bonuses,
			Geo:              e.market.Code,
			Language:         e.language,
			ScoredAt:         scoredAt,
		}
	}

	slog.Info("batch scored", "mode", e.mode, "keywords", len(out))
	return out
}

func (e *Engine) scoreEnsemble(entries []scoredEntry) {
	signals := make([]enrichedSignals, len(entries))
	for i := range entries {
		signals[i] = entries[i].signals
	}
	table := buildPercentileTable(signals)

	for i := range entries {
		lower := strings.ToLower(entries[i].input.NormalizedText)
		raw := ensembleScore(entries[i].signals, table, e.weights)
		r := e.applyGuardrails(lower, entries[i].signals, raw)
		entries[i].score = r.score
		entries[i].penalties = r.penalties
		entries[i].bonuses = r.bonuses
	}
}

func (e *Engine) scoreStandardized(entries []scoredEntry) {
	signals := make([]enrichedSignals, len(entries))
	for i := range entries {
		signals[i] = entries[i].signals
	}
	norms := computeMarketNorms(signals, e.market.Code, e.language)

	for i := range entries {
		entries[i].score = standardizedScore(entries[i].signals, norms, e.std)
	}

	if e.std.IntentEnabled {
		if n := rerankByIntent(entries, e.std); n > 0 {
			slog.Info("intent re-ranking applied", "keywords", n)
		}
	}
}

// MarketNormsFor exposes the min-max bounds the standardized mode would use
// for a batch, for run reports and audits.
func (e *Engine) MarketNormsFor(inputs []Input) MarketNorms {
	if len(inputs) == 0 {
		return defaultMarketNorms(e.market.Code, e.language)
	}
	signals := make([]enrichedSignals, len(inputs))
	for i, in := range inputs {
		s := e.calc.Compute(in)
		signals[i] = enrichedSignals{Signals: s, relevanceRaw: e.intent.relevance(in.NormalizedText)}
	}
	return computeMarketNorms(signals, e.market.Code, e.language)
}
