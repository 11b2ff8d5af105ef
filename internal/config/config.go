// Package config loads and validates the pipeline configuration. Defaults
// are applied first, then an optional YAML file, then KWSCOUT_* environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keywordscout/keywordscout/internal/cluster"
	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/harvest"
	"github.com/keywordscout/keywordscout/internal/ratelimit"
	"github.com/keywordscout/keywordscout/internal/score"
)

// Config is the complete pipeline configuration.
type Config struct {
	Geo      string `yaml:"geo"`
	Language string `yaml:"language"`
	LogLevel string `yaml:"log_level"`

	Harvest    harvest.Config `yaml:"harvest"`
	RateLimit  RateLimit      `yaml:"rate_limit"`
	Dedup      Dedup          `yaml:"dedup"`
	Scoring    Scoring        `yaml:"scoring"`
	Patterns   Patterns       `yaml:"patterns"`
	Embeddings Embeddings     `yaml:"embeddings"`
	Clustering Clustering     `yaml:"clustering"`
	Store      Store          `yaml:"store"`
	Export     Export         `yaml:"export"`
}

// Patterns carries the ordered pattern tables as data: the intent
// classification table and the degraded-mode topic buckets. Both are walked
// in list order with first match wins.
type Patterns struct {
	Intent  []score.IntentPattern   `yaml:"intent"`
	Buckets []cluster.BucketPattern `yaml:"buckets"`
}

// RateLimit mirrors ratelimit.Config with string durations for YAML.
type RateLimit struct {
	MinDelay       string  `yaml:"min_delay"`
	MaxDelay       string  `yaml:"max_delay"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
	MaxBackoff     string  `yaml:"max_backoff"`
	RetryLimit     int     `yaml:"retry_limit"`
	RequestTimeout string  `yaml:"request_timeout"`
}

// Build converts the YAML form into a ratelimit.Config. Unparseable
// durations fall back to the limiter defaults.
func (r RateLimit) Build() ratelimit.Config {
	def := ratelimit.DefaultConfig()
	cfg := ratelimit.Config{
		MinDelay:       parseDuration(r.MinDelay, def.MinDelay),
		MaxDelay:       parseDuration(r.MaxDelay, def.MaxDelay),
		MaxConcurrent:  r.MaxConcurrent,
		BackoffFactor:  r.BackoffFactor,
		MaxBackoff:     parseDuration(r.MaxBackoff, def.MaxBackoff),
		RetryLimit:     r.RetryLimit,
		RequestTimeout: parseDuration(r.RequestTimeout, def.RequestTimeout),
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = def.RetryLimit
	}
	return cfg
}

// Dedup configures the deduplication stage.
type Dedup struct {
	// SimilarityThreshold is the fuzzy-duplicate cutoff in (0,1].
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Scoring selects the scoring mode and its weight tables.
type Scoring struct {
	Mode         string                   `yaml:"mode"`
	Ensemble     score.EnsembleWeights    `yaml:"ensemble_weights"`
	Standardized score.StandardizedConfig `yaml:"standardized"`
	Guardrails   score.GuardrailConfig    `yaml:"guardrails"`
}

// Embeddings configures the embedding provider for clustering.
type Embeddings struct {
	// Provider is "static", "http", or "none". "none" disables
	// embedding-based clustering entirely.
	Provider   string `yaml:"provider"`
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	CachePath  string `yaml:"cache_path"`
}

// Clustering configures the cluster engine.
type Clustering struct {
	TargetClusters  int     `yaml:"target_clusters"`
	SilhouetteFloor float64 `yaml:"silhouette_floor"`
	Epsilon         float64 `yaml:"epsilon"`
	Seed            int64   `yaml:"seed"`
}

// Store configures keyword persistence. An empty path disables it.
type Store struct {
	Path string `yaml:"path"`
}

// Export configures CSV artifacts. An empty dir disables them.
type Export struct {
	Dir string `yaml:"dir"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Geo:      geo.DefaultCode,
		Language: "es",
		LogLevel: "info",
		Harvest:  harvest.DefaultHarvestConfig(),
		Dedup:    Dedup{SimilarityThreshold: 0.85},
		Scoring: Scoring{
			Mode:         string(score.ModeEnsemble),
			Ensemble:     score.DefaultEnsembleWeights(),
			Standardized: score.DefaultStandardizedConfig(),
			Guardrails:   score.DefaultGuardrailConfig(),
		},
		Patterns: Patterns{
			Intent:  score.DefaultIntentPatterns(),
			Buckets: cluster.DefaultBucketPatterns(),
		},
		Embeddings: Embeddings{
			Provider:  "static",
			CacheSize: 2000,
		},
		Clustering: Clustering{
			SilhouetteFloor: 0.1,
			Epsilon:         0.35,
			Seed:            42,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is fine when path is empty), then environment overrides,
// then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, scouterr.ConfigError(fmt.Sprintf("read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, scouterr.ConfigError(fmt.Sprintf("parse config %s", path), err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies KWSCOUT_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KWSCOUT_GEO"); v != "" {
		c.Geo = v
	}
	if v := os.Getenv("KWSCOUT_SCORING_MODE"); v != "" {
		c.Scoring.Mode = v
	}
	envWeight("KWSCOUT_WEIGHT_TREND", &c.Scoring.Ensemble.Trend)
	envWeight("KWSCOUT_WEIGHT_VOLUME", &c.Scoring.Ensemble.Volume)
	envWeight("KWSCOUT_WEIGHT_INTENT", &c.Scoring.Ensemble.Intent)
	envWeight("KWSCOUT_WEIGHT_GEO", &c.Scoring.Ensemble.Geo)
	envWeight("KWSCOUT_WEIGHT_SERP", &c.Scoring.Ensemble.SERPOpportunity)
	envWeight("KWSCOUT_WEIGHT_CENTRALITY", &c.Scoring.Ensemble.ClusterCentrality)
	envWeight("KWSCOUT_WEIGHT_FRESHNESS", &c.Scoring.Ensemble.Freshness)
}

// Validate rejects configurations the pipeline cannot run with. Weight-sum
// violations surface the dedicated weights error so callers can present the
// actual sum.
func (c *Config) Validate() error {
	switch score.Mode(c.Scoring.Mode) {
	case score.ModeEnsemble:
		if sum := c.Scoring.Ensemble.Sum(); sum < 0.999 || sum > 1.001 {
			return scouterr.WeightsError(sum)
		}
	case score.ModeStandardized:
		// Detailed validation happens in the scoring engine.
	default:
		return scouterr.ConfigError("unknown scoring mode: "+c.Scoring.Mode, nil)
	}

	if t := c.Dedup.SimilarityThreshold; t <= 0 || t > 1 {
		return scouterr.ConfigError(
			fmt.Sprintf("similarity threshold must be in (0,1], got %.3f", t), nil)
	}

	if _, err := score.CompileIntentPatterns(c.Patterns.Intent); err != nil {
		return scouterr.ConfigError("intent pattern table", err)
	}
	if _, err := cluster.CompileBucketPatterns(c.Patterns.Buckets); err != nil {
		return scouterr.ConfigError("bucket pattern table", err)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "static", "http", "none", "":
	default:
		return scouterr.ConfigError("unknown embeddings provider: "+c.Embeddings.Provider, nil)
	}
	return nil
}

// ScoringConfig converts the YAML scoring section into a score.Config.
func (c *Config) ScoringConfig() score.Config {
	return score.Config{
		Mode:         score.Mode(c.Scoring.Mode),
		Geo:          c.Geo,
		Language:     c.Language,
		Ensemble:     c.Scoring.Ensemble,
		Standardized: c.Scoring.Standardized,
		Guardrails:   c.Scoring.Guardrails,
		Intent:       c.Patterns.Intent,
	}
}

func envWeight(name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = f
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
