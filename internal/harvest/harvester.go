// Package harvest expands seed queries into raw keyword suggestions by
// fanning out over the autocomplete, video-autocomplete, and
// related-searches channels through a throttled HTTP client.
package harvest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/keyword"
	"github.com/keywordscout/keywordscout/internal/ratelimit"
)

// Defaults for harvest configuration.
const (
	DefaultMaxConcurrency    = 3
	DefaultVideoVariantLimit = 5
)

// Config controls seed expansion.
type Config struct {
	// SuggestHost and SearchHost override the default endpoints; tests
	// point them at a local server.
	SuggestHost string `yaml:"suggest_host"`
	SearchHost  string `yaml:"search_host"`

	// Variants controls deterministic variant generation per seed.
	Variants VariantConfig `yaml:"variants"`

	// MaxConcurrency bounds the per-seed fan-out.
	MaxConcurrency int `yaml:"max_concurrency"`

	// VideoVariantLimit caps how many variants are sent to the video
	// channel, which yields diminishing returns past the first few.
	VideoVariantLimit int `yaml:"video_variant_limit"`
}

// DefaultHarvestConfig returns the tuned expansion defaults.
func DefaultHarvestConfig() Config {
	return Config{
		SuggestHost:       DefaultSuggestHost,
		SearchHost:        DefaultSearchHost,
		MaxConcurrency:    DefaultMaxConcurrency,
		VideoVariantLimit: DefaultVideoVariantLimit,
	}
}

// Harvester expands seeds across all suggestion channels. A channel that
// hits a challenge page is disabled for the remainder of the run and
// recorded as a degraded source.
type Harvester struct {
	client *Client
	market geo.Market
	cfg    Config

	mu       sync.Mutex
	disabled map[keyword.Channel]bool
	degraded []string

	now func() time.Time
}

// New builds a harvester over an existing throttled client.
func New(client *Client, market geo.Market, cfg Config) *Harvester {
	if cfg.SuggestHost == "" {
		cfg.SuggestHost = DefaultSuggestHost
	}
	if cfg.SearchHost == "" {
		cfg.SearchHost = DefaultSearchHost
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.VideoVariantLimit <= 0 {
		cfg.VideoVariantLimit = DefaultVideoVariantLimit
	}
	return &Harvester{
		client:   client,
		market:   market,
		cfg:      cfg,
		disabled: make(map[keyword.Channel]bool),
		now:      time.Now,
	}
}

// Expand harvests suggestions for every seed. The result maps seed text to
// its raw suggestions merged in channel order: autocomplete, video,
// related. Cancellation stops issuing new requests and returns what was
// collected so far.
func (h *Harvester) Expand(ctx context.Context, seeds []keyword.SeedQuery) map[string][]keyword.RawSuggestion {
	results := make(map[string][]keyword.RawSuggestion, len(seeds))

	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}
		variants := GenerateVariants(seed.Text, h.cfg.Variants, h.market, h.now())
		slog.Info("expanding seed", "seed", seed.Text, "variants", len(variants))

		collected, err := h.fanOut(ctx, seed.Text, variants)
		if err != nil && ctx.Err() == nil {
			slog.Warn("parallel fan-out failed, retrying sequentially",
				"seed", seed.Text, "error", err)
			collected = h.sequential(ctx, seed.Text, variants)
		}
		results[seed.Text] = collected
	}
	return results
}

// DegradedSources lists channels disabled during this run, in the order
// they were disabled.
func (h *Harvester) DegradedSources() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.degraded))
	copy(out, h.degraded)
	return out
}

// Stats exposes the underlying limiter counters.
func (h *Harvester) Stats() ratelimit.Stats {
	return h.client.Stats()
}

// fanOut runs one seed's channel requests in parallel, bounded by the
// configured concurrency. Per-variant failures are tolerated; a network
// error that survived all retries aborts the fan-out so the caller can
// fall back to sequential processing.
func (h *Harvester) fanOut(ctx context.Context, seed string, variants []string) ([]keyword.RawSuggestion, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.MaxConcurrency)

	auto := make([][]string, len(variants))
	videoVariants := variants
	if len(videoVariants) > h.cfg.VideoVariantLimit {
		videoVariants = videoVariants[:h.cfg.VideoVariantLimit]
	}
	video := make([][]string, len(videoVariants))
	var related []string

	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			if h.channelDisabled(keyword.ChannelAutocomplete) {
				return nil
			}
			texts, err := h.autocomplete(gctx, v)
			return h.recordOutcome(keyword.ChannelAutocomplete, v, &auto[i], texts, err)
		})
	}
	for i, v := range videoVariants {
		i, v := i, v
		g.Go(func() error {
			if h.channelDisabled(keyword.ChannelVideo) {
				return nil
			}
			texts, err := h.videoSuggestions(gctx, v)
			return h.recordOutcome(keyword.ChannelVideo, v, &video[i], texts, err)
		})
	}
	g.Go(func() error {
		if h.channelDisabled(keyword.ChannelRelated) {
			return nil
		}
		texts, err := h.relatedSearches(gctx, seed)
		return h.recordOutcome(keyword.ChannelRelated, seed, &related, texts, err)
	})

	err := g.Wait()
	return h.merge(seed, auto, video, related), err
}

// sequential is the degraded path: one request at a time, every failure
// tolerated, stopping only on cancellation.
func (h *Harvester) sequential(ctx context.Context, seed string, variants []string) []keyword.RawSuggestion {
	auto := make([][]string, len(variants))
	video := make([][]string, 0, h.cfg.VideoVariantLimit)
	var related []string

	for i, v := range variants {
		if ctx.Err() != nil {
			return h.merge(seed, auto, video, related)
		}
		if h.channelDisabled(keyword.ChannelAutocomplete) {
			break
		}
		texts, err := h.autocomplete(ctx, v)
		h.tolerate(keyword.ChannelAutocomplete, v, err)
		auto[i] = texts
	}
	for i, v := range variants {
		if i >= h.cfg.VideoVariantLimit || ctx.Err() != nil {
			break
		}
		if h.channelDisabled(keyword.ChannelVideo) {
			break
		}
		texts, err := h.videoSuggestions(ctx, v)
		h.tolerate(keyword.ChannelVideo, v, err)
		video = append(video, texts)
	}
	if ctx.Err() == nil && !h.channelDisabled(keyword.ChannelRelated) {
		texts, err := h.relatedSearches(ctx, seed)
		h.tolerate(keyword.ChannelRelated, seed, err)
		related = texts
	}
	return h.merge(seed, auto, video, related)
}

// recordOutcome stores a task's result and classifies its error: captcha
// disables the channel, an exhausted network retry budget is unrecoverable,
// anything else is logged and skipped.
func (h *Harvester) recordOutcome(ch keyword.Channel, query string, dst *[]string, texts []string, err error) error {
	if err == nil {
		*dst = texts
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch scouterr.GetCode(err) {
	case scouterr.ErrCodeCaptchaDetected:
		h.disableChannel(ch)
		return nil
	case scouterr.ErrCodeNetworkTimeout:
		return err
	default:
		slog.Debug("channel request failed", "channel", ch, "query", query, "error", err)
		return nil
	}
}

// tolerate handles an error on the sequential path, where only captcha has
// a lasting effect.
func (h *Harvester) tolerate(ch keyword.Channel, query string, err error) {
	if err == nil {
		return
	}
	if scouterr.GetCode(err) == scouterr.ErrCodeCaptchaDetected {
		h.disableChannel(ch)
		return
	}
	slog.Debug("channel request failed", "channel", ch, "query", query, "error", err)
}

// merge flattens channel results into raw suggestions in the fixed channel
// order so downstream first-occurrence dedup is deterministic.
func (h *Harvester) merge(seed string, auto, video [][]string, related []string) []keyword.RawSuggestion {
	var out []keyword.RawSuggestion
	appendTexts := func(texts []string, ch keyword.Channel) {
		for _, t := range texts {
			out = append(out, keyword.RawSuggestion{Text: t, SourceSeed: seed, Source: ch})
		}
	}
	for _, texts := range auto {
		appendTexts(texts, keyword.ChannelAutocomplete)
	}
	for _, texts := range video {
		appendTexts(texts, keyword.ChannelVideo)
	}
	appendTexts(related, keyword.ChannelRelated)
	return out
}

func (h *Harvester) channelDisabled(ch keyword.Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disabled[ch]
}

func (h *Harvester) disableChannel(ch keyword.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disabled[ch] {
		return
	}
	h.disabled[ch] = true
	h.degraded = append(h.degraded, string(ch))
	slog.Warn("challenge page detected, disabling channel for this run", "channel", ch)
}
