package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/keywordscout/keywordscout/internal/dedup"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

// Default endpoint hosts. Overridable in Config for tests.
const (
	DefaultSuggestHost = "https://suggestqueries.google.com"
	DefaultSearchHost  = "https://www.google.com"
)

// Autocomplete fetches generic autocomplete suggestions for one query.
// The endpoint answers a JSON array whose second element is the suggestion
// list.
func (h *Harvester) autocomplete(ctx context.Context, query string) ([]string, error) {
	return h.suggest(ctx, query, false)
}

// videoSuggestions fetches video-platform autocomplete (ds=yt) for one
// query.
func (h *Harvester) videoSuggestions(ctx context.Context, query string) ([]string, error) {
	return h.suggest(ctx, query, true)
}

func (h *Harvester) suggest(ctx context.Context, query string, video bool) ([]string, error) {
	source := string(keyword.ChannelAutocomplete)
	if video {
		source = string(keyword.ChannelVideo)
	}

	params := url.Values{}
	params.Set("client", "chrome")
	params.Set("q", query)
	for key, value := range h.market.QueryParams() {
		params.Set(key, value)
	}
	if video {
		params.Set("ds", "yt")
	}
	endpoint := h.cfg.SuggestHost + "/complete/search?" + params.Encode()

	body, err := h.client.Fetch(ctx, endpoint, source)
	if err != nil {
		return nil, err
	}
	return parseSuggestResponse(body, query)
}

// parseSuggestResponse decodes the suggest JSON payload:
// ["query", ["suggestion", ...], ...]. Anything else is a malformed
// response.
func parseSuggestResponse(body, query string) ([]string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("malformed suggest response for %q: %w", query, err)
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("suggest response for %q has no suggestion list", query)
	}

	var suggestions []string
	if err := json.Unmarshal(payload[1], &suggestions); err != nil {
		return nil, fmt.Errorf("suggest response for %q: suggestion list: %w", query, err)
	}

	filtered := filterSuggestions(suggestions)
	slog.Debug("suggestions received", "query", query, "count", len(filtered))
	return filtered, nil
}

// filterSuggestions applies the basic validity filter and drops exact
// case-insensitive duplicates, preserving order. Full normalization and
// fuzzy dedup happen later in the pipeline.
func filterSuggestions(suggestions []string) []string {
	out := make([]string, 0, len(suggestions))
	seen := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		normalized := dedup.Normalize(s)
		if !dedup.Valid(normalized) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, s)
	}
	return out
}
