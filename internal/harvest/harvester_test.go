package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/keyword"
)

const relatedPage = `<html><body>
<div data-sgrd="true">
<a>curso seo online peru</a>
<a>mejor curso seo lima</a>
<a>curso seo precio</a>
</div>
</body></html>`

// suggestHandler answers both suggestion channels and the result page.
func suggestHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	switch r.URL.Path {
	case "/complete/search":
		if r.URL.Query().Get("ds") == "yt" {
			fmt.Fprintf(w, `["%s",["%s tutorial"]]`, q, q)
			return
		}
		fmt.Fprintf(w, `["%s",["%s consejos","%s avanzado"]]`, q, q, q)
	case "/search":
		_, _ = w.Write([]byte(relatedPage))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestHarvester(srv *httptest.Server, cfg Config) *Harvester {
	cfg.SuggestHost = srv.URL
	cfg.SearchHost = srv.URL
	return New(newTestClient(3), geo.Lookup("PE"), cfg)
}

func countBySource(suggestions []keyword.RawSuggestion) map[keyword.Channel]int {
	counts := make(map[keyword.Channel]int)
	for _, s := range suggestions {
		counts[s.Source]++
	}
	return counts
}

func TestExpandMergesChannelsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(suggestHandler))
	defer srv.Close()

	h := newTestHarvester(srv, Config{
		Variants:          VariantConfig{Templates: []string{"{seed} online"}},
		VideoVariantLimit: 1,
	})

	results := h.Expand(context.Background(), []keyword.SeedQuery{{Text: "seo", Geo: "PE", Language: "es"}})
	require.Contains(t, results, "seo")
	got := results["seo"]

	// Two autocomplete variants at two suggestions each, one video variant,
	// three related searches.
	counts := countBySource(got)
	assert.Equal(t, 4, counts[keyword.ChannelAutocomplete])
	assert.Equal(t, 1, counts[keyword.ChannelVideo])
	assert.Equal(t, 3, counts[keyword.ChannelRelated])

	// Channel order is fixed: autocomplete, video, related.
	assert.Equal(t, keyword.ChannelAutocomplete, got[0].Source)
	assert.Equal(t, "seo consejos", got[0].Text)
	assert.Equal(t, keyword.ChannelVideo, got[4].Source)
	assert.Equal(t, keyword.ChannelRelated, got[len(got)-1].Source)

	for _, s := range got {
		assert.Equal(t, "seo", s.SourceSeed)
	}
	assert.Empty(t, h.DegradedSources())
}

func TestRequestsCarryMarketTargeting(t *testing.T) {
	captured := make(map[string]url.Values)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured[r.URL.Path] = r.URL.Query()
		suggestHandler(w, r)
	}))
	defer srv.Close()

	h := newTestHarvester(srv, Config{})

	_, err := h.autocomplete(context.Background(), "seo")
	require.NoError(t, err)
	_, err = h.relatedSearches(context.Background(), "seo")
	require.NoError(t, err)

	// Both endpoints carry the market's full targeting set: host language,
	// geo location, and language restrict.
	for _, path := range []string{"/complete/search", "/search"} {
		params := captured[path]
		require.NotNil(t, params, path)
		assert.Equal(t, "es-PE", params.Get("hl"), path)
		assert.Equal(t, "PE", params.Get("gl"), path)
		assert.Equal(t, "lang_es", params.Get("lr"), path)
	}
}

func TestExpandDisablesVideoOnCaptcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ds") == "yt" {
			_, _ = w.Write([]byte("<html>detected unusual traffic</html>"))
			return
		}
		suggestHandler(w, r)
	}))
	defer srv.Close()

	h := newTestHarvester(srv, Config{
		Variants: VariantConfig{Templates: []string{"{seed} online"}},
	})

	results := h.Expand(context.Background(), []keyword.SeedQuery{{Text: "seo"}})
	got := results["seo"]

	counts := countBySource(got)
	assert.Zero(t, counts[keyword.ChannelVideo], "captcha silences the video channel")
	assert.Positive(t, counts[keyword.ChannelAutocomplete], "other channels keep working")
	assert.Equal(t, []string{"video"}, h.DegradedSources())
}

func TestExpandToleratesChannelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/complete/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		suggestHandler(w, r)
	}))
	defer srv.Close()

	h := newTestHarvester(srv, Config{
		Variants: VariantConfig{Templates: []string{"{seed} online"}},
	})

	results := h.Expand(context.Background(), []keyword.SeedQuery{{Text: "seo"}})
	got := results["seo"]

	counts := countBySource(got)
	assert.Zero(t, counts[keyword.ChannelAutocomplete])
	assert.Equal(t, 3, counts[keyword.ChannelRelated], "related channel unaffected")
	assert.Empty(t, h.DegradedSources(), "plain failures do not degrade a channel")
}

func TestExpandCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(suggestHandler))
	defer srv.Close()

	h := newTestHarvester(srv, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.Expand(ctx, []keyword.SeedQuery{{Text: "seo"}})
	assert.Empty(t, results, "no seeds are processed after cancellation")
}

func TestRecordOutcomeClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(suggestHandler))
	defer srv.Close()
	h := newTestHarvester(srv, Config{})

	var dst []string
	require.NoError(t, h.recordOutcome(keyword.ChannelAutocomplete, "q", &dst, []string{"curso seo"}, nil))
	assert.Equal(t, []string{"curso seo"}, dst)

	// Captcha disables the channel but does not abort the fan-out.
	err := h.recordOutcome(keyword.ChannelVideo, "q", &dst, nil, scouterr.CaptchaError("video"))
	assert.NoError(t, err)
	assert.True(t, h.channelDisabled(keyword.ChannelVideo))
	assert.Equal(t, []string{"video"}, h.DegradedSources())

	// An exhausted retry budget aborts so the caller can go sequential.
	netErr := scouterr.NetworkError("all attempts failed", nil)
	assert.Error(t, h.recordOutcome(keyword.ChannelAutocomplete, "q", &dst, nil, netErr))

	// Everything else is tolerated.
	assert.NoError(t, h.recordOutcome(keyword.ChannelAutocomplete, "q", &dst, nil, errors.New("boom")))

	// Cancellation always propagates.
	assert.Error(t, h.recordOutcome(keyword.ChannelAutocomplete, "q", &dst, nil, context.Canceled))
}
