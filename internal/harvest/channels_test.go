package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/ratelimit"
)

// newTestClient builds a client with no delays and a stubbed sleep so
// retries never wait.
func newTestClient(retryLimit int) *Client {
	cfg := ratelimit.Config{
		MaxConcurrent:  3,
		RetryLimit:     retryLimit,
		RequestTimeout: 5 * time.Second,
	}
	c := NewClient(ratelimit.New(cfg), geo.Lookup("PE"), cfg)
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestFetchSuccess(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`["seo",["curso seo"]]`))
	}))
	defer srv.Close()

	body, err := newTestClient(3).Fetch(context.Background(), srv.URL, "autocomplete")
	require.NoError(t, err)
	assert.Contains(t, body, "curso seo")
	assert.Equal(t, int64(1), requests.Load())
}

func TestFetchCaptchaIsImmediateAndNonRetryable(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`<html>Our systems have detected unusual traffic</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL, "related")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeCaptchaDetected, scouterr.GetCode(err))
	assert.False(t, scouterr.IsRetryable(err))
	assert.Equal(t, int64(1), requests.Load(), "captcha must not be retried")
}

func TestFetchUnexpectedStatusFailsFast(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL, "autocomplete")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeHTTPStatus, scouterr.GetCode(err))
	assert.Equal(t, int64(1), requests.Load(), "a 404 is not worth retrying")
}

func TestFetchExhaustedRetriesReturnNetworkError(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(1).Fetch(context.Background(), srv.URL, "autocomplete")
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeNetworkTimeout, scouterr.GetCode(err))
	assert.Equal(t, int64(1), requests.Load())
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(3).Fetch(ctx, srv.URL, "autocomplete")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSuggestResponse(t *testing.T) {
	got, err := parseSuggestResponse(`["seo",["curso seo","que es seo","curso seo"]]`, "seo")
	require.NoError(t, err)
	assert.Equal(t, []string{"curso seo", "que es seo"}, got, "exact duplicates dropped")
}

func TestParseSuggestResponseMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`["seo"]`,
		`["seo", "not-a-list"]`,
	}
	for _, body := range cases {
		_, err := parseSuggestResponse(body, "seo")
		assert.Error(t, err, "body %q", body)
	}
}

func TestFilterSuggestions(t *testing.T) {
	got := filterSuggestions([]string{
		"curso seo",
		"Curso SEO",      // case-insensitive duplicate
		"ab",             // too short
		"http://foo.com", // url fragment
		"marketing 2026",
	})
	assert.Equal(t, []string{"curso seo", "marketing 2026"}, got)
}

func TestIsCaptchaPage(t *testing.T) {
	assert.True(t, isCaptchaPage("detected Unusual Traffic from your network"))
	assert.True(t, isCaptchaPage(`<div class="g-recaptcha"></div>`))
	assert.True(t, isCaptchaPage("redirecting to /sorry/index"))
	assert.False(t, isCaptchaPage(`["seo",["curso seo"]]`))
}
