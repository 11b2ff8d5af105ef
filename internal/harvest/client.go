package harvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
	"github.com/keywordscout/keywordscout/internal/geo"
	"github.com/keywordscout/keywordscout/internal/ratelimit"
)

// userAgents are rotated per request to reduce fingerprinting.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// captchaMarkers identify challenge pages structurally. Matching is on the
// raw body, case-insensitively.
var captchaMarkers = []string{
	"unusual traffic",
	"tráfico inusual",
	"g-recaptcha",
	"/sorry/index",
}

// Client issues throttled HTTP requests for all harvest channels. Every
// request takes a limiter permit, rotates the user agent, and retries with
// exponential waits; a 429 adds an extra wait on top of the limiter's
// backoff growth.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	market  geo.Market

	maxRetries int

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a harvest client around an adaptive rate limiter.
func NewClient(limiter *ratelimit.Limiter, market geo.Market, cfg ratelimit.Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = ratelimit.DefaultConfig().RequestTimeout
	}
	maxRetries := cfg.RetryLimit
	if maxRetries <= 0 {
		maxRetries = ratelimit.DefaultConfig().RetryLimit
	}
	maxConns := cfg.MaxConcurrent
	if maxConns <= 0 {
		maxConns = ratelimit.DefaultConfig().MaxConcurrent
	}

	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     maxConns * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &Client{
		http:       &http.Client{Transport: transport, Timeout: timeout},
		limiter:    limiter,
		market:     market,
		maxRetries: maxRetries,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Fetch retrieves url with throttling and retries. Returns the body on
// success; a captcha page returns a non-retryable captcha error
// immediately so the caller can disable the source for the rest of the
// run.
func (c *Client) Fetch(ctx context.Context, url, source string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential wait between attempts.
			if err := c.sleep(ctx, time.Duration(1<<uint(attempt-1))*time.Second); err != nil {
				return "", err
			}
		}

		body, status, err := c.doRequest(ctx, url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			slog.Warn("request failed", "url", url, "attempt", attempt+1, "error", err)

		case status == http.StatusTooManyRequests:
			lastErr = scouterr.RateLimitError("throttled by suggestion endpoint")
			// Extra wait on top of the limiter's backoff growth.
			wait := time.Duration(1<<uint(attempt)) * time.Second
			slog.Warn("rate limited, backing off", "wait", wait, "attempt", attempt+1)
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}

		case status >= 500:
			lastErr = scouterr.New(scouterr.ErrCodeHTTPStatus,
				fmt.Sprintf("server error %d", status), nil)
			slog.Warn("server error", "url", url, "status", status, "attempt", attempt+1)

		case status != http.StatusOK:
			return "", scouterr.New(scouterr.ErrCodeHTTPStatus,
				fmt.Sprintf("unexpected status %d", status), nil)

		default:
			if isCaptchaPage(body) {
				return "", scouterr.CaptchaError(source)
			}
			return body, nil
		}
	}

	return "", scouterr.NetworkError(
		fmt.Sprintf("all %d attempts failed for %s", c.maxRetries, source), lastErr)
}

// doRequest performs one throttled request. The limiter permit is held for
// the duration of the request and released with the outcome so backoff
// state tracks real responses.
func (c *Client) doRequest(ctx context.Context, url string) (string, int, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.limiter.Release(false, 0)
		return "", 0, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.limiter.Release(false, 0)
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		c.limiter.Release(false, resp.StatusCode)
		return "", resp.StatusCode, err
	}

	c.limiter.Release(resp.StatusCode == http.StatusOK, resp.StatusCode)
	return string(body), resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.Lock()
	ua := userAgents[c.rng.Intn(len(userAgents))]
	c.mu.Unlock()

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.market.HL+",es;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// isCaptchaPage reports whether body looks like a challenge interstitial.
func isCaptchaPage(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Stats exposes the underlying limiter counters for run reports.
func (c *Client) Stats() ratelimit.Stats {
	return c.limiter.Stats()
}
