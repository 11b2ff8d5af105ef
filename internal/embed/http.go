package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	scouterr "github.com/keywordscout/keywordscout/internal/errors"
)

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	// Host is the base URL of the embedding service.
	Host string
	// Model is the model identifier sent with each request.
	Model string
	// Dimensions is the expected vector dimension; 0 autodetects from the
	// first response.
	Dimensions int
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the retry budget per request.
	MaxRetries int
	// PoolSize is the connection pool size.
	PoolSize int
}

// HTTPEmbedder calls a JSON-over-HTTP embedding service. Request contexts
// carry per-request timeouts; the client itself has none, so a caller's
// context deadline always wins.
type HTTPEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    HTTPConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEmbedder creates an HTTP embedder. The service is not contacted
// until the first call; use Available for a health probe.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &HTTPEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request,
// retrying transient failures with exponential backoff.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := scouterr.RetryWithResult(ctx, scouterr.RetryConfig{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}, func() ([][]float32, error) {
		return e.doEmbed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, scouterr.New(scouterr.ErrCodeProviderUnavailable,
			fmt.Sprintf("embedding service returned %d vectors for %d texts", len(vecs), len(texts)), nil)
	}

	e.mu.Lock()
	if e.dims == 0 && len(vecs[0]) > 0 {
		e.dims = len(vecs[0])
	}
	e.mu.Unlock()

	return vecs, nil
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, scouterr.NetworkError("embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, scouterr.New(scouterr.ErrCodeHTTPStatus,
			fmt.Sprintf("embedding service status %d: %s", resp.StatusCode, payload), nil)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, scouterr.Wrap(scouterr.ErrCodeProviderUnavailable, err)
	}
	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension, 0 before autodetection.
func (e *HTTPEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.config.Model
}

// Available probes the service with a one-text embed under a short timeout.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.doEmbed(probeCtx, []string{"ping"})
	return err == nil
}

// Close releases pooled connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
