package embed

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default number of embeddings to keep in
// memory. At 256 dimensions * 4 bytes * 2000 entries ≈ 2MB.
const DefaultEmbeddingCacheSize = 2000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by the exact
// keyword text. Embeddings are a property of the text alone, so the key
// carries no geo or language component: the same keyword in two market runs
// hits the same entry.
//
// When a persistence path is set, the cache is loaded at construction and
// can be flushed with Save; concurrent processes are serialized with a file
// lock and last write wins.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]

	mu       sync.Mutex
	path     string
	fileLock *flock.Flock
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder creates a cached embedder wrapping inner. A
// non-positive cacheSize uses the default.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// NewPersistentCachedEmbedder creates a cached embedder that loads from and
// saves to a JSON file at path. A missing or unreadable file starts empty.
func NewPersistentCachedEmbedder(inner Embedder, cacheSize int, path string) *CachedEmbedder {
	c := NewCachedEmbedder(inner, cacheSize)
	c.path = path
	c.fileLock = flock.New(path + ".lock")
	c.load()
	return c
}

// Embed returns the cached embedding when available, otherwise computes and
// caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and batching only the
// misses through the inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			results[i] = vec
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = newEmbeddings[j]
		c.cache.Add(texts[idx], newEmbeddings[j])
	}
	return results, nil
}

// Save flushes the in-memory cache to the persistence file. No-op without a
// persistence path. The write is serialized against other processes with a
// file lock; the newest writer wins.
func (c *CachedEmbedder) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make(map[string][]float32, c.cache.Len())
	for _, key := range c.cache.Keys() {
		if vec, ok := c.cache.Peek(key); ok {
			entries[key] = vec
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := c.fileLock.Lock(); err != nil {
		return err
	}
	defer func() { _ = c.fileLock.Unlock() }()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// load reads the persistence file into the cache. Failures are logged and
// leave the cache empty; a corrupt cache file never fails a run.
func (c *CachedEmbedder) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("embedding cache unreadable, starting empty", "path", c.path, "error", err)
		}
		return
	}

	var entries map[string][]float32
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("embedding cache corrupt, starting empty", "path", c.path, "error", err)
		return
	}

	for text, vec := range entries {
		c.cache.Add(text, vec)
	}
	slog.Debug("embedding cache loaded", "path", c.path, "entries", len(entries))
}

// Dimensions returns the embedding dimension (passthrough).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the inner embedder is ready.
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close flushes the cache when persistent, then closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	if err := c.Save(); err != nil {
		slog.Warn("embedding cache save failed", "error", err)
	}
	return c.inner.Close()
}

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}
