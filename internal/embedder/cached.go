package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Cache is the persistence contract for cached embeddings.
// *catalog.Catalog satisfies it.
type Cache interface {
	LookupEmbeddings(ctx context.Context, keys []string) (map[string][]float32, error)
	StoreEmbeddings(ctx context.Context, entries map[string][]float32) error
}

// Cached wraps an Embedder with a persistent cache keyed by model and text.
// Only texts missing from the cache reach the wrapped embedder, in a single
// batch that preserves their relative order. Cache failures are logged and
// never fail the call.
type Cached struct {
	next  rag.Embedder
	cache Cache
	model string
}

// NewCached wraps next. model distinguishes vectors from different models
// that share one cache.
func NewCached(next rag.Embedder, cache Cache, model string) *Cached {
	return &Cached{next: next, cache: cache, model: model}
}

// CacheKey returns the cache key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns cached vectors where available and embeds the rest.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	log := logging.FromContext(ctx)

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = CacheKey(c.model, t)
	}

	hits, err := c.cache.LookupEmbeddings(ctx, keys)
	if err != nil {
		log.Warn("embedder: cache lookup failed, embedding everything", slog.Any("error", err))
		hits = nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, k := range keys {
		if v, ok := hits[k]; ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		// Let the caller's count check report the mismatch.
		return vecs, nil
	}

	fresh := make(map[string][]float32, len(vecs))
	for j, i := range missIdx {
		out[i] = vecs[j]
		fresh[keys[i]] = vecs[j]
	}
	if err := c.cache.StoreEmbeddings(ctx, fresh); err != nil {
		log.Warn("embedder: cache store failed", slog.Any("error", err))
	}

	log.Debug("embedder: cache",
		slog.Int("hits", len(texts)-len(missTexts)),
		slog.Int("misses", len(missTexts)),
	)
	return out, nil
}
