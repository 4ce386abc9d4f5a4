package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"persona-knowledge-engine/internal/logger"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache keeps query embeddings in Redis so repeated searches for
// the same query skip the provider round trip. Cache failures are never
// fatal; the caller just re-embeds.
type EmbeddingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEmbeddingCache(rdb *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{rdb: rdb, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, model, query string) ([]float64, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, cacheKey(model, query)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		logger.Warn("Discarding corrupt cached embedding", "model", model, "error", err)
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Set(ctx context.Context, model, query string, vec []float64) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(model, query), data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache query embedding", "model", model, "error", err)
	}
}

func cacheKey(model, query string) string {
	sum := sha256.Sum256([]byte(query))
	return "kb:qembed:" + model + ":" + hex.EncodeToString(sum[:])
}
