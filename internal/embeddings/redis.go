package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vigji/mootlib/internal/logging"
)

// HotCache is an optional redis lookaside shared between processes. Misses
// and redis errors are treated the same: the caller falls through to the
// provider, so a flaky redis never blocks embedding.
type HotCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewHotCache connects to redis at addr. ttl <= 0 defaults to 10 days.
func NewHotCache(addr, password string, db int, ttl time.Duration, prefix string) (*HotCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("embeddings: redis addr is required")
	}
	if ttl <= 0 {
		ttl = 240 * time.Hour
	}
	if prefix == "" {
		prefix = "emb"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &HotCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (h *HotCache) key(hash string) string {
	return fmt.Sprintf("%s:%s", h.prefix, hash)
}

func (h *HotCache) Get(ctx context.Context, hash string) ([]float32, bool) {
	if h == nil || h.client == nil {
		return nil, false
	}
	data, err := h.client.Get(ctx, h.key(hash)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logging.Warnf("[embeddings] redis get: %v", err)
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		logging.Warnf("[embeddings] redis decode: %v", err)
		return nil, false
	}
	return vec, true
}

func (h *HotCache) Set(ctx context.Context, hash string, vec []float32) {
	if h == nil || h.client == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := h.client.Set(ctx, h.key(hash), data, h.ttl).Err(); err != nil {
		logging.Warnf("[embeddings] redis set: %v", err)
	}
}

func (h *HotCache) Close() error {
	if h == nil || h.client == nil {
		return nil
	}
	return h.client.Close()
}
