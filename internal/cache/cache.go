// Package cache provides an optional exact-match cache for transformed
// non-streaming responses. Lookups and stores are best-effort: any cache
// error is logged and treated as a miss, never surfaced to the caller.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chatgate/internal/openai"
)

// Key identifies one cached response: the provider variant and model scope
// the entry, the hash covers the normalized request body.
type Key struct {
	Provider string
	ModelID  string
	Hash     string
}

// String renders the final key used in Redis or the in-memory map:
// exact:<PROVIDER>:<MODEL_ID>:<HASH_HEX>
func (k Key) String() string {
	return fmt.Sprintf("exact:%s:%s:%s", k.Provider, k.ModelID, k.Hash)
}

// Cache is the interface the chat handler uses. Implemented by the memory
// backend (dev) and the Redis backend (prod).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Config struct {
	Backend string
	TTL     time.Duration
	Prefix  string
}

// New builds the configured cache backend; "none" yields nil, meaning the
// handler skips caching entirely.
func New(cfg Config, redisClient *redis.Client) Cache {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(redisClient, cfg.Prefix)
	case "memory":
		return NewMemoryCache(cfg.TTL)
	default:
		return nil
	}
}

// BuildKey hashes the normalized request into a cache key. The stream flag
// is excluded from the hash: streaming requests never reach the cache, and
// a prior non-streaming response is still valid for the same conversation.
func BuildKey(req *openai.ChatRequest, providerName string) (Key, error) {
	normalized := *req
	normalized.Stream = false

	body, err := json.Marshal(&normalized)
	if err != nil {
		return Key{}, err
	}

	sum := sha256.Sum256(body)

	return Key{
		Provider: providerName,
		ModelID:  strings.TrimSpace(req.Model),
		Hash:     hex.EncodeToString(sum[:]),
	}, nil
}
