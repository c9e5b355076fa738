package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"libra-ai-worker/internal/kv"
	"libra-ai-worker/internal/llm"
)

const (
	keyPrefix = "llm:cache:"

	// scanBatch is the COUNT hint for cursor scans used by invalidation
	// and stats.
	scanBatch = 100
)

// Key builds the deterministic fingerprint for one completion request:
// hex SHA-256 over a canonical JSON document of the non-system messages,
// the model and the user id. Maps are marshalled with sorted keys, so
// two logically identical requests hash identically no matter how they
// were constructed. System messages are deliberately excluded: a
// language or model-prompt switch alone must not fragment the cache.
func Key(messages []llm.Message, model, userID string) string {
	userMessages := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		userMessages = append(userMessages, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	doc := map[string]any{
		"messages": userMessages,
		"model":    model,
		"user_id":  userID,
	}
	raw, _ := json.Marshal(doc)
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Stats is the diagnostics snapshot returned by Cache.Stats.
type Stats struct {
	Enabled        bool  `json:"enabled"`
	TotalKeys      int64 `json:"total_keys"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	TTLSeconds     int64 `json:"ttl"`
}

// Cache stores full completions keyed by request fingerprint. A miss,
// a disabled cache and a backend fault all look the same to callers:
// no value. There is no single-flight guard; two concurrent identical
// misses both reach the provider and the second write wins.
type Cache struct {
	kv      kv.Store
	enabled bool
	ttl     time.Duration
}

func New(store kv.Store, enabled bool, ttl time.Duration) *Cache {
	return &Cache{kv: store, enabled: enabled, ttl: ttl}
}

// Initialize verifies the backend connection. On failure caching is
// disabled for the process lifetime rather than surfacing an error.
func (c *Cache) Initialize(ctx context.Context) error {
	if !c.enabled {
		log.Printf("response cache disabled by config")
		return nil
	}
	if err := c.kv.Ping(ctx); err != nil {
		log.Printf("⚠️ response cache backend unreachable, caching disabled: %v", err)
		c.enabled = false
		return nil
	}
	log.Printf("✅ response cache ready (ttl=%s)", c.ttl)
	return nil
}

func (c *Cache) Cleanup(ctx context.Context) error {
	return nil
}

// Lookup returns the cached completion for key, if any.
func (c *Cache) Lookup(ctx context.Context, key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	v, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		log.Printf("⚠️ cache lookup failed: %v", err)
		return "", false
	}
	if ok {
		log.Printf("🎯 cache hit (%d chars)", len(v))
	}
	return v, ok
}

// Store writes a completion under key. Empty values are never stored.
// A non-positive ttl selects the configured default.
func (c *Cache) Store(ctx context.Context, key, value string, ttl time.Duration) {
	if !c.enabled || value == "" {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.kv.SetWithTTL(ctx, key, value, ttl); err != nil {
		log.Printf("⚠️ cache store failed: %v", err)
		return
	}
	log.Printf("💾 cached response (%d chars, ttl=%s)", len(value), ttl)
}

// InvalidateUser deletes every cached entry whose key contains userID.
// The scan is cursor-based and not atomic; entries written concurrently
// may survive.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) (int64, error) {
	return c.scanDelete(ctx, keyPrefix+"*"+userID+"*")
}

// InvalidateAll deletes the whole cache namespace.
func (c *Cache) InvalidateAll(ctx context.Context) (int64, error) {
	return c.scanDelete(ctx, keyPrefix+"*")
}

func (c *Cache) scanDelete(ctx context.Context, pattern string) (int64, error) {
	if !c.enabled {
		return 0, nil
	}
	var cursor uint64
	var deleted int64
	for {
		keys, next, err := c.kv.Scan(ctx, cursor, pattern, scanBatch)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.kv.Delete(ctx, keys...)
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	log.Printf("🧹 cache invalidated: pattern=%s deleted=%d", pattern, deleted)
	return deleted, nil
}

// Stats walks the full cache namespace. O(n) in cache size; intended
// for diagnostics only.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Enabled: c.enabled, TTLSeconds: int64(c.ttl / time.Second)}
	if !c.enabled {
		return st, nil
	}
	var cursor uint64
	for {
		keys, next, err := c.kv.Scan(ctx, cursor, keyPrefix+"*", scanBatch)
		if err != nil {
			return st, err
		}
		st.TotalKeys += int64(len(keys))
		for _, k := range keys {
			if v, ok, err := c.kv.Get(ctx, k); err == nil && ok {
				st.TotalSizeBytes += int64(len(v))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return st, nil
}
