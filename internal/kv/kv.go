package kv

import (
	"context"
	"time"
)

// Store abstracts the key-value backend the worker keeps its state in.
// The method set is exactly what conversation memory and the response
// cache need: bounded lists with expiry, get/set with TTL, and a
// cursor-based pattern scan. Implementations must be safe for
// concurrent use.
type Store interface {
	ListAppend(ctx context.Context, key, value string) error
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns (value, found). A missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Scan walks keys matching pattern starting at cursor and returns
	// the next cursor; a zero next cursor means the scan is complete.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
	Delete(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
