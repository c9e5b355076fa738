package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and by local development
// when no Redis URL is configured. Expiry is enforced lazily on access.
type Memory struct {
	mu      sync.Mutex
	lists   map[string][]string
	values  map[string]string
	expires map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		lists:   make(map[string][]string),
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (m *Memory) expireLocked(key string) {
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.lists, key)
		delete(m.values, key)
		delete(m.expires, key)
	}
}

func (m *Memory) ListAppend(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *Memory) ListTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	m.lists[key] = sliceRange(m.lists[key], start, stop)
	return nil
}

func (m *Memory) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	out := sliceRange(m.lists[key], start, stop)
	return append([]string(nil), out...), nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = time.Now().Add(ttl)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.expires[key] = time.Now().Add(ttl)
	return nil
}

func (m *Memory) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.values {
		m.expireLocked(k)
		if _, ok := m.values[k]; !ok {
			continue
		}
		if globMatch(k, pattern) {
			keys = append(keys, k)
		}
	}
	// Single pass; the whole keyspace fits in one batch.
	return keys, 0, nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			delete(m.expires, k)
			n++
		}
		if _, ok := m.lists[k]; ok {
			delete(m.lists, k)
			delete(m.expires, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

// sliceRange applies Redis LRANGE/LTRIM index semantics (inclusive,
// negative offsets count from the tail).
func sliceRange(l []string, start, stop int64) []string {
	n := int64(len(l))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil
	}
	return l[start : stop+1]
}

// globMatch supports the '*' wildcard subset of Redis glob patterns,
// which is all the worker uses.
func globMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, p := range parts[1 : len(parts)-1] {
		if p == "" {
			continue
		}
		idx := strings.Index(s, p)
		if idx < 0 {
			return false
		}
		s = s[idx+len(p):]
	}
	last := parts[len(parts)-1]
	return last == "" || strings.HasSuffix(s, last)
}
