package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"libra-ai-worker/internal/kv"
	"libra-ai-worker/internal/llm"
)

// faultyKV wraps a working store but fails reads.
type faultyKV struct {
	kv.Store
}

func (f faultyKV) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("backend down")
}

func TestKeyIsDeterministic(t *testing.T) {
	msgs := []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	k1 := Key(msgs, "llama-3.1-8b-instant", "U1")
	k2 := Key(msgs, "llama-3.1-8b-instant", "U1")
	if k1 != k2 {
		t.Fatalf("same input produced different keys: %s vs %s", k1, k2)
	}
	if !strings.HasPrefix(k1, "llm:cache:") {
		t.Fatalf("key missing namespace prefix: %s", k1)
	}
}

func TestKeyIgnoresSystemMessages(t *testing.T) {
	base := []llm.Message{{Role: "user", Content: "hello"}}
	withSys := append([]llm.Message{{Role: "system", Content: "you are a pirate"}}, base...)
	otherSys := append([]llm.Message{{Role: "system", Content: "you are a poet"}}, base...)

	k0 := Key(base, "m", "U")
	k1 := Key(withSys, "m", "U")
	k2 := Key(otherSys, "m", "U")
	if k0 != k1 || k1 != k2 {
		t.Fatalf("system prompt leaked into fingerprint: %s %s %s", k0, k1, k2)
	}
}

func TestKeyChangesWithInputs(t *testing.T) {
	msgs := []llm.Message{{Role: "user", Content: "hello"}}
	base := Key(msgs, "m", "U")

	if k := Key([]llm.Message{{Role: "user", Content: "hello!"}}, "m", "U"); k == base {
		t.Fatalf("content change did not change key")
	}
	if k := Key([]llm.Message{{Role: "assistant", Content: "hello"}}, "m", "U"); k == base {
		t.Fatalf("role change did not change key")
	}
	if k := Key(msgs, "m2", "U"); k == base {
		t.Fatalf("model change did not change key")
	}
	if k := Key(msgs, "m", "U2"); k == base {
		t.Fatalf("user change did not change key")
	}
}

func TestLookupStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), true, 5*time.Minute)

	key := Key([]llm.Message{{Role: "user", Content: "hello"}}, "m", "U")
	if _, ok := c.Lookup(ctx, key); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	c.Store(ctx, key, "hi there", 0)
	v, ok := c.Lookup(ctx, key)
	if !ok || v != "hi there" {
		t.Fatalf("expected hit with %q, got %q ok=%v", "hi there", v, ok)
	}
}

func TestStoreSkipsEmptyValue(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), true, time.Minute)

	c.Store(ctx, "llm:cache:k", "", 0)
	if _, ok := c.Lookup(ctx, "llm:cache:k"); ok {
		t.Fatalf("empty value was stored")
	}
}

func TestDisabledCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), false, time.Minute)

	c.Store(ctx, "llm:cache:k", "v", 0)
	if _, ok := c.Lookup(ctx, "llm:cache:k"); ok {
		t.Fatalf("disabled cache returned a hit")
	}
}

func TestLookupSwallowsBackendFault(t *testing.T) {
	ctx := context.Background()
	c := New(faultyKV{Store: kv.NewMemory()}, true, time.Minute)

	if _, ok := c.Lookup(ctx, "llm:cache:k"); ok {
		t.Fatalf("fault surfaced as hit")
	}
}

func TestInvalidateUserDeletesMatchingKeys(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	c := New(mem, true, time.Minute)

	c.Store(ctx, "llm:cache:aaaU42bbb", "one", 0)
	c.Store(ctx, "llm:cache:cccU42ddd", "two", 0)
	c.Store(ctx, "llm:cache:otheruser", "three", 0)

	n, err := c.InvalidateUser(ctx, "U42")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	if _, ok := c.Lookup(ctx, "llm:cache:otheruser"); !ok {
		t.Fatalf("unrelated key was deleted")
	}
}

func TestInvalidateAllAndStats(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), true, 5*time.Minute)

	c.Store(ctx, "llm:cache:a", "12345", 0)
	c.Store(ctx, "llm:cache:b", "123", 0)

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !st.Enabled || st.TotalKeys != 2 || st.TotalSizeBytes != 8 || st.TTLSeconds != 300 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	n, err := c.InvalidateAll(ctx)
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	if st, _ := c.Stats(ctx); st.TotalKeys != 0 {
		t.Fatalf("cache not emptied: %+v", st)
	}
}
