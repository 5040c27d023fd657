package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGetMissWhenEmpty(t *testing.T) {
	c := New()
	defer c.Close()

	if _, ok := c.Get("upstream:tool:{}"); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestSetThenGetHits(t *testing.T) {
	c := New()
	defer c.Close()

	body := json.RawMessage(`{"result":"ok"}`)
	c.Set("upstream:tool:{}", body)

	got, ok := c.Get("upstream:tool:{}")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != string(body) {
		t.Errorf("got %s, want %s", got, body)
	}
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := New(WithEnabled(false))
	defer c.Close()

	c.Set("k", json.RawMessage(`{}`))
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss when disabled")
	}
	if c.Size() != 0 {
		t.Error("expected disabled Set to be a no-op")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(WithTTL(1 * time.Second))
	defer c.Close()

	c.Set("k", json.RawMessage(`{}`))

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected immediate hit")
	}

	time.Sleep(1100 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after ttl expiry")
	}
}

func TestEvictionAtMaxSize(t *testing.T) {
	c := New(WithMaxSize(3))
	defer c.Close()

	for i := 0; i < 4; i++ {
		c.Set(keyFor(i), json.RawMessage(`{}`))
	}

	if got := c.Size(); got != 3 {
		t.Errorf("expected size 3 after 4 sets with maxSize 3, got %d", got)
	}
}

func keyFor(i int) string {
	return string(rune('a' + i))
}

func TestKeyCanonicalizationSharesEntry(t *testing.T) {
	keyA, err := Key("serena", "find_symbol", map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	keyB, err := Key("serena", "find_symbol", map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}

	if keyA != keyB {
		t.Errorf("expected canonicalized keys to match: %q vs %q", keyA, keyB)
	}
}

func TestKeyCanonicalizationNested(t *testing.T) {
	keyA, _ := Key("u", "t", map[string]any{
		"outer": map[string]any{"z": 1, "a": 2},
		"list":  []any{1, 2, 3},
	})
	keyB, _ := Key("u", "t", map[string]any{
		"list":  []any{1, 2, 3},
		"outer": map[string]any{"a": 2, "z": 1},
	})
	if keyA != keyB {
		t.Errorf("expected nested canonicalized keys to match: %q vs %q", keyA, keyB)
	}
}

func TestInvalidateByUpstreamAndTool(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("serena:find_symbol:{}", json.RawMessage(`{}`))
	c.Set("serena:read_file:{}", json.RawMessage(`{}`))
	c.Set("tavily:tavily-search:{}", json.RawMessage(`{}`))

	removed := c.Invalidate("serena", "find_symbol")
	if removed != 1 {
		t.Errorf("expected to remove 1 entry, removed %d", removed)
	}
	if c.Size() != 2 {
		t.Errorf("expected 2 remaining entries, got %d", c.Size())
	}
}

func TestInvalidateByUpstreamOnly(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("serena:find_symbol:{}", json.RawMessage(`{}`))
	c.Set("serena:read_file:{}", json.RawMessage(`{}`))
	c.Set("tavily:tavily-search:{}", json.RawMessage(`{}`))

	removed := c.Invalidate("serena", "")
	if removed != 2 {
		t.Errorf("expected to remove 2 entries, removed %d", removed)
	}
}

func TestInvalidateAllWithNoPattern(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("serena:find_symbol:{}", json.RawMessage(`{}`))
	c.Set("tavily:tavily-search:{}", json.RawMessage(`{}`))

	removed := c.Invalidate("", "")
	if removed != 2 {
		t.Errorf("expected to remove all 2 entries, removed %d", removed)
	}
	if c.Size() != 0 {
		t.Error("expected cache to be empty")
	}
}

func TestHitCountIncrementsOnGet(t *testing.T) {
	c := New(WithMaxSize(1))
	defer c.Close()

	c.Set("popular", json.RawMessage(`{}`))
	for i := 0; i < 5; i++ {
		if _, ok := c.Get("popular"); !ok {
			t.Fatal("expected hit")
		}
	}

	c.mu.Lock()
	hits := c.entries[fingerprint("popular")].hitCount
	c.mu.Unlock()
	if hits != 5 {
		t.Errorf("hitCount = %d after 5 gets, want 5", hits)
	}

	// A second key forces eviction; with maxSize 1 the only candidate is
	// "popular", whatever its hit count. Assert the cache stays at its bound.
	c.Set("other", json.RawMessage(`{}`))
	if c.Size() != 1 {
		t.Errorf("expected size to stay at maxSize 1, got %d", c.Size())
	}
}
