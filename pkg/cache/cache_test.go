package cache

import (
	"testing"
	"time"
)

// TestSetGet verifies a stored value is returned before its TTL elapses.
func TestSetGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get = %v %v, want 42 true", v, ok)
	}
}

// TestExpiry verifies entries disappear once the TTL has passed. The clock
// is stubbed so the test does not sleep.
func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k", "v")

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived past its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not reaped, Len = %d", c.Len())
	}
}

// TestInvalidate verifies explicit invalidation of one key and of all keys.
func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated key still present")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unrelated key was invalidated")
	}

	c.InvalidateAll()
	if _, ok := c.Get("b"); ok {
		t.Error("key survived InvalidateAll")
	}
}

// TestMissingKey verifies a lookup for an unknown key reports absence.
func TestMissingKey(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get("nope"); ok {
		t.Error("Get reported a value for an unknown key")
	}
}
