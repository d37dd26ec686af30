package cache

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryExpiry(t *testing.T) {
	c := NewInMemory()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "name:digital_card", "abc", 30*time.Second)

	if v, ok := c.Get(ctx, "name:digital_card"); !ok || v != "abc" {
		t.Fatalf("expected fresh entry, got %q %v", v, ok)
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get(ctx, "name:digital_card"); ok {
		t.Fatalf("expected entry to expire after TTL")
	}
}

func TestInMemoryDelete(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	c.Delete(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected deleted entry to miss")
	}
}

func TestInMemoryZeroTTLNotStored(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()

	c.Set(ctx, "k", "v", 0)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("zero TTL entries must not be cached")
	}
}
