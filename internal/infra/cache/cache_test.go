package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/veyralabs/fundmatch-go/internal/infra/cache"
)

func TestInMemory_SetAndGet(t *testing.T) {
	c := cache.NewInMemory[string](time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", "value1", 5*time.Minute)
	val, ok := c.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestInMemory_GetMiss(t *testing.T) {
	c := cache.NewInMemory[string](time.Minute)
	defer c.Close()

	_, ok := c.Get(context.Background(), "nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestInMemory_PerEntryExpiration(t *testing.T) {
	c := cache.NewInMemory[string](time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", "v", 50*time.Millisecond)
	c.Set(ctx, "long", "v", 5*time.Minute)
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Fatal("expected short-TTL entry to be expired")
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Fatal("expected long-TTL entry to survive")
	}
}

func TestInMemory_Delete(t *testing.T) {
	c := cache.NewInMemory[string](time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", "value1", 5*time.Minute)
	c.Delete(ctx, "key1")

	if _, ok := c.Get(ctx, "key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestInMemory_OverwriteIsIdempotent(t *testing.T) {
	c := cache.NewInMemory[int](time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", 1, 5*time.Minute)
	c.Set(ctx, "k", 2, 5*time.Minute)

	val, ok := c.Get(ctx, "k")
	if !ok || val != 2 {
		t.Fatalf("expected last write to win, got %d (ok=%v)", val, ok)
	}
}
