package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestMemoryStore() (*InMemoryStore, *time.Time) {
	now := time.Unix(1700000000, 0)
	s := NewInMemoryStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v", 60*time.Second)

	val, ok := s.Get(ctx, "k")
	if !ok {
		t.Error("Get should return true for existing key")
	}
	if val != "v" {
		t.Errorf("Get returned %q, want %q", val, "v")
	}
}

func TestInMemoryStore_Miss(t *testing.T) {
	s := NewInMemoryStore()

	val, ok := s.Get(context.Background(), "nonexistent-key")
	if ok {
		t.Error("Get should return false for missing key")
	}
	if val != "" {
		t.Errorf("Get should return empty string for missing key, got %q", val)
	}
}

func TestInMemoryStore_TTL(t *testing.T) {
	s, now := newTestMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v", time.Second)

	if val, ok := s.Get(ctx, "k"); !ok || val != "v" {
		t.Error("Value should be available immediately after set")
	}

	*now = now.Add(time.Second)

	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("Value should be expired after TTL")
	}
	if s.Len() != 0 {
		t.Errorf("Expired entry should be removed, Len() = %d", s.Len())
	}
}

func TestInMemoryStore_DefaultTTL(t *testing.T) {
	s, now := newTestMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v", 0)

	*now = now.Add(DefaultTTL - time.Second)
	if _, ok := s.Get(ctx, "k"); !ok {
		t.Error("Value should live for the default TTL")
	}

	*now = now.Add(2 * time.Second)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("Value should expire after the default TTL")
	}
}

func TestInMemoryStore_Overwrite(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v1", time.Minute)
	s.Set(ctx, "k", "v2", time.Minute)

	val, ok := s.Get(ctx, "k")
	if !ok || val != "v2" {
		t.Errorf("Get returned %q (ok=%v), want %q", val, ok, "v2")
	}
}

func TestInMemoryStore_Clear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "a", "1", time.Minute)
	s.Set(ctx, "b", "2", time.Minute)
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", s.Len())
	}
}

func TestInMemoryStore_Entries(t *testing.T) {
	s, now := newTestMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "b", "2", time.Minute)
	s.Set(ctx, "a", "1", time.Minute)
	s.Set(ctx, "old", "x", time.Second)
	s.Set(ctx, "other:c", "3", time.Minute)

	*now = now.Add(10 * time.Second)

	var got []Entry
	err := s.Entries(ctx, "[a-z]", func(e Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 live entries, got %d", len(got))
	}
	if got[0].Key != "a" || got[1].Key != "b" {
		t.Errorf("entries not sorted: %+v", got)
	}
	if got[0].TTL != 50*time.Second {
		t.Errorf("expected remaining TTL 50s, got %v", got[0].TTL)
	}

	if err := s.Entries(ctx, "[", func(Entry) error { return nil }); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.Set(ctx, fmt.Sprintf("key%d", n), "value", time.Minute)
		}(i)
		go func(n int) {
			defer wg.Done()
			s.Get(ctx, fmt.Sprintf("key%d", n))
		}(i)
	}

	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}
