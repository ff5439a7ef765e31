package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"directus-usage-tracker/config"
)

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:          true,
		Backend:          "memory",
		DefaultTTLMs:     300000,
		CollectionsTTLMs: 300000,
		ActivityTTLMs:    300000,
		TimeseriesTTLMs:  120000,
		SweepInterval:    300,
	}
}

func newMemoryService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(time.Hour)
	t.Cleanup(func() { store.Close() })
	return NewService(testConfig(), store), store
}

func TestMemoryStoreBasicOperations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	t.Run("Set_and_Get", func(t *testing.T) {
		svc.Set(ctx, "analytics:activity:k1", []byte("v1"), time.Minute)

		value, found := svc.Get(ctx, "analytics:activity:k1")
		if !found {
			t.Fatal("Value not found in cache")
		}
		if string(value) != "v1" {
			t.Errorf("Expected v1, got %s", value)
		}
	})

	t.Run("Get_NonExistent", func(t *testing.T) {
		if _, found := svc.Get(ctx, "nonexistent_key"); found {
			t.Error("Expected key not to be found")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		svc.Set(ctx, "k", []byte("old"), time.Minute)
		svc.Set(ctx, "k", []byte("new"), time.Minute)
		value, _ := svc.Get(ctx, "k")
		if string(value) != "new" {
			t.Errorf("Expected overwrite to win, got %s", value)
		}
	})

	t.Run("Delete_Idempotent", func(t *testing.T) {
		svc.Set(ctx, "gone", []byte("x"), time.Minute)
		svc.Delete(ctx, "gone")
		if _, found := svc.Get(ctx, "gone"); found {
			t.Error("Value should not exist after deletion")
		}
		// Second delete must be a no-op, not a panic or error
		svc.Delete(ctx, "gone")
	})

	t.Run("Has", func(t *testing.T) {
		svc.Set(ctx, "present", []byte("x"), time.Minute)
		if !svc.Has(ctx, "present") {
			t.Error("Has should report an unexpired entry")
		}
		if svc.Has(ctx, "absent") {
			t.Error("Has should not report a missing entry")
		}
	})
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	svc.Set(ctx, "ttl_key", []byte("v"), 50*time.Millisecond)

	if _, found := svc.Get(ctx, "ttl_key"); !found {
		t.Fatal("Value should exist immediately after setting")
	}

	time.Sleep(80 * time.Millisecond)

	if _, found := svc.Get(ctx, "ttl_key"); found {
		t.Error("Value should have expired after TTL")
	}
	// Expired read evicts lazily
	if store.Len() != 0 {
		t.Errorf("Expected lazy eviction on read, %d entries left", store.Len())
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30 * time.Millisecond)
	defer store.Close()

	store.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	store.Set(ctx, "long", []byte("v"), time.Hour)

	time.Sleep(100 * time.Millisecond)

	if store.Len() != 1 {
		t.Errorf("Sweep should have evicted the expired entry, %d entries left", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "long"); !ok {
		t.Error("Sweep must not evict unexpired entries")
	}
}

func TestMemoryStoreClearPattern(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	keys := []string{
		"analytics:activity:a",
		"analytics:activity:b",
		"analytics:collections:c",
		"other:activity:d",
	}
	for _, k := range keys {
		svc.Set(ctx, k, []byte("v"), time.Minute)
	}

	if err := svc.ClearPattern(ctx, "analytics:activity:*"); err != nil {
		t.Fatalf("ClearPattern failed: %v", err)
	}

	for _, k := range keys[:2] {
		if _, found := svc.Get(ctx, k); found {
			t.Errorf("Key %s should have been cleared", k)
		}
	}
	for _, k := range keys[2:] {
		if _, found := svc.Get(ctx, k); !found {
			t.Errorf("Key %s should have survived", k)
		}
	}
}

func TestGlobToRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"analytics:*", "analytics:activity:x", true},
		{"analytics:*", "other:activity:x", false},
		{"a?c", "abc", true},
		{"a?c", "abbc", false},
		{"exact", "exact", true},
		{"with.dot*", "withXdot", false}, // dot is literal, not regexp
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.key, func(t *testing.T) {
			re, err := globToRegexp(tt.pattern)
			if err != nil {
				t.Fatalf("globToRegexp(%q) error: %v", tt.pattern, err)
			}
			if got := re.MatchString(tt.key); got != tt.match {
				t.Errorf("pattern %q against %q = %v, want %v", tt.pattern, tt.key, got, tt.match)
			}
		})
	}
}

func TestServiceDefaultTTLs(t *testing.T) {
	svc, _ := newMemoryService(t)

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"analytics:collections:list", 5 * time.Minute},
		{"analytics:activity:stats", 5 * time.Minute},
		{"analytics:timeseries:day", 2 * time.Minute},
		{"unmapped:key", 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := svc.TTLFor(tt.key); got != tt.want {
			t.Errorf("TTLFor(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

// failingStore errors on every operation; the service must degrade
// instead of surfacing the failure.
type failingStore struct{}

var errBackend = errors.New("backend unreachable")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBackend }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBackend
}
func (failingStore) Delete(context.Context, string) error       { return errBackend }
func (failingStore) ClearPattern(context.Context, string) error { return errBackend }
func (failingStore) Has(context.Context, string) (bool, error)  { return false, errBackend }
func (failingStore) Close() error                               { return errBackend }

func TestServiceSwallowsBackendFailures(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testConfig(), failingStore{})

	// None of these may panic or propagate the backend error
	svc.Set(ctx, "k", []byte("v"), time.Minute)
	if _, found := svc.Get(ctx, "k"); found {
		t.Error("Failing backend must read as a miss")
	}
	if svc.Has(ctx, "k") {
		t.Error("Failing backend must report absent")
	}
	svc.Delete(ctx, "k")
	svc.Close()

	// Pattern clear is the one surfaced failure (admin routes report it)
	if err := svc.ClearPattern(ctx, "analytics:*"); err == nil {
		t.Error("ClearPattern should report backend failure")
	}
}

func TestNilServiceIsDisabledCache(t *testing.T) {
	ctx := context.Background()
	var svc *Service

	svc.Set(ctx, "k", []byte("v"), time.Minute)
	if _, found := svc.Get(ctx, "k"); found {
		t.Error("Nil service must behave as a permanent miss")
	}
	if err := svc.ClearPattern(ctx, "*"); err != nil {
		t.Errorf("Nil service ClearPattern should be a no-op, got %v", err)
	}
	svc.Close()
}
