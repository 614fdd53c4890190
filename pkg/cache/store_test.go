package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable clock for driving TTL decisions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupTestStore creates a store in a temporary directory.
func setupTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store, err := NewStore(StoreConfig{
		Root: t.TempDir(),
		TTL:  ttl,
		Now:  clock.Now,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, clock
}

func TestNewStore(t *testing.T) {
	root := t.TempDir()

	store, err := NewStore(StoreConfig{Root: root})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	wantDir := filepath.Join(root, DefaultNamespace)
	if store.Dir() != wantDir {
		t.Errorf("Dir() = %s, want %s", store.Dir(), wantDir)
	}
	if store.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", store.TTL(), DefaultTTL)
	}
	if info, err := os.Stat(wantDir); err != nil || !info.IsDir() {
		t.Errorf("namespace directory not created: %v", err)
	}
}

func TestNewStore_EmptyRoot(t *testing.T) {
	if _, err := NewStore(StoreConfig{}); err == nil {
		t.Error("NewStore with empty root should return error")
	}
}

func TestStore_PutAndGet(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour)
	key := CacheKey{URL: "https://a.test/x"}

	if err := store.Put(key, []byte("hello"), "text/plain; charset=utf-8"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(entry.Data) != "hello" {
		t.Errorf("Data = %q, want %q", entry.Data, "hello")
	}
	if entry.URL != key.URL {
		t.Errorf("URL = %s, want %s", entry.URL, key.URL)
	}
	if entry.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("ContentType = %s, want text/plain; charset=utf-8", entry.ContentType)
	}
	if !entry.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, clock.Now())
	}
}

func TestStore_Get_Absent(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)

	_, err := store.Get(CacheKey{URL: "https://a.test/nothing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestStore_Get_Staleness(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantHit bool
	}{
		{name: "fresh", elapsed: 2 * time.Second, wantHit: true},
		{name: "just before ttl", elapsed: time.Hour - time.Nanosecond, wantHit: true},
		{name: "exactly ttl", elapsed: time.Hour, wantHit: false},
		{name: "after ttl", elapsed: 2 * time.Hour, wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, clock := setupTestStore(t, time.Hour)
			key := CacheKey{URL: "https://a.test/stale"}

			if err := store.Put(key, []byte("body"), "text/html"); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			clock.Advance(tt.elapsed)

			_, err := store.Get(key)
			if tt.wantHit && err != nil {
				t.Errorf("Expected hit after %v, got %v", tt.elapsed, err)
			}
			if !tt.wantHit && !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Expected ErrCacheMiss after %v, got %v", tt.elapsed, err)
			}
		})
	}
}

func TestStore_Get_StaleEntryNotDeleted(t *testing.T) {
	store, clock := setupTestStore(t, time.Minute)
	key := CacheKey{URL: "https://a.test/keep"}

	if err := store.Put(key, []byte("body"), "text/html"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	clock.Advance(time.Hour)

	if _, err := store.Get(key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss, got %v", err)
	}

	if _, err := os.Stat(store.payloadPath(key.Digest())); err != nil {
		t.Errorf("Get must not evict; payload stat error: %v", err)
	}
}

func TestStore_Get_PartialOrCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		damage func(t *testing.T, s *Store, digest string)
	}{
		{
			name: "metadata missing",
			damage: func(t *testing.T, s *Store, digest string) {
				if err := os.Remove(s.metaPath(digest)); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "payload missing",
			damage: func(t *testing.T, s *Store, digest string) {
				if err := os.Remove(s.payloadPath(digest)); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "metadata not json",
			damage: func(t *testing.T, s *Store, digest string) {
				if err := os.WriteFile(s.metaPath(digest), []byte("{not json"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "metadata without timestamp",
			damage: func(t *testing.T, s *Store, digest string) {
				if err := os.WriteFile(s.metaPath(digest), []byte(`{"url":"x","contentType":"text/html"}`), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := setupTestStore(t, time.Hour)
			key := CacheKey{URL: "https://a.test/damaged"}

			if err := store.Put(key, []byte("body"), "text/html"); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			tt.damage(t, store, key.Digest())

			_, err := store.Get(key)
			if !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Expected ErrCacheMiss, got %v", err)
			}
		})
	}
}

func TestStore_RenderFlagDoesNotAlias(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)
	plain := CacheKey{URL: "https://a.test/x"}
	rendered := CacheKey{URL: "https://a.test/x", Rendered: true}

	if err := store.Put(plain, []byte("static"), "text/html"); err != nil {
		t.Fatalf("Put plain failed: %v", err)
	}

	if _, err := store.Get(rendered); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Rendered key must not see plain entry, got %v", err)
	}

	if err := store.Put(rendered, []byte("dynamic"), "text/html"); err != nil {
		t.Fatalf("Put rendered failed: %v", err)
	}

	p, err := store.Get(plain)
	if err != nil {
		t.Fatalf("Get plain failed: %v", err)
	}
	r, err := store.Get(rendered)
	if err != nil {
		t.Fatalf("Get rendered failed: %v", err)
	}
	if string(p.Data) != "static" || string(r.Data) != "dynamic" {
		t.Errorf("Entries aliased: plain=%q rendered=%q", p.Data, r.Data)
	}
}

func TestStore_Put_Overwrite(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour)
	key := CacheKey{URL: "https://a.test/x"}

	if err := store.Put(key, []byte("first"), "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	clock.Advance(10 * time.Minute)
	if err := store.Put(key, []byte("second"), "text/html"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != "second" || entry.ContentType != "text/html" {
		t.Errorf("Got %q (%s), want second (text/html)", entry.Data, entry.ContentType)
	}
	if !entry.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp not refreshed: %v", entry.Timestamp)
	}
}

func TestStore_Put_LeavesNoTempFiles(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)

	for i := 0; i < 5; i++ {
		key := CacheKey{URL: fmt.Sprintf("https://a.test/%d", i)}
		if err := store.Put(key, []byte("body"), "text/html"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	files, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 10 {
		t.Errorf("Expected 10 files (5 payloads, 5 metadata), got %d", len(files))
	}
	for _, f := range files {
		if strings.HasPrefix(f.Name(), tmpPrefix) {
			t.Errorf("Temporary file left behind: %s", f.Name())
		}
	}
}

func TestStore_OnDiskLayout(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)
	key := CacheKey{URL: "https://a.test/layout", Rendered: true}

	if err := store.Put(key, []byte("<html></html>"), "text/html"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(store.Dir(), key.Digest()))
	if err != nil {
		t.Fatalf("payload not at <dir>/<digest>: %v", err)
	}
	if string(payload) != "<html></html>" {
		t.Errorf("payload = %q", payload)
	}

	raw, err := os.ReadFile(filepath.Join(store.Dir(), key.Digest()+".meta"))
	if err != nil {
		t.Fatalf("metadata not at <dir>/<digest>.meta: %v", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("metadata is not a flat JSON object: %v", err)
	}
	for _, name := range []string{"url", "timestamp", "contentType"} {
		if fields[name] == "" {
			t.Errorf("metadata field %q missing in %s", name, raw)
		}
	}
	if _, err := time.Parse(time.RFC3339, fields["timestamp"]); err != nil {
		t.Errorf("timestamp %q is not ISO-8601: %v", fields["timestamp"], err)
	}
}

func TestStore_Clear(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)
	keys := []CacheKey{
		{URL: "https://a.test/1"},
		{URL: "https://a.test/2", Rendered: true},
	}

	for _, k := range keys {
		if err := store.Put(k, []byte("body"), "text/html"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for _, k := range keys {
		if _, err := store.Get(k); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after Clear for %s, got %v", k, err)
		}
	}

	if info, err := os.Stat(store.Dir()); err != nil || !info.IsDir() {
		t.Errorf("cache directory should be recreated after Clear: %v", err)
	}

	// Repopulates normally
	if err := store.Put(keys[0], []byte("again"), "text/html"); err != nil {
		t.Fatalf("Put after Clear failed: %v", err)
	}
	if _, err := store.Get(keys[0]); err != nil {
		t.Errorf("Get after repopulate failed: %v", err)
	}
}

func TestStore_Put_DirectoryRemoved(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)

	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatal(err)
	}

	key := CacheKey{URL: "https://a.test/x"}
	if err := store.Put(key, []byte("body"), "text/html"); err != nil {
		t.Fatalf("Put should recreate the directory: %v", err)
	}
	if _, err := store.Get(key); err != nil {
		t.Errorf("Get failed: %v", err)
	}
}

func TestStore_Entries(t *testing.T) {
	store, clock := setupTestStore(t, time.Hour)

	old := CacheKey{URL: "https://a.test/old"}
	if err := store.Put(old, []byte("old"), "text/html"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Minute)

	fresh := CacheKey{URL: "https://a.test/fresh"}
	if err := store.Put(fresh, []byte("fresher"), "text/plain"); err != nil {
		t.Fatal(err)
	}

	infos, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Entries() returned %d items, want 2", len(infos))
	}
	if infos[0].URL != fresh.URL {
		t.Errorf("Entries not newest first: %+v", infos)
	}
	if infos[0].Size != int64(len("fresher")) || infos[0].Digest != fresh.Digest() {
		t.Errorf("Unexpected entry info: %+v", infos[0])
	}

	clock.Advance(45 * time.Minute)
	infos, err = store.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(infos) != 1 || infos[0].URL != fresh.URL {
		t.Errorf("Stale entries should be skipped, got %+v", infos)
	}
}

func TestStore_ConcurrentPutSameKey(t *testing.T) {
	store, _ := setupTestStore(t, time.Hour)
	key := CacheKey{URL: "https://a.test/race"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(fmt.Sprintf("writer-%d", i))
			if err := store.Put(key, body, "text/plain"); err != nil {
				t.Errorf("Put %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	entry, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get after concurrent writes failed: %v", err)
	}
	if !strings.HasPrefix(string(entry.Data), "writer-") {
		t.Errorf("Unexpected payload %q", entry.Data)
	}
}
