package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func exerciseSessionStore(t *testing.T, s SessionStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "conv-1"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "conv-1", []Candidate{{ID: "a", Content: "name: a", PrimaryKey: "A"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "conv-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != "a" || got[0].PrimaryKey != "A" {
		t.Errorf("Get = %+v", got)
	}

	// An empty result is cached, not treated as missing.
	if err := s.Set(ctx, "conv-2", nil); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	got, ok, err = s.Get(ctx, "conv-2")
	if err != nil || !ok || len(got) != 0 {
		t.Errorf("empty entry: got=%v ok=%v err=%v", got, ok, err)
	}

	if err := s.Invalidate(ctx, "conv-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "conv-1"); ok {
		t.Error("entry still present after Invalidate")
	}
	if _, ok, _ := s.Get(ctx, "conv-2"); !ok {
		t.Error("Invalidate removed another conversation")
	}
}

func TestMemorySessionStore(t *testing.T) {
	exerciseSessionStore(t, NewMemorySessionStore())
}

func TestMemorySessionStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	in := []Candidate{{ID: "a"}}
	s.Set(ctx, "c", in)
	in[0].ID = "mutated"

	got, _, _ := s.Get(ctx, "c")
	if got[0].ID != "a" {
		t.Errorf("store shares memory with caller: %v", got)
	}
}

func TestMemorySessionStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			for j := 0; j < 50; j++ {
				s.Set(ctx, id, []Candidate{{ID: id}})
				if got, ok, _ := s.Get(ctx, id); !ok || len(got) != 1 || got[0].ID != id {
					t.Errorf("Get(%s) = %v, %v", id, got, ok)
					return
				}
				s.Invalidate(ctx, "shared")
			}
		}(i)
	}
	wg.Wait()
}

func TestRedisSessionStore(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()

	store, err := NewRedisSessionStore("redis://"+srv.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisSessionStore: %v", err)
	}
	defer store.Close()

	exerciseSessionStore(t, store)
	if !srv.Exists(redisKeyPrefix + "conv-2") {
		t.Errorf("expected key %sconv-2", redisKeyPrefix)
	}
}

func TestRedisSessionStoreTTL(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer srv.Close()

	store, err := NewRedisSessionStore("redis://"+srv.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisSessionStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "conv", []Candidate{{ID: "a"}}); err != nil {
		t.Fatal(err)
	}
	srv.FastForward(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, "conv"); ok {
		t.Error("entry should have expired")
	}
}

func TestRedisSessionStoreBadURL(t *testing.T) {
	if _, err := NewRedisSessionStore("not-a-url", 0); err == nil {
		t.Error("expected error for invalid url")
	}
}
