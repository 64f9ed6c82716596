package hotstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStoreWithClient(client)
}

func TestSaveAndGetStructRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := sample{Name: "theta", N: 7}
	if err := store.SaveStruct(ctx, store.SessionKey("s1"), in, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out sample
	if err := store.GetStruct(ctx, store.SessionKey("s1"), &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("round-trip mismatch: got %+v want %+v", out, in)
	}
}

func TestGetStructMissReturnsError(t *testing.T) {
	store := newTestStore(t)
	var out sample
	if err := store.GetStruct(context.Background(), store.SessionKey("missing"), &out); err == nil {
		t.Fatal("expected error on cache miss")
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLock(ctx, "s1", "q1", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = store.AcquireLock(ctx, "s1", "q1", 5*time.Second)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail while lock held, got ok=%v err=%v", ok, err)
	}

	if err := store.ReleaseLock(ctx, "s1", "q1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = store.AcquireLock(ctx, "s1", "q1", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestStatsCountsKeysByNamespace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.SaveStruct(ctx, store.SessionKey("s1"), sample{Name: "a"}, time.Minute)
	store.SaveStruct(ctx, store.PoolKey("topic_t1"), sample{Name: "b"}, time.Minute)
	store.SaveStruct(ctx, store.QuestionKey("q1"), sample{Name: "c"}, time.Minute)
	store.AcquireLock(ctx, "s1", "q1", 5*time.Second)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveSessions != 1 || stats.CachedPools != 1 || stats.CachedQuestions != 1 || stats.ActiveLocks != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
