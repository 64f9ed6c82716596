package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"adaptivetest/internal/domain"
	"adaptivetest/internal/hotstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

type hotProjection struct {
	SessionID    string    `json:"session_id"`
	LastActivity time.Time `json:"last_activity"`
}

// fakeSessionStatusWriter records every status update the sweep issues,
// standing in for the warm-store session repository.
type fakeSessionStatusWriter struct {
	mu      sync.Mutex
	updates map[string]bson.M
}

func newFakeSessionStatusWriter() *fakeSessionStatusWriter {
	return &fakeSessionStatusWriter{updates: make(map[string]bson.M)}
}

func (f *fakeSessionStatusWriter) Update(_ context.Context, id string, update bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = update
	return nil
}

func newTestStore(t *testing.T) *hotstore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return hotstore.NewStoreWithClient(client)
}

func TestCleanupInactiveSessionsEvictsStaleOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := hotProjection{SessionID: "s-stale", LastActivity: time.Now().Add(-time.Hour)}
	fresh := hotProjection{SessionID: "s-fresh", LastActivity: time.Now()}

	if err := store.SaveStruct(ctx, store.SessionKey("s-stale"), stale, time.Hour); err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	if err := store.SaveStruct(ctx, store.SessionKey("s-fresh"), fresh, time.Hour); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	writer := newFakeSessionStatusWriter()
	sched := NewScheduler(store, writer, time.Minute, 30*time.Minute)
	n, err := sched.CleanupInactiveSessions(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 eviction, got %d", n)
	}

	var out hotProjection
	if err := store.GetStruct(ctx, store.SessionKey("s-fresh"), &out); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
	if err := store.GetStruct(ctx, store.SessionKey("s-stale"), &out); err == nil {
		t.Fatal("expected stale session to be evicted")
	}

	update, ok := writer.updates["s-stale"]
	if !ok {
		t.Fatal("expected stale session's warm-store row to be marked expired")
	}
	if update["status"] != domain.SessionExpired {
		t.Fatalf("expected status %q, got %v", domain.SessionExpired, update["status"])
	}
	if _, ok := writer.updates["s-fresh"]; ok {
		t.Fatal("fresh session should not have been marked expired")
	}
}

func TestSchedulerStartStopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	sched := NewScheduler(store, newFakeSessionStatusWriter(), time.Hour, 30*time.Minute)

	sched.Start()
	sched.Start() // no-op, must not panic or deadlock
	sched.Stop()
	sched.Stop() // no-op, must not panic or deadlock
}
