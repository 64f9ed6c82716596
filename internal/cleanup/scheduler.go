// Package cleanup runs the background sweep that evicts hot-store session
// state abandoned mid-test. The warm-store row is the system of record: after
// dropping the hot projection the sweep marks the row expired, so a session
// that timed out server-side is distinguishable from one that simply
// finished.
package cleanup

import (
	"context"
	"log"
	"sync"
	"time"

	"adaptivetest/internal/domain"
	"adaptivetest/internal/hotstore"

	"go.mongodb.org/mongo-driver/bson"
)

// sessionProjection is the subset of the hot session projection the sweep
// needs; the session package keeps its own hot-state type unexported, so the
// sweep decodes just these two fields itself.
type sessionProjection struct {
	SessionID    string    `json:"session_id"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionStatusWriter is the minimal warm-store surface the sweep needs to
// mark an abandoned session's row expired. warmstore.SessionRepository
// satisfies this structurally.
type SessionStatusWriter interface {
	Update(ctx context.Context, id string, update bson.M) error
}

// Scheduler periodically evicts hot session state that has gone stale.
// Start/Stop are idempotent; the sweep loop sleeps in one-second ticks so
// Stop takes effect quickly instead of waiting out a long interval.
type Scheduler struct {
	store               *hotstore.Store
	sessions            SessionStatusWriter
	interval            time.Duration
	inactivityThreshold time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(store *hotstore.Store, sessions SessionStatusWriter, interval, inactivityThreshold time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if inactivityThreshold <= 0 {
		inactivityThreshold = 30 * time.Minute
	}
	return &Scheduler{store: store, sessions: sessions, interval: interval, inactivityThreshold: inactivityThreshold}
}

// Start launches the sweep loop as a daemon goroutine. A second call while
// already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Println("[cleanup] scheduler already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop()
	log.Printf("[cleanup] scheduler started (interval=%s, threshold=%s)", s.interval, s.inactivityThreshold)
}

// Stop signals the loop to exit and waits up to 5s for it to finish its
// current sweep.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
	}
	log.Println("[cleanup] scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	for {
		log.Println("[cleanup] running scheduled session sweep...")
		n, err := s.CleanupInactiveSessions(context.Background(), s.inactivityThreshold)
		if err != nil {
			log.Printf("[cleanup] sweep error: %v", err)
		} else {
			log.Printf("[cleanup] sweep complete: %d session(s) evicted", n)
		}

		if !s.sleepInterruptible(s.interval) {
			return
		}
	}
}

// sleepInterruptible sleeps in one-second ticks, returning false early if
// Stop was called mid-sleep.
func (s *Scheduler) sleepInterruptible(d time.Duration) bool {
	ticks := int(d / time.Second)
	if ticks < 1 {
		ticks = 1
	}
	for i := 0; i < ticks; i++ {
		select {
		case <-s.stopCh:
			return false
		case <-time.After(time.Second):
		}
	}
	return true
}

// CleanupInactiveSessions scans every hot session key and deletes those
// whose last activity is older than threshold. It is exposed directly so an
// admin endpoint can trigger an out-of-band sweep without waiting on the
// scheduler's interval.
func (s *Scheduler) CleanupInactiveSessions(ctx context.Context, threshold time.Duration) (int, error) {
	keys, err := s.store.Keys(ctx, "session:*:state")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-threshold)
	evicted := 0
	for _, key := range keys {
		var proj sessionProjection
		if err := s.store.GetStruct(ctx, key, &proj); err != nil {
			continue
		}
		if proj.LastActivity.IsZero() || proj.LastActivity.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			log.Printf("[cleanup] failed to delete stale session key %s: %v", key, err)
			continue
		}
		if s.sessions != nil && proj.SessionID != "" {
			expiredAt := time.Now()
			if err := s.sessions.Update(ctx, proj.SessionID, bson.M{"status": domain.SessionExpired, "last_activity": expiredAt}); err != nil {
				log.Printf("[cleanup] failed to mark session %s expired: %v", proj.SessionID, err)
			}
		}
		evicted++
	}
	return evicted, nil
}
