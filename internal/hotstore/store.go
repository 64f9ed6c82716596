package hotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared Redis client with the JSON-struct-cache and
// set-if-absent-lock idioms the rest of this service depends on.
type Store struct {
	client *redis.Client
}

func NewStore() *Store {
	return &Store{client: Client}
}

// NewStoreWithClient builds a Store around an already-configured client,
// for tests and for any caller wiring up a non-default Redis connection.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func sessionKey(sessionID string) string { return "session:" + sessionID + ":state" }
func lockKey(sessionID, questionID string) string {
	return "lock:" + sessionID + ":" + questionID
}
func poolKey(poolID string) string       { return "pool:" + poolID }
func questionKey(questionID string) string { return "question:" + questionID }

// SaveStruct JSON-marshals model and stores it at key with the given TTL.
func (s *Store) SaveStruct(ctx context.Context, key string, model any, ttl time.Duration) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal struct for cache key %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// GetStruct JSON-unmarshals the value at key into out. Returns
// redis.Nil-wrapped error on miss; callers should treat any error as a miss.
func (s *Store) GetStruct(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

// AcquireLock sets key lock:{session_id}:{question_id} only if absent, the
// at-most-once primitive backing submission idempotency.
func (s *Store) AcquireLock(ctx context.Context, sessionID, questionID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, lockKey(sessionID, questionID), "1", ttl).Result()
}

func (s *Store) ReleaseLock(ctx context.Context, sessionID, questionID string) error {
	return s.Delete(ctx, lockKey(sessionID, questionID))
}

func (s *Store) SessionKey(sessionID string) string     { return sessionKey(sessionID) }
func (s *Store) PoolKey(poolID string) string           { return poolKey(poolID) }
func (s *Store) QuestionKey(questionID string) string   { return questionKey(questionID) }

// Stats reports coarse per-namespace key counts (via KEYS and DBSIZE). The
// health endpoint calls it only as a Tier 1 liveness probe and does not
// return the counts.
type Stats struct {
	ActiveSessions int     `json:"active_sessions"`
	ActiveLocks    int     `json:"active_locks"`
	CachedPools    int     `json:"cached_pools"`
	CachedQuestions int    `json:"cached_questions"`
	TotalKeys      int64   `json:"total_keys"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	sessions, err := s.Keys(ctx, "session:*:state")
	if err != nil {
		return stats, err
	}
	locks, err := s.Keys(ctx, "lock:*")
	if err != nil {
		return stats, err
	}
	pools, err := s.Keys(ctx, "pool:*")
	if err != nil {
		return stats, err
	}
	questions, err := s.Keys(ctx, "question:*")
	if err != nil {
		return stats, err
	}
	dbSize, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return stats, err
	}
	stats.ActiveSessions = len(sessions)
	stats.ActiveLocks = len(locks)
	stats.CachedPools = len(pools)
	stats.CachedQuestions = len(questions)
	stats.TotalKeys = dbSize
	return stats, nil
}
