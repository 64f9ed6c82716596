// Package cache implements the three-tier question-pool waterfall: hot
// store (Redis) -> warm store (MongoDB) -> remote source, with write-through
// on miss and atomic hit/miss counters.
package cache

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	"adaptivetest/internal/config"
	"adaptivetest/internal/domain"
	"adaptivetest/internal/hotstore"
	"adaptivetest/internal/remote"
	"adaptivetest/internal/warmstore"
)

type Stats struct {
	HotHits    int64 `json:"redis_hits"`
	HotMisses  int64 `json:"redis_misses"`
	WarmHits   int64 `json:"supabase_hits"`
	WarmMisses int64 `json:"supabase_misses"`
	RemoteCalls int64 `json:"external_api_calls"`
	TotalRequests int64 `json:"total_requests"`
}

type StatsReport struct {
	Stats
	HotHitRate     float64 `json:"hot_hit_rate"`
	WarmHitRate    float64 `json:"warm_hit_rate"`
	RemoteCallRate float64 `json:"remote_call_rate"`
	OverallHitRate float64 `json:"overall_cache_hit_rate"`
}

type counters struct {
	hotHits, hotMisses       int64
	warmHits, warmMisses     int64
	remoteCalls, totalRequests int64
}

// Manager presents the waterfall read plus invalidate/refresh/warmup. It is
// safe for concurrent use: stats are tracked with sync/atomic.
type Manager struct {
	hot    *hotstore.Store
	warm   *warmstore.PoolRepository
	remote *remote.Client
	cfg    config.CacheConfig
	counters
}

func NewManager(hot *hotstore.Store, warm *warmstore.PoolRepository, remoteClient *remote.Client, cfg config.CacheConfig) *Manager {
	return &Manager{hot: hot, warm: warm, remote: remoteClient, cfg: cfg}
}

// GetPoolByID resolves a pool directly by its id, for callers (the session
// coordinator) that only hold the id, not the (level, level_id) pair.
// Pools created by bulk upload ("upload_{uuid}") live only in the hot/warm
// tiers - there is no remote node to fall back to for them.
func (m *Manager) GetPoolByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	atomic.AddInt64(&m.totalRequests, 1)

	if pool, ok := m.readHot(ctx, poolID); ok {
		atomic.AddInt64(&m.hotHits, 1)
		return pool, nil
	}
	atomic.AddInt64(&m.hotMisses, 1)

	if pool, ok := m.readWarm(ctx, poolID); ok {
		atomic.AddInt64(&m.warmHits, 1)
		m.writeHot(ctx, *pool)
		return pool, nil
	}
	atomic.AddInt64(&m.warmMisses, 1)

	level, levelID, ok := splitPoolID(poolID)
	if !ok || level == "upload" {
		return nil, nil
	}
	atomic.AddInt64(&m.remoteCalls, 1)
	pool, err := m.remote.FetchPool(ctx, level, levelID, true, 100)
	if err != nil {
		log.Printf("[cache] remote fetch failed for %s: %v", poolID, err)
		return nil, nil
	}
	if pool == nil {
		return nil, nil
	}
	m.writeThrough(ctx, *pool)
	return pool, nil
}

func splitPoolID(poolID string) (level, levelID string, ok bool) {
	idx := strings.IndexByte(poolID, '_')
	if idx < 0 {
		return "", "", false
	}
	return poolID[:idx], poolID[idx+1:], true
}

// GetQuestionPool runs the read waterfall for pool "{level}_{level_id}".
func (m *Manager) GetQuestionPool(ctx context.Context, level, levelID string, fetchAllPages bool) (*domain.Pool, error) {
	atomic.AddInt64(&m.totalRequests, 1)
	poolID := domain.PoolID(level, levelID)

	if pool, ok := m.readHot(ctx, poolID); ok {
		atomic.AddInt64(&m.hotHits, 1)
		return pool, nil
	}
	atomic.AddInt64(&m.hotMisses, 1)

	if pool, ok := m.readWarm(ctx, poolID); ok {
		atomic.AddInt64(&m.warmHits, 1)
		m.writeHot(ctx, *pool)
		return pool, nil
	}
	atomic.AddInt64(&m.warmMisses, 1)

	atomic.AddInt64(&m.remoteCalls, 1)
	pool, err := m.remote.FetchPool(ctx, level, levelID, fetchAllPages, 100)
	if err != nil {
		log.Printf("[cache] remote fetch failed for %s: %v", poolID, err)
		return nil, nil
	}
	if pool == nil {
		return nil, nil
	}

	m.writeThrough(ctx, *pool)
	return pool, nil
}

func (m *Manager) readHot(ctx context.Context, poolID string) (*domain.Pool, bool) {
	var pool domain.Pool
	if err := m.hot.GetStruct(ctx, m.hot.PoolKey(poolID), &pool); err != nil {
		return nil, false
	}
	pool.Origin = "hot"
	return &pool, true
}

func (m *Manager) readWarm(ctx context.Context, poolID string) (*domain.Pool, bool) {
	pool, err := m.warm.Get(ctx, poolID)
	if err != nil {
		return nil, false
	}
	return pool, true
}

func (m *Manager) writeHot(ctx context.Context, pool domain.Pool) {
	if err := m.hot.SaveStruct(ctx, m.hot.PoolKey(pool.ID), pool, m.cfg.HotPoolTTL); err != nil {
		log.Printf("[cache] failed to write-through pool %s to hot store: %v", pool.ID, err)
	}
}

// writeThrough persists a freshly-fetched pool to the warm tier first, then
// the hot tier - the more durable write happens first so a crash mid-write
// leaves the more reliable tier populated.
func (m *Manager) writeThrough(ctx context.Context, pool domain.Pool) {
	if err := m.warm.Put(ctx, pool, m.cfg.WarmPoolTTL); err != nil {
		log.Printf("[cache] failed to write-through pool %s to warm store: %v", pool.ID, err)
	}
	m.writeHot(ctx, pool)
}

// Invalidate clears a pool from both tiers. Per-tier failures don't abort
// the other clear.
func (m *Manager) Invalidate(ctx context.Context, level, levelID string) bool {
	poolID := domain.PoolID(level, levelID)
	success := true

	if err := m.hot.Delete(ctx, m.hot.PoolKey(poolID)); err != nil {
		log.Printf("[cache] failed to invalidate hot pool %s: %v", poolID, err)
		success = false
	}
	if err := m.warm.Delete(ctx, poolID); err != nil {
		log.Printf("[cache] failed to invalidate warm pool %s: %v", poolID, err)
		success = false
	}
	return success
}

// Refresh invalidates then re-fetches, which forces a Tier 3 round trip.
func (m *Manager) Refresh(ctx context.Context, level, levelID string) (*domain.Pool, error) {
	m.Invalidate(ctx, level, levelID)
	return m.GetQuestionPool(ctx, level, levelID, true)
}

type WarmupResult struct {
	PoolID string `json:"pool_id"`
	Status string `json:"status"`
	Questions int `json:"questions,omitempty"`
	Error  string `json:"error,omitempty"`
}

type WarmupReport struct {
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Details []WarmupResult `json:"details"`
}

// Warmup drives the read path for every requested pool, accumulating
// per-pool outcomes without aborting the batch on a single failure.
func (m *Manager) Warmup(ctx context.Context, pools [][2]string) WarmupReport {
	var report WarmupReport
	for _, pair := range pools {
		level, levelID := pair[0], pair[1]
		poolID := domain.PoolID(level, levelID)

		pool, err := m.GetQuestionPool(ctx, level, levelID, true)
		switch {
		case err != nil:
			report.Failed++
			report.Details = append(report.Details, WarmupResult{PoolID: poolID, Status: "error", Error: err.Error()})
		case pool == nil:
			report.Failed++
			report.Details = append(report.Details, WarmupResult{PoolID: poolID, Status: "failed", Error: "no data returned"})
		default:
			report.Success++
			report.Details = append(report.Details, WarmupResult{PoolID: poolID, Status: "success", Questions: pool.TotalCount})
		}
	}
	return report
}

func (m *Manager) Stats() StatsReport {
	s := Stats{
		HotHits:       atomic.LoadInt64(&m.hotHits),
		HotMisses:     atomic.LoadInt64(&m.hotMisses),
		WarmHits:      atomic.LoadInt64(&m.warmHits),
		WarmMisses:    atomic.LoadInt64(&m.warmMisses),
		RemoteCalls:   atomic.LoadInt64(&m.remoteCalls),
		TotalRequests: atomic.LoadInt64(&m.totalRequests),
	}
	report := StatsReport{Stats: s}
	if s.TotalRequests == 0 {
		return report
	}
	total := float64(s.TotalRequests)
	report.HotHitRate = round2(float64(s.HotHits) / total * 100)
	report.WarmHitRate = round2(float64(s.WarmHits) / total * 100)
	report.RemoteCallRate = round2(float64(s.RemoteCalls) / total * 100)
	report.OverallHitRate = round2(float64(s.HotHits+s.WarmHits) / total * 100)
	return report
}

func (m *Manager) ResetStats() {
	atomic.StoreInt64(&m.hotHits, 0)
	atomic.StoreInt64(&m.hotMisses, 0)
	atomic.StoreInt64(&m.warmHits, 0)
	atomic.StoreInt64(&m.warmMisses, 0)
	atomic.StoreInt64(&m.remoteCalls, 0)
	atomic.StoreInt64(&m.totalRequests, 0)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
