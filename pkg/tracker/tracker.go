// Package tracker counts network and cache outcomes per provider.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*counters
}

type counters struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	apiSuccess  atomic.Int64
	apiFailures atomic.Int64
	retries     atomic.Int64
}

// ProviderStats is a point-in-time copy of one provider's counters.
type ProviderStats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_failures"`
	Retries     int64 `json:"retries"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*counters),
	}
}

// get returns the counters for a provider, creating them if needed.
func (t *Tracker) get(provider string) *counters {
	t.mu.RLock()
	c, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.stats[provider]; ok {
		return c
	}
	c = &counters{}
	t.stats[provider] = c
	return c
}

func (t *Tracker) TrackCacheHit(provider string)   { t.get(provider).cacheHits.Add(1) }
func (t *Tracker) TrackCacheMiss(provider string)  { t.get(provider).cacheMisses.Add(1) }
func (t *Tracker) TrackAPISuccess(provider string) { t.get(provider).apiSuccess.Add(1) }
func (t *Tracker) TrackAPIFailure(provider string) { t.get(provider).apiFailures.Add(1) }
func (t *Tracker) TrackRetry(provider string)      { t.get(provider).retries.Add(1) }

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, c := range t.stats {
		result[k] = ProviderStats{
			CacheHits:   c.cacheHits.Load(),
			CacheMisses: c.cacheMisses.Load(),
			APISuccess:  c.apiSuccess.Load(),
			APIFailures: c.apiFailures.Load(),
			Retries:     c.retries.Load(),
		}
	}
	return result
}
