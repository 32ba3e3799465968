package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/harun/reagent/pkg/model"
)

// healthSnapshot is a cached healthy/unhealthy verdict for one model.
type healthSnapshot struct {
	healthy   bool
	expiresAt time.Time
}

// healthCache caches per-model health verdicts and re-evaluates them lazily
// once a snapshot expires.
type healthCache struct {
	defaultTTL time.Duration

	mu        sync.Mutex
	snapshots map[string]healthSnapshot
	now       func() time.Time
}

func newHealthCache(defaultTTL time.Duration) *healthCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &healthCache{
		defaultTTL: defaultTTL,
		snapshots:  make(map[string]healthSnapshot),
		now:        time.Now,
	}
}

// Healthy returns the cached verdict for a model, probing it when the
// snapshot is missing or expired. Models without a health check always count
// as healthy.
func (hc *healthCache) Healthy(ctx context.Context, m model.Model) bool {
	checker, ok := m.(model.HealthChecker)
	if !ok {
		return true
	}

	hc.mu.Lock()
	snapshot, cached := hc.snapshots[m.Name()]
	if cached && hc.now().Before(snapshot.expiresAt) {
		hc.mu.Unlock()
		return snapshot.healthy
	}
	hc.mu.Unlock()

	// Probe outside the lock; a slow health check must not block verdicts for
	// other models.
	healthy := checker.Healthy(ctx)

	ttl := checker.CacheFor()
	if ttl <= 0 {
		ttl = hc.defaultTTL
	}

	hc.mu.Lock()
	hc.snapshots[m.Name()] = healthSnapshot{
		healthy:   healthy,
		expiresAt: hc.now().Add(ttl),
	}
	hc.mu.Unlock()

	return healthy
}
