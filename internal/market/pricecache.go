// Package market holds the in-memory price state fed by the streaming feed:
// a staleness-aware latest-value cache and a bounded per-symbol history.
package market

import (
	"sync"
	"time"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// PriceCache is a concurrency-safe latest-value store keyed by symbol.
// Writes are last-write-wins; reads ignore entries older than maxAge.
// A single coarse lock guards the map; the data volume is small and the
// scan loop only takes short critical sections.
type PriceCache struct {
	mu      sync.Mutex
	entries map[string]domain.PricePoint
	maxAge  time.Duration
	now     func() time.Time
}

// NewPriceCache creates a PriceCache whose reads treat entries older than
// maxAge as absent.
func NewPriceCache(maxAge time.Duration) *PriceCache {
	return &PriceCache{
		entries: make(map[string]domain.PricePoint),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// WithNow replaces the cache's clock. Intended for tests.
func (pc *PriceCache) WithNow(now func() time.Time) *PriceCache {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.now = now
	return pc
}

// Update upserts the latest observation for a symbol. It overwrites the prior
// value unconditionally: a late-arriving older tick after a newer one wins,
// which is an accepted limitation of the feed's delivery model.
func (pc *PriceCache) Update(symbol string, price, volume float64, observedAt time.Time) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.entries[symbol] = domain.PricePoint{
		Symbol:     symbol,
		Price:      price,
		Volume:     volume,
		ObservedAt: observedAt,
	}
}

// Get returns the price for a symbol, or false when the symbol was never
// observed or its last observation is older than maxAge.
func (pc *PriceCache) Get(symbol string) (float64, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, ok := pc.entries[symbol]
	if !ok || pc.stale(entry) {
		return 0, false
	}
	return entry.Price, true
}

// GetPoint returns the full latest observation for a symbol, subject to the
// same staleness rule as Get.
func (pc *PriceCache) GetPoint(symbol string) (domain.PricePoint, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, ok := pc.entries[symbol]
	if !ok || pc.stale(entry) {
		return domain.PricePoint{}, false
	}
	return entry, true
}

// GetAll returns a snapshot of every symbol currently within maxAge. The
// returned map is a defensive copy; mutating it does not affect the cache.
func (pc *PriceCache) GetAll() map[string]float64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	out := make(map[string]float64, len(pc.entries))
	for sym, entry := range pc.entries {
		if pc.stale(entry) {
			continue
		}
		out[sym] = entry.Price
	}
	return out
}

// GetAllPoints is like GetAll but returns the full price points, including
// volume and observation time.
func (pc *PriceCache) GetAllPoints() map[string]domain.PricePoint {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	out := make(map[string]domain.PricePoint, len(pc.entries))
	for sym, entry := range pc.entries {
		if pc.stale(entry) {
			continue
		}
		out[sym] = entry
	}
	return out
}

// HasFreshData reports whether at least one entry is within maxAge.
func (pc *PriceCache) HasFreshData() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for _, entry := range pc.entries {
		if !pc.stale(entry) {
			return true
		}
	}
	return false
}

// stale reports whether an entry has aged out. Caller must hold pc.mu.
func (pc *PriceCache) stale(entry domain.PricePoint) bool {
	return pc.now().Sub(entry.ObservedAt) > pc.maxAge
}
