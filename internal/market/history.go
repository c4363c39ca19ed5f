package market

import (
	"sync"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// History maintains a bounded per-symbol list of recent price observations
// for the dashboard's sparkline view. Oldest points are evicted first once a
// symbol reaches capacity.
type History struct {
	mu       sync.RWMutex
	points   map[string][]domain.PricePoint
	capacity int
}

// NewHistory creates a History keeping up to capacity points per symbol.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		points:   make(map[string][]domain.PricePoint),
		capacity: capacity,
	}
}

// Record appends an observation for its symbol, evicting the oldest point
// when the symbol's history is full.
func (h *History) Record(point domain.PricePoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pts := append(h.points[point.Symbol], point)
	if len(pts) > h.capacity {
		pts = pts[len(pts)-h.capacity:]
	}
	h.points[point.Symbol] = pts
}

// Recent returns a copy of the recorded points for a symbol, oldest first.
// The returned slice is safe to mutate.
func (h *History) Recent(symbol string) []domain.PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.points[symbol]
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(src))
	copy(out, src)
	return out
}

// Symbols returns the symbols with at least one recorded point.
func (h *History) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.points))
	for sym := range h.points {
		out = append(out, sym)
	}
	return out
}
