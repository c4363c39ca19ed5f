// Package arbitrage enumerates triangular trading cycles over a symbol
// universe and scans cached prices for profitable round trips.
package arbitrage

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// Builder enumerates triangular cycles anchored on a reference currency.
// A cycle buys asset I with the reference currency, swaps I for J on the
// cross pair, and sells J back into the reference currency. All three legs
// must exist as tradable symbols in the universe.
type Builder struct {
	ref    string
	logger *slog.Logger
}

// NewBuilder creates a Builder for the given reference currency, e.g. "USDT".
func NewBuilder(ref string, logger *slog.Logger) *Builder {
	return &Builder{
		ref:    strings.ToUpper(ref),
		logger: logger.With(slog.String("component", "cycle_builder")),
	}
}

// Build enumerates every cycle whose three legs all exist in the universe.
// Both orientations of a cross pair produce distinct cycles when both
// symbols exist, since the two routes execute different trades.
func (b *Builder) Build(universe []string) []domain.TriangularCycle {
	return b.build(universe, nil)
}

// BuildTop restricts the first leg to assets whose reference pair appears in
// topByVolume, while cross and closing legs may use the whole universe.
func (b *Builder) BuildTop(universe, topByVolume []string) []domain.TriangularCycle {
	allowed := make(map[string]struct{}, len(topByVolume))
	for _, sym := range topByVolume {
		allowed[strings.ToUpper(sym)] = struct{}{}
	}
	return b.build(universe, allowed)
}

func (b *Builder) build(universe []string, firstLegAllowed map[string]struct{}) []domain.TriangularCycle {
	exists := make(map[string]struct{}, len(universe))
	for _, sym := range universe {
		exists[strings.ToUpper(sym)] = struct{}{}
	}

	// Assets quoted in the reference currency are the cycle entry points.
	var bases []string
	for sym := range exists {
		if base, ok := strings.CutSuffix(sym, b.ref); ok && base != "" {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)

	var cycles []domain.TriangularCycle
	for _, first := range bases {
		legA := first + b.ref
		if firstLegAllowed != nil {
			if _, ok := firstLegAllowed[legA]; !ok {
				continue
			}
		}
		for _, second := range bases {
			if second == first {
				continue
			}
			legB := first + second
			if _, ok := exists[legB]; !ok {
				continue
			}
			cycles = append(cycles, domain.TriangularCycle{
				LegA: legA,
				LegB: legB,
				LegC: second + b.ref,
			})
		}
	}

	b.logger.Info("built triangular cycles",
		slog.Int("universe", len(universe)),
		slog.Int("entry_assets", len(bases)),
		slog.Int("cycles", len(cycles)),
	)
	return cycles
}
