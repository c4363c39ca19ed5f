package arbitrage_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildFindsCompleteCycle(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())

	cycles := b.Build([]string{"BTCUSDT", "ETHUSDT", "BTCETH"})

	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1", len(cycles))
	}
	c := cycles[0]
	if c.LegA != "BTCUSDT" || c.LegB != "BTCETH" || c.LegC != "ETHUSDT" {
		t.Errorf("cycle = %+v", c)
	}
}

func TestBuildRequiresAllThreeLegs(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())

	// Without the ETHUSDT closing leg no cycle is possible.
	cycles := b.Build([]string{"BTCUSDT", "BTCETH"})
	if len(cycles) != 0 {
		t.Errorf("got %d cycles, want 0", len(cycles))
	}
}

func TestBuildKeepsBothOrientations(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())

	// Both cross orientations exist, so both routes are distinct cycles.
	cycles := b.Build([]string{"BTCUSDT", "ETHUSDT", "BTCETH", "ETHBTC"})
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want 2", len(cycles))
	}

	routes := map[string]bool{}
	for _, c := range cycles {
		routes[c.LegA+"/"+c.LegB+"/"+c.LegC] = true
	}
	if !routes["BTCUSDT/BTCETH/ETHUSDT"] || !routes["ETHUSDT/ETHBTC/BTCUSDT"] {
		t.Errorf("routes = %v", routes)
	}
}

func TestBuildEmptyUniverse(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())
	if cycles := b.Build(nil); len(cycles) != 0 {
		t.Errorf("got %d cycles from empty universe", len(cycles))
	}
}

func TestBuildTopRestrictsFirstLeg(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())
	universe := []string{"BTCUSDT", "ETHUSDT", "BTCETH", "ETHBTC"}

	cycles := b.BuildTop(universe, []string{"BTCUSDT"})
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1", len(cycles))
	}
	if cycles[0].LegA != "BTCUSDT" {
		t.Errorf("first leg = %q, want BTCUSDT", cycles[0].LegA)
	}

	// Cross and closing legs still come from the full universe, so the
	// filtered-out ETHUSDT remains usable as a closing leg.
	if cycles[0].LegC != "ETHUSDT" {
		t.Errorf("closing leg = %q, want ETHUSDT", cycles[0].LegC)
	}
}

func TestBuildIgnoresNonReferencePairs(t *testing.T) {
	b := arbitrage.NewBuilder("USDT", testLogger())

	// A universe of only cross pairs has no entry points.
	cycles := b.Build([]string{"BTCETH", "ETHBTC", "BNBBTC"})
	if len(cycles) != 0 {
		t.Errorf("got %d cycles, want 0", len(cycles))
	}
}
