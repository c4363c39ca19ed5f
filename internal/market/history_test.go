package market_test

import (
	"testing"
	"time"

	"github.com/GM-Tomas/arbot/internal/domain"
	"github.com/GM-Tomas/arbot/internal/market"
)

func TestHistoryRecordAndRecent(t *testing.T) {
	h := market.NewHistory(10)
	now := time.Now()

	h.Record(domain.PricePoint{Symbol: "BTCUSDT", Price: 50000, ObservedAt: now})
	h.Record(domain.PricePoint{Symbol: "BTCUSDT", Price: 50100, ObservedAt: now.Add(time.Second)})

	got := h.Recent("BTCUSDT")
	if len(got) != 2 {
		t.Fatalf("Recent returned %d points, want 2", len(got))
	}
	if got[0].Price != 50000 || got[1].Price != 50100 {
		t.Errorf("points out of order: %v", got)
	}
}

func TestHistoryEvictsOldestPastCapacity(t *testing.T) {
	h := market.NewHistory(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		h.Record(domain.PricePoint{
			Symbol:     "ETHUSDT",
			Price:      float64(3000 + i),
			ObservedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	got := h.Recent("ETHUSDT")
	if len(got) != 3 {
		t.Fatalf("Recent returned %d points, want capacity 3", len(got))
	}
	if got[0].Price != 3002 || got[2].Price != 3004 {
		t.Errorf("expected oldest evicted, got %v", got)
	}
}

func TestHistoryRecentReturnsCopy(t *testing.T) {
	h := market.NewHistory(10)
	h.Record(domain.PricePoint{Symbol: "BTCUSDT", Price: 50000, ObservedAt: time.Now()})

	got := h.Recent("BTCUSDT")
	got[0].Price = 0

	again := h.Recent("BTCUSDT")
	if again[0].Price != 50000 {
		t.Errorf("history mutated through returned slice: %v", again[0].Price)
	}
}

func TestHistoryUnknownSymbol(t *testing.T) {
	h := market.NewHistory(10)
	if got := h.Recent("NOPEUSDT"); len(got) != 0 {
		t.Errorf("Recent for unknown symbol = %v, want empty", got)
	}
}
