package arbitrage

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GM-Tomas/arbot/internal/domain"
	"github.com/GM-Tomas/arbot/internal/market"
)

// OpportunityChannel is the bus channel profitable cycles are published on.
const OpportunityChannel = "arbot:opportunities"

// ScannerOptions holds the trading parameters of a Scanner.
type ScannerOptions struct {
	// TradingFeePct is the exchange fee per leg, in percent.
	TradingFeePct float64
	// SlippagePct is the assumed adverse price movement per leg, in percent.
	SlippagePct float64
	// MinProfitPct is the threshold a round trip must exceed to be reported.
	MinProfitPct float64
	// InitialAmount is the notional the simulation starts with.
	InitialAmount float64
	// ScanInterval is the period of the Run loop.
	ScanInterval time.Duration
	// HistoryCapacity bounds the retained opportunity list.
	HistoryCapacity int
}

// Scanner evaluates every known triangular cycle against the price cache and
// records round trips whose simulated profit clears the threshold. Profitable
// cycles are also published on the signal bus when one is attached.
type Scanner struct {
	opts   ScannerOptions
	cache  *market.PriceCache
	feed   domain.FeedStatus
	bus    domain.SignalBus
	logger *slog.Logger

	mu            sync.RWMutex
	cycles        []domain.TriangularCycle
	opportunities []domain.Opportunity

	now func() time.Time
}

// NewScanner creates a Scanner over the given price cache. The feed is only
// consulted for status reporting; bus may be nil to disable publishing.
func NewScanner(opts ScannerOptions, cache *market.PriceCache, feed domain.FeedStatus, bus domain.SignalBus, logger *slog.Logger) *Scanner {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = 100
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 5 * time.Second
	}
	return &Scanner{
		opts:   opts,
		cache:  cache,
		feed:   feed,
		bus:    bus,
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
	}
}

// SetCycles atomically replaces the cycle set under evaluation.
func (s *Scanner) SetCycles(cycles []domain.TriangularCycle) {
	set := append([]domain.TriangularCycle(nil), cycles...)
	s.mu.Lock()
	s.cycles = set
	s.mu.Unlock()
	s.logger.Info("cycle set replaced", slog.Int("cycles", len(set)))
}

// Cycles returns a copy of the current cycle set.
func (s *Scanner) Cycles() []domain.TriangularCycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TriangularCycle(nil), s.cycles...)
}

// Run scans on a fixed interval until the context is canceled.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.ScanInterval)
	defer ticker.Stop()

	s.logger.Info("scanner started", slog.Duration("interval", s.opts.ScanInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan evaluates every cycle once against current cached prices. A cycle
// with a missing or unusable leg price is skipped; one bad cycle never
// aborts the pass.
func (s *Scanner) Scan(ctx context.Context) {
	s.mu.RLock()
	cycles := s.cycles
	s.mu.RUnlock()

	if !s.cache.HasFreshData() {
		s.logger.Debug("no fresh prices, skipping scan")
		return
	}

	found := 0
	for _, cycle := range cycles {
		opp, ok := s.evaluateCycle(cycle)
		if !ok {
			continue
		}
		found++
		s.record(ctx, opp)
	}

	if found > 0 {
		s.logger.Info("scan complete", slog.Int("cycles", len(cycles)), slog.Int("opportunities", found))
	}
}

// evaluateCycle simulates the round trip: buy the first asset with the
// reference currency, swap it on the cross pair, sell the second asset back.
// Fees and slippage apply on every leg.
func (s *Scanner) evaluateCycle(cycle domain.TriangularCycle) (domain.Opportunity, bool) {
	priceA, okA := s.cache.Get(cycle.LegA)
	priceB, okB := s.cache.Get(cycle.LegB)
	priceC, okC := s.cache.Get(cycle.LegC)
	if !okA || !okB || !okC {
		return domain.Opportunity{}, false
	}
	if priceA <= 0 || priceB <= 0 || priceC <= 0 {
		return domain.Opportunity{}, false
	}

	feeKeep := 1 - s.opts.TradingFeePct/100
	slip := s.opts.SlippagePct / 100

	amount := s.opts.InitialAmount

	// Leg A: buy, so slippage raises the effective price.
	buyPrice := priceA * (1 + slip)
	amount = amount * feeKeep / buyPrice

	// Leg B: sell on the cross pair, slippage lowers the effective price.
	sellPriceB := priceB * (1 - slip)
	amount = amount * feeKeep * sellPriceB

	// Leg C: sell back into the reference currency.
	sellPriceC := priceC * (1 - slip)
	amount = amount * feeKeep * sellPriceC

	profitPct := (amount - s.opts.InitialAmount) / s.opts.InitialAmount * 100
	if profitPct <= s.opts.MinProfitPct {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:            uuid.Must(uuid.NewRandom()).String(),
		Cycle:         cycle,
		Route:         cycle.Route(),
		ProfitPercent: profitPct,
		LegPrices: map[string]float64{
			cycle.LegA: priceA,
			cycle.LegB: priceB,
			cycle.LegC: priceC,
		},
		InitialAmount: s.opts.InitialAmount,
		FinalAmount:   amount,
		ObservedAt:    s.now(),
	}, true
}

// record appends the opportunity, evicting the oldest past capacity, and
// publishes it on the bus when one is attached.
func (s *Scanner) record(ctx context.Context, opp domain.Opportunity) {
	s.mu.Lock()
	s.opportunities = append(s.opportunities, opp)
	if excess := len(s.opportunities) - s.opts.HistoryCapacity; excess > 0 {
		s.opportunities = append([]domain.Opportunity(nil), s.opportunities[excess:]...)
	}
	s.mu.Unlock()

	s.logger.Info("opportunity found",
		slog.String("route", opp.Route),
		slog.Float64("profit_pct", opp.ProfitPercent),
	)

	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(opp)
	if err != nil {
		s.logger.Error("marshal opportunity", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, OpportunityChannel, payload); err != nil {
		s.logger.Warn("publish opportunity", slog.String("error", err.Error()))
	}
}

// GetOpportunities returns retained opportunities ordered by profit,
// highest first. Equal profits keep their discovery order. Sorting happens
// on read so the stored history stays in discovery order for retention
// eviction, while every consumer sees the best opportunities first.
func (s *Scanner) GetOpportunities() []domain.Opportunity {
	s.mu.RLock()
	out := append([]domain.Opportunity(nil), s.opportunities...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProfitPercent > out[j].ProfitPercent
	})
	return out
}

// GetPrice returns the cached price of a symbol.
func (s *Scanner) GetPrice(symbol string) (float64, bool) {
	return s.cache.Get(symbol)
}

// GetAllPrices returns every fresh cached price point.
func (s *Scanner) GetAllPrices() map[string]domain.PricePoint {
	return s.cache.GetAllPoints()
}

// GetStatus summarizes the scanner for status endpoints.
func (s *Scanner) GetStatus() domain.Status {
	s.mu.RLock()
	cycleCount := len(s.cycles)
	oppCount := len(s.opportunities)
	s.mu.RUnlock()

	running := false
	if s.feed != nil {
		running = s.feed.IsRunning()
	}
	return domain.Status{
		FeedRunning:          running,
		MonitoredSymbolCount: len(s.cache.GetAll()),
		CycleCount:           cycleCount,
		OpportunityCount:     oppCount,
	}
}
