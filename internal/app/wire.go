package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
	"github.com/GM-Tomas/arbot/internal/bus"
	busredis "github.com/GM-Tomas/arbot/internal/bus/redis"
	"github.com/GM-Tomas/arbot/internal/config"
	"github.com/GM-Tomas/arbot/internal/domain"
	"github.com/GM-Tomas/arbot/internal/feed"
	"github.com/GM-Tomas/arbot/internal/market"
	"github.com/GM-Tomas/arbot/internal/universe"
)

// priceChannel is the bus channel every accepted tick is republished on.
const priceChannel = "arbot:prices"

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Bus        domain.SignalBus
	PriceCache *market.PriceCache
	History    *market.History
	Feed       *feed.BinanceFeed
	Scanner    *arbitrage.Scanner
	Builder    *arbitrage.Builder
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Signal bus: Redis when an address is configured, in-process otherwise.
	if cfg.Redis.Addr != "" {
		sbus, err := busredis.New(ctx, busredis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = sbus.Close() })
		deps.Bus = sbus
		logger.Info("signal bus: redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.Bus = bus.NewMemory()
		logger.Info("signal bus: in-process")
	}

	deps.PriceCache = market.NewPriceCache(cfg.Cache.MaxAge.Duration)
	deps.History = market.NewHistory(cfg.Scanner.HistoryCapacity)

	deps.Feed = feed.NewBinanceFeed(feed.Options{
		URL:           cfg.Binance.WsURL,
		Channel:       feed.Channel(cfg.Binance.Channel),
		KlineInterval: cfg.Binance.KlineInterval,
	}, logger)

	// Every accepted tick lands in the cache, the history ring, and on the
	// bus for WebSocket consumers.
	deps.Feed.AddListener(func(p domain.PricePoint) {
		deps.PriceCache.Update(p.Symbol, p.Price, p.Volume, p.ObservedAt)
		deps.History.Record(p)
		if payload, err := json.Marshal(p); err == nil {
			publishCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = deps.Bus.Publish(publishCtx, priceChannel, payload)
			cancel()
		}
	})

	deps.Builder = arbitrage.NewBuilder(cfg.Scanner.ReferenceCurrency, logger)

	deps.Scanner = arbitrage.NewScanner(arbitrage.ScannerOptions{
		TradingFeePct:   cfg.Scanner.TradingFeePct,
		SlippagePct:     cfg.Scanner.SlippagePct,
		MinProfitPct:    cfg.Scanner.MinProfitPct,
		InitialAmount:   cfg.Scanner.InitialAmount,
		ScanInterval:    cfg.Scanner.ScanInterval.Duration,
		HistoryCapacity: cfg.Scanner.HistoryCapacity,
	}, deps.PriceCache, deps.Feed, deps.Bus, logger)

	return deps, cleanup, nil
}

// resolveUniverse selects the symbol universe via the configured source.
// The stream source runs a short-lived full-market ticker feed; the REST
// source (and any failure) goes through the 24hr statistics endpoint with
// its static fallback.
func resolveUniverse(ctx context.Context, cfg *config.Config, logger *slog.Logger) universe.Universe {
	ref := cfg.Scanner.ReferenceCurrency
	topN := cfg.Universe.TopPairsCount

	if cfg.Universe.Source == "stream" {
		ranker := universe.NewStreamRanker(ref, cfg.Universe.StreamTimeout.Duration, logger)

		probe := feed.NewBinanceFeed(feed.Options{
			URL:     cfg.Binance.WsURL,
			Channel: feed.ChannelTickerArray,
		}, logger)
		probe.AddSnapshotListener(ranker.Observe)

		if err := probe.Start(); err != nil {
			logger.Warn("stream universe probe failed to start, falling back to rest",
				slog.String("error", err.Error()),
			)
		} else {
			defer probe.Stop()
			return ranker.Rank(ctx, topN)
		}
	}

	return universe.NewRestRanker(cfg.Binance.ApiURL, ref, logger).Rank(ctx, topN)
}

// cycleSymbols returns the deduplicated symbols across all cycle legs, in
// first-seen order. This is the subscription set for the feed.
func cycleSymbols(cycles []domain.TriangularCycle) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range cycles {
		for _, sym := range c.Symbols() {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}
