package universe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// minStreamCandidates is the number of distinct symbols a snapshot must
// cover before the stream ranker considers it usable.
const minStreamCandidates = 10

// StreamRanker derives the universe from full-market ticker snapshots
// arriving on the stream instead of a REST call. It accumulates statistics
// until enough distinct symbols are seen or the deadline passes.
type StreamRanker struct {
	ref     string
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	stats map[string]domain.TickerStat
	ready chan struct{}
	once  sync.Once
}

// NewStreamRanker creates a StreamRanker. Register Observe as a snapshot
// listener on the feed before calling Rank.
func NewStreamRanker(ref string, timeout time.Duration, logger *slog.Logger) *StreamRanker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StreamRanker{
		ref:     ref,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "stream_ranker")),
		stats:   make(map[string]domain.TickerStat),
		ready:   make(chan struct{}),
	}
}

// Observe folds a full-market snapshot into the accumulated statistics.
// Later snapshots overwrite earlier entries for the same symbol.
func (r *StreamRanker) Observe(stats []domain.TickerStat) {
	r.mu.Lock()
	for _, s := range stats {
		if s.Symbol == "" {
			continue
		}
		r.stats[s.Symbol] = s
	}
	n := len(r.stats)
	r.mu.Unlock()

	if n >= minStreamCandidates {
		r.once.Do(func() { close(r.ready) })
	}
}

// Rank blocks until enough symbols accumulated or the timeout elapses, then
// ranks whatever was seen. With no usable data it falls back to the static
// universe, same as the REST path.
func (r *StreamRanker) Rank(ctx context.Context, topN int) Universe {
	select {
	case <-r.ready:
	case <-time.After(r.timeout):
		r.logger.Warn("stream universe deadline reached before enough symbols accumulated")
	case <-ctx.Done():
	}

	r.mu.Lock()
	stats := make([]domain.TickerStat, 0, len(r.stats))
	for _, s := range r.stats {
		stats = append(stats, s)
	}
	r.mu.Unlock()

	if len(stats) == 0 {
		r.logger.Warn("no stream statistics, using fallback universe")
		return fallbackUniverse(r.ref, topN)
	}

	u := RankStats(stats, r.ref, topN)
	r.logger.Info("ranked symbol universe from stream",
		slog.Int("all", len(u.All)),
		slog.Int("top", len(u.Top)),
	)
	return u
}
