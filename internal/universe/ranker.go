// Package universe selects the symbol universe the scanner operates over:
// the complete set of tradable symbols plus a volume-ranked shortlist of
// reference-quoted pairs used to anchor cycle enumeration.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GM-Tomas/arbot/internal/domain"
)

// Universe pairs the full symbol set with the volume-ranked shortlist of
// reference-quoted pairs. Cross legs are validated against All; cycle entry
// points come from Top.
type Universe struct {
	All []string
	Top []string
}

// fallbackSymbols seeds the universe when the exchange cannot be reached.
// It mixes high-volume reference pairs with the cross pairs that connect
// them, so cycle enumeration still finds routes.
var fallbackSymbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "DOTUSDT", "LINKUSDT",
	"MATICUSDT", "LTCUSDT", "TRXUSDT", "ATOMUSDT", "UNIUSDT",
	"ETHBTC", "BNBBTC", "SOLBTC", "XRPBTC", "ADABTC",
	"DOGEBTC", "AVAXBTC", "DOTBTC", "LINKBTC", "LTCBTC",
	"BNBETH", "SOLETH", "LINKETH", "BTCUSDC", "ETHUSDC",
}

// RestRanker ranks symbols by 24h quote volume using the exchange's
// 24hr ticker statistics endpoint.
type RestRanker struct {
	baseURL    string
	ref        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRestRanker creates a ranker against the given REST API root, e.g.
// "https://api.binance.com". ref is the reference currency, e.g. "USDT".
func NewRestRanker(baseURL, ref string, logger *slog.Logger) *RestRanker {
	return &RestRanker{
		baseURL: strings.TrimRight(baseURL, "/"),
		ref:     strings.ToUpper(ref),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "volume_ranker")),
	}
}

// apiTicker is one entry of the 24hr ticker statistics response.
type apiTicker struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// Rank fetches 24h statistics for every tradable symbol and returns the full
// universe plus the topN reference-quoted pairs by quote volume. When the
// exchange is unreachable it logs the failure and returns the static
// fallback universe instead of an error.
func (r *RestRanker) Rank(ctx context.Context, topN int) Universe {
	stats, err := r.fetchTickerStats(ctx)
	if err != nil {
		r.logger.Warn("ticker stats unavailable, using fallback universe",
			slog.String("error", err.Error()),
			slog.Int("fallback_symbols", len(fallbackSymbols)),
		)
		return fallbackUniverse(r.ref, topN)
	}

	u := RankStats(stats, r.ref, topN)
	r.logger.Info("ranked symbol universe",
		slog.Int("all", len(u.All)),
		slog.Int("top", len(u.Top)),
	)
	return u
}

func (r *RestRanker) fetchTickerStats(ctx context.Context) ([]domain.TickerStat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, fmt.Errorf("universe: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("universe: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("universe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("universe: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var tickers []apiTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("universe: decode ticker stats: %w", err)
	}

	stats := make([]domain.TickerStat, 0, len(tickers))
	for _, t := range tickers {
		vol, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		stats = append(stats, domain.TickerStat{
			Symbol:      strings.ToUpper(t.Symbol),
			QuoteVolume: vol,
		})
	}
	return stats, nil
}

// RankStats builds a Universe from ticker statistics: All holds every
// symbol, Top the topN ref-quoted symbols ordered by quote volume.
func RankStats(stats []domain.TickerStat, ref string, topN int) Universe {
	ref = strings.ToUpper(ref)

	all := make([]string, 0, len(stats))
	refQuoted := make([]domain.TickerStat, 0, len(stats))
	for _, s := range stats {
		sym := strings.ToUpper(s.Symbol)
		all = append(all, sym)
		if strings.HasSuffix(sym, ref) && len(sym) > len(ref) {
			refQuoted = append(refQuoted, domain.TickerStat{Symbol: sym, QuoteVolume: s.QuoteVolume})
		}
	}

	sort.SliceStable(refQuoted, func(i, j int) bool {
		return refQuoted[i].QuoteVolume > refQuoted[j].QuoteVolume
	})
	if topN > 0 && len(refQuoted) > topN {
		refQuoted = refQuoted[:topN]
	}

	top := make([]string, 0, len(refQuoted))
	for _, s := range refQuoted {
		top = append(top, s.Symbol)
	}
	return Universe{All: all, Top: top}
}

func fallbackUniverse(ref string, topN int) Universe {
	all := append([]string(nil), fallbackSymbols...)
	var top []string
	for _, sym := range all {
		if strings.HasSuffix(sym, ref) {
			top = append(top, sym)
		}
	}
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	return Universe{All: all, Top: top}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
