package handler

import (
	"net/http"
	"time"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
)

// defaultDashboardOpps caps the opportunity list in the combined snapshot.
const defaultDashboardOpps = 20

// DashboardHandler serves a single combined snapshot so a dashboard can
// render with one request instead of three.
type DashboardHandler struct {
	scanner   *arbitrage.Scanner
	mode      string
	startedAt time.Time
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(scanner *arbitrage.Scanner, mode string, startedAt time.Time) *DashboardHandler {
	return &DashboardHandler{scanner: scanner, mode: mode, startedAt: startedAt}
}

// GetDashboard responds with status, prices, and top opportunities in one
// payload.
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	st := h.scanner.GetStatus()
	prices := h.scanner.GetAllPrices()
	opps := h.scanner.GetOpportunities()

	var avgProfit, maxProfit float64
	if len(opps) > 0 {
		for _, o := range opps {
			avgProfit += o.ProfitPercent
			if o.ProfitPercent > maxProfit {
				maxProfit = o.ProfitPercent
			}
		}
		avgProfit /= float64(len(opps))
	}

	limit := queryInt(r, "limit", defaultDashboardOpps)
	if limit > 0 && len(opps) > limit {
		opps = opps[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": map[string]any{
			"mode":              h.mode,
			"feed_running":      st.FeedRunning,
			"monitored_symbols": st.MonitoredSymbolCount,
			"cycles":            st.CycleCount,
			"opportunities":     st.OpportunityCount,
			"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
		},
		"avg_profit_pct": avgProfit,
		"max_profit_pct": maxProfit,
		"prices":        prices,
		"opportunities": opps,
	})
}
