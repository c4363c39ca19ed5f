package handler

import (
	"net/http"
	"time"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
)

// StatusHandler serves a scanner status summary for the dashboard.
type StatusHandler struct {
	scanner   *arbitrage.Scanner
	mode      string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(scanner *arbitrage.Scanner, mode string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{scanner: scanner, mode: mode, startedAt: startedAt}
}

// GetStatus responds with the current scanner state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.scanner.GetStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":              h.mode,
		"feed_running":      st.FeedRunning,
		"monitored_symbols": st.MonitoredSymbolCount,
		"cycles":            st.CycleCount,
		"opportunities":     st.OpportunityCount,
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
	})
}
