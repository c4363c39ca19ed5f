package handler

import (
	"net/http"
	"strings"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
	"github.com/GM-Tomas/arbot/internal/market"
)

// PricesHandler serves cached prices and per-symbol history.
type PricesHandler struct {
	scanner *arbitrage.Scanner
	history *market.History
}

// NewPricesHandler creates a PricesHandler. history may be nil when price
// history retention is disabled.
func NewPricesHandler(scanner *arbitrage.Scanner, history *market.History) *PricesHandler {
	return &PricesHandler{scanner: scanner, history: history}
}

// ListPrices responds with every fresh cached price point.
// GET /api/prices
func (h *PricesHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices := h.scanner.GetAllPrices()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(prices),
		"prices": prices,
	})
}

// GetPrice responds with the cached price of one symbol, including its
// recent history when retention is enabled.
// GET /api/prices/{symbol}
func (h *PricesHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	price, ok := h.scanner.GetPrice(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no fresh price for "+symbol)
		return
	}

	resp := map[string]any{
		"symbol": symbol,
		"price":  price,
	}
	if h.history != nil {
		resp["history"] = h.history.Recent(symbol)
	}
	writeJSON(w, http.StatusOK, resp)
}
