package handler

import (
	"net/http"

	"github.com/GM-Tomas/arbot/internal/arbitrage"
)

// OpportunitiesHandler serves recorded arbitrage opportunities.
type OpportunitiesHandler struct {
	scanner *arbitrage.Scanner
}

// NewOpportunitiesHandler creates an OpportunitiesHandler.
func NewOpportunitiesHandler(scanner *arbitrage.Scanner) *OpportunitiesHandler {
	return &OpportunitiesHandler{scanner: scanner}
}

// ListOpportunities responds with retained opportunities ordered by profit,
// highest first. The optional limit query parameter caps the result.
// GET /api/opportunities
func (h *OpportunitiesHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := h.scanner.GetOpportunities()

	limit := queryInt(r, "limit", 0)
	if limit > 0 && len(opps) > limit {
		opps = opps[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(opps),
		"opportunities": opps,
	})
}
