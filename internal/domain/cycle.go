package domain

import "time"

// TriangularCycle is a closed three-leg conversion path starting and ending
// in the reference currency: reference -> first asset (LegA), first asset ->
// second asset (LegB), second asset -> reference (LegC). Cycles are immutable
// once built; the cycle list is replaced wholesale on universe change.
type TriangularCycle struct {
	LegA string `json:"leg_a"`
	LegB string `json:"leg_b"`
	LegC string `json:"leg_c"`
}

// Route renders the cycle as a human-readable conversion path.
func (c TriangularCycle) Route() string {
	return c.LegA + " -> " + c.LegB + " -> " + c.LegC
}

// Symbols returns the three leg symbols in order.
func (c TriangularCycle) Symbols() [3]string {
	return [3]string{c.LegA, c.LegB, c.LegC}
}

// Opportunity is a profitable round trip through a triangular cycle found by
// a single scan pass.
type Opportunity struct {
	ID            string             `json:"id"`
	Cycle         TriangularCycle    `json:"cycle"`
	Route         string             `json:"route"`
	ProfitPercent float64            `json:"profit_percent"`
	LegPrices     map[string]float64 `json:"leg_prices"`
	InitialAmount float64            `json:"initial_amount"`
	FinalAmount   float64            `json:"final_amount"`
	ObservedAt    time.Time          `json:"observed_at"`
}

// Status is the read-only health snapshot exposed to the API layer.
type Status struct {
	FeedRunning          bool `json:"feed_running"`
	MonitoredSymbolCount int  `json:"monitored_symbol_count"`
	CycleCount           int  `json:"cycle_count"`
	OpportunityCount     int  `json:"opportunity_count"`
}
