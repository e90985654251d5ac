package domain

import "time"

// Phase is the per-symbol strategy state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseWatching  Phase = "watching"
	PhasePosition1 Phase = "position_1"
	PhasePosition2 Phase = "position_2"
	PhaseClosing   Phase = "closing"
)

// SymbolState is the runtime state for one monitored symbol. It is owned
// exclusively by the strategy engine and mutated only inside a single
// evaluation step per tick; two ticks for the same symbol never overlap.
type SymbolState struct {
	Symbol        string     `json:"symbol"`
	Phase         Phase      `json:"phase"`
	BasePrice     float64    `json:"base_price"`
	BaseSample    bool       `json:"base_synthesized"`
	CurrentPrice  float64    `json:"current_price"`
	DropPct       float64    `json:"drop_pct"`
	OpenPositions []Position `json:"open_positions"`
	LastAlertSent bool       `json:"last_alert_sent"`
	LastAlertTime time.Time  `json:"last_alert_time"`
	Stale         bool       `json:"stale"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OpenQuantity sums the quantity across open positions.
func (s *SymbolState) OpenQuantity() int {
	total := 0
	for _, p := range s.OpenPositions {
		total += p.Quantity
	}
	return total
}

// HasLevel reports whether a tier at the given level is already open.
// The edge-trigger guard: a tier never re-fires while it is held.
func (s *SymbolState) HasLevel(level int) bool {
	for _, p := range s.OpenPositions {
		if p.Level == level {
			return true
		}
	}
	return false
}
