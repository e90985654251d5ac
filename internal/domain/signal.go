package domain

import "time"

type SignalType string

const (
	SignalBuyLevel1 SignalType = "buy_level_1"
	SignalBuyLevel2 SignalType = "buy_level_2"
	SignalSellClose SignalType = "sell_close"
	SignalAlert     SignalType = "alert"
)

// Signal is an immutable record of a detected strategy condition.
type Signal struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Type         SignalType `json:"type"`
	TriggerPrice float64    `json:"trigger_price"`
	BasePrice    float64    `json:"base_price"`
	DropPct      float64    `json:"drop_pct"`
	Quantity     int        `json:"quantity"`
	Executed     bool       `json:"executed"`
	Time         time.Time  `json:"time"`
}

// RiskSnapshot is a read-only view of the account risk counters.
type RiskSnapshot struct {
	DailyPnl       float64   `json:"daily_pnl"`
	Equity         float64   `json:"equity"`
	PeakEquity     float64   `json:"peak_equity"`
	Drawdown       float64   `json:"drawdown"`
	Breached       bool      `json:"breached"`
	BreachReason   string    `json:"breach_reason,omitempty"`
	SessionStarted time.Time `json:"session_started"`
}

// RiskEvent records a breach or a force-close for the audit trail.
type RiskEvent struct {
	ID       string    `json:"id"`
	Reason   string    `json:"reason"`
	DailyPnl float64   `json:"daily_pnl"`
	Drawdown float64   `json:"drawdown"`
	Time     time.Time `json:"time"`
}
