package domain

import "time"

type Direction string

const (
	DirLong  Direction = "LONG"
	DirShort Direction = "SHORT"
)

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is one tiered entry held by the strategy. This strategy only ever
// goes long; Direction exists so records stay unambiguous in storage.
type Position struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Direction   Direction      `json:"direction"`
	Level       int            `json:"level"`
	Quantity    int            `json:"quantity"`
	EntryPrice  float64        `json:"entry_price"`
	EntryTime   time.Time      `json:"entry_time"`
	MarginHeld  float64        `json:"margin_held"`
	Status      PositionStatus `json:"status"`
	ClosePrice  float64        `json:"close_price,omitempty"`
	CloseTime   time.Time      `json:"close_time,omitempty"`
	RealizedPnl float64        `json:"realized_pnl,omitempty"`
}

// Trade is an immutable record of one fill, open or close leg. Append-only.
type Trade struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	Action        string    `json:"action"` // "open" or "close"
	Level         int       `json:"level"`
	Quantity      int       `json:"quantity"`
	Price         float64   `json:"price"`
	Fee           float64   `json:"fee"`
	Margin        float64   `json:"margin"`
	RealizedPnl   float64   `json:"realized_pnl"`
	Reason        string    `json:"reason"`
	CloseToday    bool      `json:"close_today"`
	EstimatedFill bool      `json:"estimated_fill"`
	Time          time.Time `json:"time"`
}
