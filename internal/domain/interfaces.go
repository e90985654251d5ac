package domain

import (
	"context"
	"time"
)

// MarketDataSource is the read contract against the quote vendor. The
// adapter's HTTP details stay behind this interface.
type MarketDataSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetMinuteBars(ctx context.Context, symbol string, date time.Time) ([]Bar, error)
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// ExecutionGateway receives every Signal and Trade the engine emits and fans
// them out to persistence and notification channels. Delivery is
// at-least-once and idempotent by record id; a failed delivery never rolls
// back the state transition that produced the record.
type ExecutionGateway interface {
	RecordSignal(ctx context.Context, sig *Signal) error
	RecordTrade(ctx context.Context, trade *Trade) error
	SavePosition(ctx context.Context, pos *Position) error
	RecordRiskEvent(ctx context.Context, ev *RiskEvent) error
	Notify(ctx context.Context, event *NotifyEvent) error
}

// NotifyEvent is one rendered notification for the outbound channels.
type NotifyEvent struct {
	Kind    string    `json:"kind"`
	Symbol  string    `json:"symbol"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	HTML    string    `json:"html,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier is one outbound channel (Telegram, websocket hub, log).
type Notifier interface {
	Send(ctx context.Context, event *NotifyEvent) error
}

// PositionRepository persists tiered positions.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	ListPositions(ctx context.Context, symbol string, status PositionStatus, limit int) ([]*Position, error)
}

// TradeRepository persists fills. Append-only.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, symbol string, limit int) ([]*Trade, error)
}

// SignalRepository persists detected conditions. Append-only.
type SignalRepository interface {
	SaveSignal(ctx context.Context, sig *Signal) error
	ListSignals(ctx context.Context, symbol string, limit int) ([]*Signal, error)
}

// RiskRepository persists breach and force-close events.
type RiskRepository interface {
	SaveRiskEvent(ctx context.Context, ev *RiskEvent) error
	ListRiskEvents(ctx context.Context, limit int) ([]*RiskEvent, error)
}
