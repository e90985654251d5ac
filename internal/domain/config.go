package domain

import (
	"fmt"
	"time"
)

// EntryPriceType selects which price a backtest entry fills at.
type EntryPriceType string

const (
	EntryAtClose EntryPriceType = "close"
	EntryAtOpen  EntryPriceType = "open"
	EntryAtVWAP  EntryPriceType = "vwap"
)

// SignalModeKind names the wire shape signals are emitted in. Historical
// deployments used several shapes; the mode is resolved once at config load
// and never re-sniffed per bar.
type SignalModeKind string

const (
	SignalModeSimple   SignalModeKind = "simple"
	SignalModeFourWay  SignalModeKind = "four_way"
	SignalModeCrossDay SignalModeKind = "cross_day"
)

// SignalMode is the resolved tagged union. ExitType and EntryPrice are only
// meaningful for the cross_day kind.
type SignalMode struct {
	Kind       SignalModeKind `yaml:"kind" json:"kind"`
	ExitType   string         `yaml:"exit_type" json:"exit_type,omitempty"`
	EntryPrice EntryPriceType `yaml:"entry_price" json:"entry_price,omitempty"`
}

// RiskConfig bounds daily losses and equity drawdown for the whole account.
type RiskConfig struct {
	MaxDailyLoss      float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	ForceCloseOnLimit bool    `yaml:"force_close_on_limit" json:"force_close_on_limit"`
	InitialCapital    float64 `yaml:"initial_capital" json:"initial_capital"`
}

// StrategyConfig is one immutable deployment snapshot. Hot updates publish a
// whole new snapshot via the scheduler's atomic pointer; a tick reads exactly
// one snapshot for its whole evaluation.
type StrategyConfig struct {
	Symbols              []string       `yaml:"symbols" json:"symbols"`
	Threshold1           float64        `yaml:"threshold_1" json:"threshold_1"`
	Threshold2           float64        `yaml:"threshold_2" json:"threshold_2"`
	AlertThreshold       float64        `yaml:"alert_threshold" json:"alert_threshold"`
	PositionSize1        int            `yaml:"position_size_1" json:"position_size_1"`
	PositionSize2        int            `yaml:"position_size_2" json:"position_size_2"`
	MaxPositionPerSymbol int            `yaml:"max_position_per_symbol" json:"max_position_per_symbol"`
	MaxTotalPosition     int            `yaml:"max_total_position" json:"max_total_position"`
	MonitorStart         string         `yaml:"monitor_start" json:"monitor_start"`
	MonitorEnd           string         `yaml:"monitor_end" json:"monitor_end"`
	EntryPriceType       EntryPriceType `yaml:"entry_price_type" json:"entry_price_type"`
	Mode                 SignalMode     `yaml:"signal_mode" json:"signal_mode"`
	TickIntervalSec      int            `yaml:"tick_interval_sec" json:"tick_interval_sec"`
	AlertCooldownMin     int            `yaml:"alert_cooldown_min" json:"alert_cooldown_min"`
	Risk                 RiskConfig     `yaml:"risk" json:"risk"`
}

func DefaultStrategyConfig() *StrategyConfig {
	return &StrategyConfig{
		Symbols:              []string{"IC0", "IM0"},
		Threshold1:           0.01,
		Threshold2:           0.02,
		AlertThreshold:       0.008,
		PositionSize1:        1,
		PositionSize2:        1,
		MaxPositionPerSymbol: 2,
		MaxTotalPosition:     4,
		MonitorStart:         "14:30",
		MonitorEnd:           "14:57",
		EntryPriceType:       EntryAtClose,
		Mode:                 SignalMode{Kind: SignalModeCrossDay, ExitType: "next_open", EntryPrice: EntryAtClose},
		TickIntervalSec:      5,
		AlertCooldownMin:     5,
		Risk: RiskConfig{
			MaxDailyLoss:      10000.0,
			MaxDrawdownPct:    0.05,
			ForceCloseOnLimit: true,
			InitialCapital:    500000.0,
		},
	}
}

// Validate rejects configs that would make the state machine misbehave.
func (c *StrategyConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return NewConfigError("symbols", "must not be empty")
	}
	if c.Threshold1 <= 0 || c.Threshold1 >= 1 {
		return NewConfigError("threshold_1", "must be in (0, 1)")
	}
	if c.Threshold2 <= c.Threshold1 {
		return NewConfigError("threshold_2", "must be greater than threshold_1")
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold >= c.Threshold1 {
		return NewConfigError("alert_threshold", "must be in (0, threshold_1)")
	}
	if c.PositionSize1 <= 0 {
		return NewConfigError("position_size_1", "must be positive")
	}
	if c.PositionSize2 <= 0 {
		return NewConfigError("position_size_2", "must be positive")
	}
	if c.MaxPositionPerSymbol <= 0 {
		return NewConfigError("max_position_per_symbol", "must be positive")
	}
	if c.MaxTotalPosition < c.MaxPositionPerSymbol {
		return NewConfigError("max_total_position", "must be at least max_position_per_symbol")
	}
	if _, err := ParseClock(c.MonitorStart); err != nil {
		return NewConfigError("monitor_start", err.Error())
	}
	if _, err := ParseClock(c.MonitorEnd); err != nil {
		return NewConfigError("monitor_end", err.Error())
	}
	switch c.EntryPriceType {
	case EntryAtClose, EntryAtOpen, EntryAtVWAP:
	default:
		return NewConfigError("entry_price_type", fmt.Sprintf("unknown type %q", c.EntryPriceType))
	}
	switch c.Mode.Kind {
	case SignalModeSimple, SignalModeFourWay, SignalModeCrossDay:
	default:
		return NewConfigError("signal_mode.kind", fmt.Sprintf("unknown kind %q", c.Mode.Kind))
	}
	if c.Risk.MaxDailyLoss <= 0 {
		return NewConfigError("risk.max_daily_loss", "must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct >= 1 {
		return NewConfigError("risk.max_drawdown_pct", "must be in (0, 1)")
	}
	if c.Risk.InitialCapital <= 0 {
		return NewConfigError("risk.initial_capital", "must be positive")
	}
	return nil
}

// Clone returns a deep copy so a hot update never mutates the live snapshot.
func (c *StrategyConfig) Clone() *StrategyConfig {
	out := *c
	out.Symbols = append([]string(nil), c.Symbols...)
	return &out
}

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MonitorWindow reports whether t falls inside [monitor_start, monitor_end].
// Config must be validated first; invalid bounds behave as a closed window.
func (c *StrategyConfig) MonitorWindow(t time.Time) bool {
	start, err1 := ParseClock(c.MonitorStart)
	end, err2 := ParseClock(c.MonitorEnd)
	if err1 != nil || err2 != nil {
		return false
	}
	now := ClockOf(t)
	return now >= start && now <= end
}
