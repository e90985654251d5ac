package usecase

import (
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// Decision is one step the evaluator wants the engine to apply. A single
// tick may yield several decisions in order (gap-down opens tier 1 and
// tier 2 in the same tick).
type Decision struct {
	Kind     DecisionKind
	Signal   domain.SignalType
	Level    int
	Quantity int
}

type DecisionKind string

const (
	DecisionNone       DecisionKind = "none"
	DecisionWatch      DecisionKind = "watch"
	DecisionOpen       DecisionKind = "open"
	DecisionAlert      DecisionKind = "alert"
	DecisionLeaveIdle  DecisionKind = "leave_idle"
	DecisionHoldClosed DecisionKind = "hold" // window closed, position carried overnight
)

// SignalEvaluator decides transitions from a state snapshot and the latest
// price. It never mutates state and never touches IO; the engine applies
// what it returns.
type SignalEvaluator struct{}

func NewSignalEvaluator() *SignalEvaluator {
	return &SignalEvaluator{}
}

// Evaluate returns the ordered decisions for one tick. dropPct is computed
// against the captured base price; while Idle there is no base yet and only
// the window transition applies.
func (e *SignalEvaluator) Evaluate(cfg *domain.StrategyConfig, st *domain.SymbolState, price float64, now time.Time) []Decision {
	inWindow := cfg.MonitorWindow(now)

	switch st.Phase {
	case domain.PhaseIdle:
		if inWindow && price > 0 {
			// Entering the window captures the base price and may fall
			// straight through the thresholds on the same tick.
			decisions := []Decision{{Kind: DecisionWatch}}
			return append(decisions, e.evaluateDrop(cfg, st, price, basePriceAfterWatch(st, price), 0, now)...)
		}
		return nil

	case domain.PhaseWatching:
		if !inWindow {
			// Window ended without an entry: discard the base for the next cycle.
			return []Decision{{Kind: DecisionLeaveIdle}}
		}
		return e.evaluateDrop(cfg, st, price, st.BasePrice, 0, now)

	case domain.PhasePosition1:
		if !inWindow {
			return []Decision{{Kind: DecisionHoldClosed}}
		}
		return e.evaluateDrop(cfg, st, price, st.BasePrice, 1, now)

	case domain.PhasePosition2, domain.PhaseClosing:
		// Fully invested or already closing; nothing to evaluate intraday.
		return nil
	}
	return nil
}

// evaluateDrop applies the threshold ladder. heldLevel is the highest tier
// already open; tiers at or below it never re-fire (edge-trigger guard).
// Tier 1 is applied before tier 2 and tier 2 is re-evaluated in the same
// step, so a gap through both thresholds executes both legs in one tick.
func (e *SignalEvaluator) evaluateDrop(cfg *domain.StrategyConfig, st *domain.SymbolState, price, base float64, heldLevel int, now time.Time) []Decision {
	if base <= 0 || price <= 0 {
		return nil
	}
	dropPct := (price - base) / base

	var out []Decision
	if heldLevel < 1 && dropPct <= -cfg.Threshold1 {
		out = append(out, Decision{Kind: DecisionOpen, Signal: domain.SignalBuyLevel1, Level: 1, Quantity: cfg.PositionSize1})
		heldLevel = 1
	}
	if heldLevel == 1 && dropPct <= -cfg.Threshold2 && !st.HasLevel(2) {
		out = append(out, Decision{Kind: DecisionOpen, Signal: domain.SignalBuyLevel2, Level: 2, Quantity: cfg.PositionSize2})
		return out
	}
	if len(out) > 0 {
		return out
	}

	// Pre-warning band: below alert threshold but above tier 1, once per
	// session with a cooldown between repeats.
	if dropPct <= -cfg.AlertThreshold && dropPct > -cfg.Threshold1 {
		if alertAllowed(cfg, st, now) {
			return []Decision{{Kind: DecisionAlert, Signal: domain.SignalAlert}}
		}
	}
	return nil
}

// alertAllowed measures the cooldown against the tick's own clock, so replays
// over historical timestamps behave the same as live.
func alertAllowed(cfg *domain.StrategyConfig, st *domain.SymbolState, now time.Time) bool {
	if st.LastAlertSent {
		return false
	}
	if st.LastAlertTime.IsZero() {
		return true
	}
	cooldown := time.Duration(cfg.AlertCooldownMin) * time.Minute
	return now.Sub(st.LastAlertTime) >= cooldown
}

// basePriceAfterWatch is the base the drop check should use on the very tick
// that captures it: the captured price itself unless a base survived from a
// restart.
func basePriceAfterWatch(st *domain.SymbolState, price float64) float64 {
	if st.BasePrice > 0 {
		return st.BasePrice
	}
	return price
}
