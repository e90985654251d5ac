package usecase

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// TickResult carries everything one evaluation step produced. The caller
// (scheduler or backtest runner) dispatches the records to the gateway; the
// engine itself never touches IO.
type TickResult struct {
	Symbol  string
	Signals []*domain.Signal
	Trades  []*domain.Trade
	State   domain.SymbolState
}

// StrategyEngine owns the per-symbol runtime states and applies evaluator
// decisions to them. Both the live scheduler and the backtest runner drive
// this engine, so signal semantics have a single source of truth.
type StrategyEngine struct {
	mu     sync.RWMutex
	states map[string]*domain.SymbolState

	evaluator *SignalEvaluator
	costs     *CostCalculator
	registry  domain.ContractRegistry
	risk      *RiskGuard
}

func NewStrategyEngine(registry domain.ContractRegistry, costs *CostCalculator, risk *RiskGuard) *StrategyEngine {
	return &StrategyEngine{
		states:    make(map[string]*domain.SymbolState),
		evaluator: NewSignalEvaluator(),
		costs:     costs,
		registry:  registry,
		risk:      risk,
	}
}

func (e *StrategyEngine) state(symbol string) *domain.SymbolState {
	if s, ok := e.states[symbol]; ok {
		return s
	}
	s := &domain.SymbolState{Symbol: symbol, Phase: domain.PhaseIdle}
	e.states[symbol] = s
	return s
}

// GetState returns a copy of the runtime state for one symbol.
func (e *StrategyEngine) GetState(symbol string) domain.SymbolState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.states[symbol]; ok {
		out := *s
		out.OpenPositions = append([]domain.Position(nil), s.OpenPositions...)
		return out
	}
	return domain.SymbolState{Symbol: symbol, Phase: domain.PhaseIdle}
}

// States returns copies of all tracked symbol states.
func (e *StrategyEngine) States() []domain.SymbolState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.SymbolState, 0, len(e.states))
	for _, s := range e.states {
		cp := *s
		cp.OpenPositions = append([]domain.Position(nil), s.OpenPositions...)
		out = append(out, cp)
	}
	return out
}

// UpdateState applies fn to one symbol's state under the engine lock.
func (e *StrategyEngine) UpdateState(symbol string, fn func(*domain.SymbolState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state(symbol))
}

// MarkStale flags a symbol whose feed stopped delivering usable prices.
func (e *StrategyEngine) MarkStale(symbol string, stale bool) {
	e.UpdateState(symbol, func(s *domain.SymbolState) { s.Stale = stale })
}

// OnTick runs one evaluation step for a symbol. The sample's price drives
// the threshold ladder; a synthesized sample taints fills as estimated.
// Callers guarantee ticks for the same symbol never overlap.
func (e *StrategyEngine) OnTick(cfg *domain.StrategyConfig, symbol string, sample domain.PriceSample, now time.Time) (*TickResult, error) {
	if sample.Value <= 0 {
		return nil, fmt.Errorf("tick %s: non-positive price %f: %w", symbol, sample.Value, domain.ErrDataUnavailable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(symbol)
	st.CurrentPrice = sample.Value
	st.Stale = false
	st.UpdatedAt = now
	if st.BasePrice > 0 {
		st.DropPct = (sample.Value - st.BasePrice) / st.BasePrice
	}

	res := &TickResult{Symbol: symbol}
	decisions := e.evaluator.Evaluate(cfg, st, sample.Value, now)
	for _, d := range decisions {
		switch d.Kind {
		case DecisionWatch:
			st.Phase = domain.PhaseWatching
			if st.BasePrice <= 0 {
				// Captured exactly once per session, at the first
				// in-window tick with a valid price.
				st.BasePrice = sample.Value
				st.BaseSample = sample.Synthesized
				st.DropPct = 0
				log.Printf("AUDIT: %s watching, base price %.2f (synthesized=%v)", symbol, st.BasePrice, sample.Synthesized)
			}

		case DecisionOpen:
			if err := e.openPosition(cfg, st, d, sample, now, res); err != nil {
				log.Printf("SAFETY: %s level %d entry rejected: %v", symbol, d.Level, err)
			}

		case DecisionAlert:
			st.LastAlertSent = true
			st.LastAlertTime = now
			sig := &domain.Signal{
				ID:           newRecordID("sig", symbol, now),
				Symbol:       symbol,
				Type:         domain.SignalAlert,
				TriggerPrice: sample.Value,
				BasePrice:    st.BasePrice,
				DropPct:      st.DropPct,
				Time:         now,
			}
			res.Signals = append(res.Signals, sig)
			log.Printf("AUDIT: %s alert, drop %.2f%% from base %.2f", symbol, st.DropPct*100, st.BasePrice)

		case DecisionLeaveIdle:
			st.Phase = domain.PhaseIdle
			st.BasePrice = 0
			st.BaseSample = false
			st.DropPct = 0
			st.LastAlertSent = false

		case DecisionHoldClosed:
			// Position carried overnight; the next session open settles it.
		}
	}

	res.State = e.copyStateLocked(symbol)
	return res, nil
}

func (e *StrategyEngine) openPosition(cfg *domain.StrategyConfig, st *domain.SymbolState, d Decision, sample domain.PriceSample, now time.Time, res *TickResult) error {
	if st.OpenQuantity()+d.Quantity > cfg.MaxPositionPerSymbol {
		return fmt.Errorf("symbol cap %d reached", cfg.MaxPositionPerSymbol)
	}
	if err := e.risk.AllowOpen(st.Symbol, d.Quantity); err != nil {
		return err
	}
	contract, err := e.registry.Get(st.Symbol)
	if err != nil {
		return err
	}
	margin, err := e.costs.Margin(contract, sample.Value, d.Quantity)
	if err != nil {
		return err
	}
	fee, err := e.costs.Fee(contract, sample.Value, d.Quantity, true, false)
	if err != nil {
		return err
	}

	pos := domain.Position{
		ID:         newRecordID("pos", st.Symbol, now),
		Symbol:     st.Symbol,
		Direction:  domain.DirLong,
		Level:      d.Level,
		Quantity:   d.Quantity,
		EntryPrice: sample.Value,
		EntryTime:  now,
		MarginHeld: margin,
		Status:     domain.PositionOpen,
	}
	st.OpenPositions = append(st.OpenPositions, pos)
	if d.Level >= 2 {
		st.Phase = domain.PhasePosition2
	} else {
		st.Phase = domain.PhasePosition1
	}
	e.risk.OnOpen(st.Symbol, d.Quantity, fee)

	res.Signals = append(res.Signals, &domain.Signal{
		ID:           newRecordID("sig", st.Symbol, now) + fmt.Sprintf("-l%d", d.Level),
		Symbol:       st.Symbol,
		Type:         d.Signal,
		TriggerPrice: sample.Value,
		BasePrice:    st.BasePrice,
		DropPct:      st.DropPct,
		Quantity:     d.Quantity,
		Executed:     true,
		Time:         now,
	})
	res.Trades = append(res.Trades, &domain.Trade{
		ID:            pos.ID + "-open",
		Symbol:        st.Symbol,
		Direction:     domain.DirLong,
		Action:        "open",
		Level:         d.Level,
		Quantity:      d.Quantity,
		Price:         sample.Value,
		Fee:           fee,
		Margin:        margin,
		Reason:        string(d.Signal),
		EstimatedFill: sample.Synthesized,
		Time:          now,
	})
	log.Printf("AUDIT: %s level %d opened, qty %d at %.2f (drop %.2f%%, margin %.2f)",
		st.Symbol, d.Level, d.Quantity, sample.Value, st.DropPct*100, margin)
	return nil
}

// CloseAll closes every open position of a symbol at the given price. Used
// for the next-session-open settlement (sameDay=false, the normal close fee)
// and for risk force-closes (sameDay=true, the close-today penalty applies).
func (e *StrategyEngine) CloseAll(symbol string, sample domain.PriceSample, now time.Time, reason string, sameDay bool) (*TickResult, error) {
	if sample.Value <= 0 {
		return nil, fmt.Errorf("close %s: non-positive price %f: %w", symbol, sample.Value, domain.ErrDataUnavailable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(symbol)
	if len(st.OpenPositions) == 0 {
		return nil, nil
	}
	contract, err := e.registry.Get(symbol)
	if err != nil {
		return nil, err
	}

	st.Phase = domain.PhaseClosing
	res := &TickResult{Symbol: symbol}
	totalQty := 0
	for i := range st.OpenPositions {
		pos := &st.OpenPositions[i]
		rt, err := e.costs.RoundTripCost(contract, pos.EntryPrice, sample.Value, pos.Quantity, sameDay)
		if err != nil {
			return nil, err
		}

		pos.Status = domain.PositionClosed
		pos.ClosePrice = sample.Value
		pos.CloseTime = now
		pos.RealizedPnl = rt.NetPnl
		totalQty += pos.Quantity

		// Open fee was charged to the account at entry; only the close
		// leg's cost moves equity here.
		e.risk.OnClose(symbol, pos.Quantity, rt.GrossPnl-rt.CloseFee)

		res.Trades = append(res.Trades, &domain.Trade{
			ID:            pos.ID + "-close",
			Symbol:        symbol,
			Direction:     domain.DirLong,
			Action:        "close",
			Level:         pos.Level,
			Quantity:      pos.Quantity,
			Price:         sample.Value,
			Fee:           rt.CloseFee,
			RealizedPnl:   rt.NetPnl,
			Reason:        reason,
			CloseToday:    sameDay,
			EstimatedFill: sample.Synthesized,
			Time:          now,
		})
		log.Printf("AUDIT: %s level %d closed, qty %d at %.2f, net pnl %.2f (%s)",
			symbol, pos.Level, pos.Quantity, sample.Value, rt.NetPnl, reason)
	}

	res.Signals = append(res.Signals, &domain.Signal{
		ID:           newRecordID("sig", symbol, now) + "-close",
		Symbol:       symbol,
		Type:         domain.SignalSellClose,
		TriggerPrice: sample.Value,
		BasePrice:    st.BasePrice,
		DropPct:      st.DropPct,
		Quantity:     totalQty,
		Executed:     true,
		Time:         now,
	})

	st.OpenPositions = nil
	st.Phase = domain.PhaseIdle
	st.BasePrice = 0
	st.BaseSample = false
	st.DropPct = 0
	st.LastAlertSent = false

	res.State = e.copyStateLocked(symbol)
	return res, nil
}

// ForceCloseAll liquidates every symbol holding positions at its latest
// price. The risk guard breach path; trades are tagged risk_force_close.
func (e *StrategyEngine) ForceCloseAll(prices map[string]domain.PriceSample, now time.Time) []*TickResult {
	e.mu.RLock()
	var holding []string
	for sym, st := range e.states {
		if len(st.OpenPositions) > 0 {
			holding = append(holding, sym)
		}
	}
	e.mu.RUnlock()

	var out []*TickResult
	for _, sym := range holding {
		sample, ok := prices[sym]
		if !ok {
			e.mu.RLock()
			sample = domain.PriceSample{Value: e.states[sym].CurrentPrice}
			e.mu.RUnlock()
		}
		res, err := e.CloseAll(sym, sample, now, "risk_force_close", true)
		if err != nil {
			log.Printf("SAFETY: force close %s failed: %v", sym, err)
			continue
		}
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// UnrealizedPnl marks open positions to the latest known prices.
func (e *StrategyEngine) UnrealizedPnl() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0.0
	for sym, st := range e.states {
		if len(st.OpenPositions) == 0 || st.CurrentPrice <= 0 {
			continue
		}
		contract, err := e.registry.Get(sym)
		if err != nil {
			continue
		}
		for _, p := range st.OpenPositions {
			total += (st.CurrentPrice - p.EntryPrice) * contract.Multiplier * float64(p.Quantity)
		}
	}
	return total
}

// ResetSession clears intraday state for a new trading day. Open positions
// survive; they settle at the day-open close pass.
func (e *StrategyEngine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.states {
		if len(st.OpenPositions) == 0 {
			st.Phase = domain.PhaseIdle
		}
		st.BasePrice = 0
		st.BaseSample = false
		st.DropPct = 0
		st.LastAlertSent = false
		st.LastAlertTime = time.Time{}
	}
}

func (e *StrategyEngine) copyStateLocked(symbol string) domain.SymbolState {
	st := e.state(symbol)
	cp := *st
	cp.OpenPositions = append([]domain.Position(nil), st.OpenPositions...)
	return cp
}

func newRecordID(prefix, symbol string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%d", prefix, symbol, t.UnixNano())
}
