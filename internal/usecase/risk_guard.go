package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// RiskGuard owns the account-wide risk counters. Every symbol tick submits
// its deltas through these methods; the single mutex keeps daily-loss and
// drawdown checks consistent across symbols, so two symbols can never both
// pass a position-count check that should have blocked the second.
type RiskGuard struct {
	mu sync.Mutex

	cfg            domain.RiskConfig
	maxPerSymbol   int
	maxTotal       int
	dailyPnl       float64
	equity         float64
	peakEquity     float64
	openQty        map[string]int
	breached       bool
	breachReason   string
	sessionStarted time.Time
}

func NewRiskGuard(cfg *domain.StrategyConfig) *RiskGuard {
	g := &RiskGuard{
		cfg:          cfg.Risk,
		maxPerSymbol: cfg.MaxPositionPerSymbol,
		maxTotal:     cfg.MaxTotalPosition,
		equity:       cfg.Risk.InitialCapital,
		peakEquity:   cfg.Risk.InitialCapital,
		openQty:      make(map[string]int),
	}
	return g
}

// Reconfigure applies a new config snapshot to the limits. Counters are kept;
// limits take effect on the next check.
func (g *RiskGuard) Reconfigure(cfg *domain.StrategyConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg.Risk
	g.maxPerSymbol = cfg.MaxPositionPerSymbol
	g.maxTotal = cfg.MaxTotalPosition
}

// AllowOpen projects the position counts an open would produce and rejects
// the transition when a limit would be exceeded or a breach is active.
func (g *RiskGuard) AllowOpen(symbol string, qty int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.breached {
		return fmt.Errorf("risk breach active (%s): entries blocked", g.breachReason)
	}
	if g.openQty[symbol]+qty > g.maxPerSymbol {
		return fmt.Errorf("symbol %s position limit %d would be exceeded", symbol, g.maxPerSymbol)
	}
	total := qty
	for _, q := range g.openQty {
		total += q
	}
	if total > g.maxTotal {
		return fmt.Errorf("total position limit %d would be exceeded", g.maxTotal)
	}
	return nil
}

// OnOpen registers a filled entry. Fees reduce equity immediately.
func (g *RiskGuard) OnOpen(symbol string, qty int, fee float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openQty[symbol] += qty
	g.dailyPnl -= fee
	g.equity -= fee
}

// OnClose registers a close fill with its net realized P&L (fees included).
// The open-leg fee was already charged at OnOpen, so only the delta beyond it
// should be passed here by callers that charged it before.
func (g *RiskGuard) OnClose(symbol string, qty int, netPnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openQty[symbol] -= qty
	if g.openQty[symbol] <= 0 {
		delete(g.openQty, symbol)
	}
	g.dailyPnl += netPnl
	g.equity += netPnl
	if g.equity > g.peakEquity {
		g.peakEquity = g.equity
	}
}

// Check evaluates the daily-loss and drawdown limits against realized plus
// unrealized P&L. Once breached, the flag sticks until the daily reset.
func (g *RiskGuard) Check(unrealizedPnl float64) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.breached {
		return true, g.breachReason
	}

	total := g.dailyPnl + unrealizedPnl
	if total <= -g.cfg.MaxDailyLoss {
		g.breached = true
		g.breachReason = fmt.Sprintf("daily loss %.2f beyond limit %.2f", total, g.cfg.MaxDailyLoss)
		return true, g.breachReason
	}

	current := g.equity + unrealizedPnl
	if current > g.peakEquity {
		g.peakEquity = current
	}
	if g.peakEquity > 0 {
		dd := (g.peakEquity - current) / g.peakEquity
		if dd >= g.cfg.MaxDrawdownPct {
			g.breached = true
			g.breachReason = fmt.Sprintf("drawdown %.2f%% beyond limit %.2f%%", dd*100, g.cfg.MaxDrawdownPct*100)
			return true, g.breachReason
		}
	}
	return false, ""
}

// ForceCloseOnBreach reports whether a breach should liquidate, per config.
func (g *RiskGuard) ForceCloseOnBreach() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.ForceCloseOnLimit
}

// ResetDaily clears the session counters at the start of a trading day.
func (g *RiskGuard) ResetDaily(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnl = 0
	g.breached = false
	g.breachReason = ""
	g.sessionStarted = now
	if g.equity > g.peakEquity {
		g.peakEquity = g.equity
	}
}

func (g *RiskGuard) Snapshot() domain.RiskSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	dd := 0.0
	if g.peakEquity > 0 {
		dd = (g.peakEquity - g.equity) / g.peakEquity
	}
	return domain.RiskSnapshot{
		DailyPnl:       g.dailyPnl,
		Equity:         g.equity,
		PeakEquity:     g.peakEquity,
		Drawdown:       dd,
		Breached:       g.breached,
		BreachReason:   g.breachReason,
		SessionStarted: g.sessionStarted,
	}
}
