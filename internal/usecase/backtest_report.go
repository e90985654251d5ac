package usecase

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

const (
	riskFreeRate   = 0.03
	tradingDaysPer = 252
)

// SummaryStats are the aggregate performance numbers of one backtest run.
type SummaryStats struct {
	TotalReturn     float64                 `json:"total_return"`
	AnnualReturn    float64                 `json:"annual_return"`
	Sharpe          float64                 `json:"sharpe"`
	Sortino         float64                 `json:"sortino"`
	MaxDrawdown     float64                 `json:"max_drawdown"`
	MaxDrawdownDays int                     `json:"max_drawdown_days"`
	Calmar          float64                 `json:"calmar"`
	WinRate         float64                 `json:"win_rate"`
	ProfitFactor    float64                 `json:"profit_factor"`
	AvgWin          float64                 `json:"avg_win"`
	AvgLoss         float64                 `json:"avg_loss"`
	TradeCount      int                     `json:"trade_count"`
	EstimatedFills  int                     `json:"estimated_fills"`
	AvgHoldingDays  float64                 `json:"avg_holding_days"`
	MonthlyReturns  map[string]float64      `json:"monthly_returns"`
	PerSymbol       map[string]*SymbolStats `json:"per_symbol"`
}

// SymbolStats breaks the run down per contract.
type SymbolStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	NetPnl   float64 `json:"net_pnl"`
	TotalFee float64 `json:"total_fee"`
}

// Summarize computes the report from the run's trades and daily marks.
func Summarize(cfg *domain.StrategyConfig, trades []*domain.Trade, daily []DailyPnl) *SummaryStats {
	s := &SummaryStats{
		MonthlyReturns: make(map[string]float64),
		PerSymbol:      make(map[string]*SymbolStats),
	}
	if len(daily) == 0 {
		return s
	}

	initial := cfg.Risk.InitialCapital
	final := daily[len(daily)-1].Equity
	s.TotalReturn = (final - initial) / initial

	years := float64(len(daily)) / tradingDaysPer
	if years > 0 {
		s.AnnualReturn = math.Pow(1+s.TotalReturn, 1/years) - 1
	}

	// Daily return series off the equity curve.
	returns := make([]float64, 0, len(daily))
	prev := initial
	for _, d := range daily {
		if prev > 0 {
			returns = append(returns, (d.Equity-prev)/prev)
		}
		prev = d.Equity
	}
	s.Sharpe = sharpe(returns, false)
	s.Sortino = sharpe(returns, true)
	s.MaxDrawdown, s.MaxDrawdownDays = maxDrawdown(daily)
	if s.MaxDrawdown > 0 {
		s.Calmar = s.AnnualReturn / s.MaxDrawdown
	}

	// Trade stats off the close legs.
	var wins, losses int
	var grossWin, grossLoss float64
	var holdingDays float64
	openTimes := make(map[string]time.Time)
	for _, t := range trades {
		sym := s.PerSymbol[t.Symbol]
		if sym == nil {
			sym = &SymbolStats{}
			s.PerSymbol[t.Symbol] = sym
		}
		sym.TotalFee += t.Fee
		if t.EstimatedFill {
			s.EstimatedFills++
		}
		if t.Action == "open" {
			openTimes[tradePairKey(t)] = t.Time
			continue
		}
		sym.Trades++
		sym.NetPnl += t.RealizedPnl
		s.TradeCount++
		if t.RealizedPnl > 0 {
			wins++
			sym.Wins++
			grossWin += t.RealizedPnl
		} else {
			losses++
			grossLoss += -t.RealizedPnl
		}
		if opened, ok := openTimes[tradePairKey(t)]; ok {
			holdingDays += t.Time.Sub(opened).Hours() / 24
		}
	}
	if s.TradeCount > 0 {
		s.WinRate = float64(wins) / float64(s.TradeCount)
		s.AvgHoldingDays = holdingDays / float64(s.TradeCount)
	}
	if wins > 0 {
		s.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}

	// Monthly returns off the equity curve, keyed YYYY-MM.
	monthStart := initial
	curMonth := daily[0].Date.Format("2006-01")
	lastEquity := initial
	for _, d := range daily {
		m := d.Date.Format("2006-01")
		if m != curMonth {
			if monthStart > 0 {
				s.MonthlyReturns[curMonth] = (lastEquity - monthStart) / monthStart
			}
			curMonth = m
			monthStart = lastEquity
		}
		lastEquity = d.Equity
	}
	if monthStart > 0 {
		s.MonthlyReturns[curMonth] = (lastEquity - monthStart) / monthStart
	}
	return s
}

// sharpe annualizes mean excess return over volatility. downsideOnly gives
// the Sortino variant.
func sharpe(returns []float64, downsideOnly bool) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRf := riskFreeRate / tradingDaysPer
	mean := 0.0
	for _, r := range returns {
		mean += r - dailyRf
	}
	mean /= float64(len(returns))

	variance := 0.0
	n := 0
	for _, r := range returns {
		d := r - dailyRf
		if downsideOnly && d >= 0 {
			continue
		}
		variance += (d - mean) * (d - mean)
		n++
	}
	if n < 2 {
		return 0
	}
	std := math.Sqrt(variance / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPer)
}

func maxDrawdown(daily []DailyPnl) (float64, int) {
	peak := daily[0].Equity
	peakIdx := 0
	maxDD := 0.0
	maxDays := 0
	for i, d := range daily {
		if d.Equity > peak {
			peak = d.Equity
			peakIdx = i
			continue
		}
		if peak > 0 {
			dd := (peak - d.Equity) / peak
			if dd > maxDD {
				maxDD = dd
				maxDays = i - peakIdx
			}
		}
	}
	return maxDD, maxDays
}

func tradePairKey(t *domain.Trade) string {
	return t.Symbol + "#" + strconv.Itoa(t.Level)
}

// SortedMonths lists the monthly-return keys in order, for rendering.
func (s *SummaryStats) SortedMonths() []string {
	out := make([]string, 0, len(s.MonthlyReturns))
	for m := range s.MonthlyReturns {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
