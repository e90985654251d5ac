package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"go.uber.org/zap"
)

// DailyPnl is one day's realized result plus the end-of-day mark.
type DailyPnl struct {
	Date        time.Time `json:"date"`
	Realized    float64   `json:"realized"`
	Unrealized  float64   `json:"unrealized"`
	Equity      float64   `json:"equity"`
	OpenSymbols int       `json:"open_symbols"`
}

// BacktestResult is the full output of one run.
type BacktestResult struct {
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Symbols  []string         `json:"symbols"`
	Trades   []*domain.Trade  `json:"trades"`
	Signals  []*domain.Signal `json:"signals"`
	DailyPnl []DailyPnl       `json:"daily_pnl"`
	Summary  *SummaryStats    `json:"summary"`
}

// BacktestRunner replays historical bars through the same strategy engine the
// live scheduler uses, so backtest and live share one source of truth for
// signal semantics. The replay is single threaded and deterministic.
type BacktestRunner struct {
	data     domain.MarketDataSource
	registry domain.ContractRegistry
	vwap     *VWAPCalculator
	logger   *zap.Logger
}

func NewBacktestRunner(data domain.MarketDataSource, registry domain.ContractRegistry, logger *zap.Logger) *BacktestRunner {
	return &BacktestRunner{
		data:     data,
		registry: registry,
		vwap:     NewVWAPCalculator(),
		logger:   logger,
	}
}

type symbolFeed struct {
	symbol string
	daily  []domain.Bar
	index  map[int]int // yearday key -> daily index
}

// Run replays [from, to] for the given symbols. Entries detected on day i
// settle against day i+1's open (cross-day execution); a pending entry on
// the final day with no next open is discarded, never closed same-day.
func (r *BacktestRunner) Run(ctx context.Context, symbols []string, from, to time.Time, cfg *domain.StrategyConfig) (*BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		symbols = cfg.Symbols
	}
	if to.Before(from) {
		return nil, domain.NewConfigError("date_range", "end before start")
	}

	feeds := make([]*symbolFeed, 0, len(symbols))
	dayset := map[time.Time]bool{}
	for _, sym := range symbols {
		daily, err := r.data.GetDailyBars(ctx, sym, from, to)
		if err != nil {
			return nil, fmt.Errorf("daily bars %s: %w", sym, err)
		}
		if len(daily) == 0 {
			continue
		}
		sort.Slice(daily, func(i, j int) bool { return daily[i].Time.Before(daily[j].Time) })
		feed := &symbolFeed{symbol: sym, daily: daily, index: make(map[int]int)}
		for i, b := range daily {
			key := b.Time.Year()*1000 + b.Time.YearDay()
			feed.index[key] = i
			dayset[dateOnly(b.Time)] = true
		}
		feeds = append(feeds, feed)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no daily bars in range: %w", domain.ErrDataUnavailable)
	}

	days := make([]time.Time, 0, len(dayset))
	for d := range dayset {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	// A fresh engine and risk guard per run keeps replays reproducible and
	// isolated from the live account.
	risk := NewRiskGuard(cfg)
	engine := NewStrategyEngine(r.registry, NewCostCalculator(r.registry), risk)

	res := &BacktestResult{From: from, To: to, Symbols: symbols}
	equity := cfg.Risk.InitialCapital

	for di, day := range days {
		// Same per-day reset as the live pre-market pass: intraday state
		// and base prices clear, carried positions survive.
		risk.ResetDaily(day)
		engine.ResetSession()
		dayRealized := 0.0

		for _, feed := range feeds {
			bar, ok := feed.barOn(day)
			if !ok {
				continue
			}

			// Settle entries carried from an earlier day at today's open.
			openSample := domain.PriceSample{Value: bar.Open}
			closed, err := engine.CloseAll(feed.symbol, openSample, at(day, 9, 30), "next_open_close", false)
			if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
				return nil, err
			}
			dayRealized += r.collect(res, closed)

			minute, derr := r.data.GetMinuteBars(ctx, feed.symbol, day)
			if derr != nil {
				minute = nil
			}

			baseTime := at(day, 14, 30)
			decisionTime := at(day, 14, 56)
			if start, err := domain.ParseClock(cfg.MonitorStart); err == nil {
				baseTime = at(day, int(start)/60, int(start)%60)
				if end, err := domain.ParseClock(cfg.MonitorEnd); err == nil {
					// Decide one minute before the window closes, still
					// inside it for any valid window.
					c := end - 1
					if c < start {
						c = start
					}
					decisionTime = at(day, int(c)/60, int(c)%60)
				}
			}
			base, err := r.vwap.SamplePrice(minute, &bar, baseTime)
			if err != nil {
				r.logger.Debug("no base price, day skipped",
					zap.String("symbol", feed.symbol), zap.Time("day", day))
				continue
			}

			entry, err := r.entrySample(cfg, bar, minute, day)
			if err != nil {
				continue
			}

			// Two evaluation steps reproduce the live path: the window-entry
			// tick captures the base, the end-of-window tick decides entries.
			if _, err := engine.OnTick(cfg, feed.symbol, base, baseTime); err != nil {
				continue
			}
			ticked, err := engine.OnTick(cfg, feed.symbol, entry, decisionTime)
			if err != nil {
				continue
			}
			dayRealized += r.collect(res, ticked)
		}

		unrealized := engine.UnrealizedPnl()
		equity += dayRealized
		openSymbols := 0
		for _, st := range engine.States() {
			if len(st.OpenPositions) > 0 {
				openSymbols++
			}
		}
		res.DailyPnl = append(res.DailyPnl, DailyPnl{
			Date:        day,
			Realized:    dayRealized,
			Unrealized:  unrealized,
			Equity:      equity + unrealized,
			OpenSymbols: openSymbols,
		})

		if di == len(days)-1 {
			// Entries still pending have no next open inside the range.
			for _, st := range engine.States() {
				if len(st.OpenPositions) > 0 {
					r.logger.Info("pending entry discarded at range end",
						zap.String("symbol", st.Symbol), zap.Int("positions", len(st.OpenPositions)))
				}
			}
		}
	}

	res.Summary = Summarize(cfg, res.Trades, res.DailyPnl)
	return res, nil
}

func (r *BacktestRunner) entrySample(cfg *domain.StrategyConfig, bar domain.Bar, minute []domain.Bar, day time.Time) (domain.PriceSample, error) {
	switch cfg.EntryPriceType {
	case domain.EntryAtOpen:
		return domain.PriceSample{Value: bar.Open}, nil
	case domain.EntryAtVWAP:
		if v, err := r.vwap.VWAP(minute, at(day, 14, 0), at(day, 15, 0)); err == nil {
			return domain.PriceSample{Value: v}, nil
		}
		if v, err := r.vwap.VWAP(r.vwap.SynthesizeDaily(bar), at(day, 14, 0), at(day, 15, 0)); err == nil {
			return domain.PriceSample{Value: v, Synthesized: true}, nil
		}
		return domain.PriceSample{}, domain.ErrDataUnavailable
	default:
		return domain.PriceSample{Value: bar.Close}, nil
	}
}

func (r *BacktestRunner) collect(res *BacktestResult, tick *TickResult) float64 {
	if tick == nil {
		return 0
	}
	realized := 0.0
	res.Signals = append(res.Signals, tick.Signals...)
	for _, tr := range tick.Trades {
		res.Trades = append(res.Trades, tr)
		// The close leg's net already carries both fee legs; counting the
		// open fee on entry day would charge it twice.
		if tr.Action == "close" {
			realized += tr.RealizedPnl
		}
	}
	return realized
}

func (f *symbolFeed) barOn(day time.Time) (domain.Bar, bool) {
	key := day.Year()*1000 + day.YearDay()
	if i, ok := f.index[key]; ok {
		return f.daily[i], true
	}
	return domain.Bar{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func at(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}
