package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
	"go.uber.org/zap"
)

// stubMarketData serves canned bars, keyed by symbol and day.
type stubMarketData struct {
	daily  map[string][]domain.Bar
	minute map[string][]domain.Bar // key symbol + "@" + YYYY-MM-DD
}

func (s *stubMarketData) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return nil, fmt.Errorf("quote %s: %w", symbol, domain.ErrDataUnavailable)
}

func (s *stubMarketData) GetMinuteBars(ctx context.Context, symbol string, date time.Time) ([]domain.Bar, error) {
	key := symbol + "@" + date.Format("2006-01-02")
	if bars, ok := s.minute[key]; ok {
		return bars, nil
	}
	return nil, fmt.Errorf("minute bars %s: %w", key, domain.ErrDataUnavailable)
}

func (s *stubMarketData) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	bars, ok := s.daily[symbol]
	if !ok {
		return nil, fmt.Errorf("daily bars %s: %w", symbol, domain.ErrDataUnavailable)
	}
	return bars, nil
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func dailyBar(d int, open, high, low, close, vol float64) domain.Bar {
	return domain.Bar{Time: day(d), Open: open, High: high, Low: low, Close: close, Volume: vol}
}

func settlementBar(d int, close float64) domain.Bar {
	return domain.Bar{
		Time:   time.Date(2024, 6, d, 14, 30, 0, 0, time.UTC),
		Close:  close,
		Volume: 100,
	}
}

func newBacktestData() *stubMarketData {
	return &stubMarketData{
		daily: map[string][]domain.Bar{
			"IC0": {
				// Day 1: base 5500 (real minute bar), close 5440 = -1.09%, tier 1.
				dailyBar(3, 5540, 5560, 5420, 5440, 10000),
				// Day 2: flat, settles day 1's entry at the 5520 open.
				dailyBar(4, 5520, 5530, 5500, 5515, 10000),
				// Day 3: base 5540, close 5400 = -2.53%, both tiers; last day.
				dailyBar(5, 5530, 5545, 5390, 5400, 10000),
			},
		},
		minute: map[string][]domain.Bar{
			"IC0@2024-06-03": {settlementBar(3, 5500)},
			"IC0@2024-06-05": {settlementBar(5, 5540)},
		},
	}
}

func runBacktest(t *testing.T) *usecase.BacktestResult {
	t.Helper()
	runner := usecase.NewBacktestRunner(newBacktestData(), domain.NewStaticRegistry(), zap.NewNop())
	res, err := runner.Run(context.Background(), []string{"IC0"}, day(3), day(5), domain.DefaultStrategyConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestBacktest_CrossDaySettlement(t *testing.T) {
	res := runBacktest(t)

	var opens, closes []*domain.Trade
	for _, tr := range res.Trades {
		if tr.Action == "open" {
			opens = append(opens, tr)
		} else {
			closes = append(closes, tr)
		}
	}

	// Day 1 tier 1 plus day 3's gap through both tiers.
	if len(opens) != 3 {
		t.Fatalf("Expected 3 open trades, got %d: %+v", len(opens), opens)
	}
	// Only day 1's entry has a next open inside the range.
	if len(closes) != 1 {
		t.Fatalf("Expected 1 close trade, got %d: %+v", len(closes), closes)
	}

	cl := closes[0]
	if cl.Price != 5520 {
		t.Errorf("Close must fill at the next day's open 5520, got %f", cl.Price)
	}
	if cl.Reason != "next_open_close" {
		t.Errorf("Expected reason next_open_close, got %q", cl.Reason)
	}
	if cl.CloseToday {
		t.Error("Cross-day close must not pay the close-today rate")
	}

	// The cross-day invariant: every close strictly after its entry day.
	entryDay := opens[0].Time.YearDay()
	if cl.Time.YearDay() <= entryDay {
		t.Errorf("Close on day %d not strictly after entry day %d", cl.Time.YearDay(), entryDay)
	}

	if opens[0].Price != 5440 {
		t.Errorf("Day 1 entry should fill at the close 5440, got %f", opens[0].Price)
	}
}

func TestBacktest_SignalsAndDailySeries(t *testing.T) {
	res := runBacktest(t)

	if len(res.DailyPnl) != 3 {
		t.Fatalf("Expected 3 daily marks, got %d", len(res.DailyPnl))
	}
	var buy1, buy2, sell int
	for _, sig := range res.Signals {
		switch sig.Type {
		case domain.SignalBuyLevel1:
			buy1++
		case domain.SignalBuyLevel2:
			buy2++
		case domain.SignalSellClose:
			sell++
		}
	}
	if buy1 != 2 || buy2 != 1 || sell != 1 {
		t.Errorf("Signal mix wrong: buy1=%d buy2=%d sell=%d", buy1, buy2, sell)
	}

	if res.Summary == nil || res.Summary.TradeCount != 1 {
		t.Errorf("Summary should count 1 completed round trip, got %+v", res.Summary)
	}
}

func TestBacktest_EquityCountsFeesOnce(t *testing.T) {
	res := runBacktest(t)

	var net float64
	for _, tr := range res.Trades {
		if tr.Action == "close" {
			net += tr.RealizedPnl
		}
	}
	var realized float64
	for _, d := range res.DailyPnl {
		realized += d.Realized
	}
	// The close leg's net is the complete round-trip result; the daily
	// series must not charge the open fee a second time on entry day.
	if !floatEquals(realized, net) {
		t.Errorf("Daily realized sum %f diverges from trade net %f", realized, net)
	}

	cfg := domain.DefaultStrategyConfig()
	final := res.DailyPnl[len(res.DailyPnl)-1]
	// Final-day entries fill at their own close, so unrealized is zero and
	// equity is exactly initial capital plus the settled nets.
	if !floatEquals(final.Equity, cfg.Risk.InitialCapital+net) {
		t.Errorf("Final equity %f, expected %f", final.Equity, cfg.Risk.InitialCapital+net)
	}
}

func TestBacktest_HonorsMonitorWindow(t *testing.T) {
	data := newBacktestData()
	data.minute["IC0@2024-06-03"] = []domain.Bar{{
		Time:   time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		Close:  5500,
		Volume: 100,
	}}

	cfg := domain.DefaultStrategyConfig()
	cfg.MonitorStart = "10:00"
	cfg.MonitorEnd = "11:00"

	runner := usecase.NewBacktestRunner(data, domain.NewStaticRegistry(), zap.NewNop())
	res, err := runner.Run(context.Background(), []string{"IC0"}, day(3), day(4), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var open *domain.Trade
	for _, tr := range res.Trades {
		if tr.Action == "open" {
			open = tr
		}
	}
	if open == nil {
		t.Fatal("A morning window must still produce the day 1 entry")
	}
	// Decision tick sits one minute before the window closes.
	if open.Time.Hour() != 10 || open.Time.Minute() != 59 {
		t.Errorf("Entry decided at %s, expected 10:59", open.Time.Format("15:04"))
	}
}

func TestBacktest_Deterministic(t *testing.T) {
	a := runBacktest(t)
	b := runBacktest(t)

	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("Trade counts differ across identical runs: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if a.Trades[i].Price != b.Trades[i].Price || a.Trades[i].RealizedPnl != b.Trades[i].RealizedPnl {
			t.Errorf("Trade %d differs across identical runs", i)
		}
	}
}

func TestBacktest_RejectsInvalidConfig(t *testing.T) {
	runner := usecase.NewBacktestRunner(newBacktestData(), domain.NewStaticRegistry(), zap.NewNop())
	cfg := domain.DefaultStrategyConfig()
	cfg.Threshold2 = cfg.Threshold1 / 2

	_, err := runner.Run(context.Background(), []string{"IC0"}, day(3), day(5), cfg)
	if err == nil {
		t.Fatal("Expected config error")
	}
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *domain.ConfigError, got %T", err)
	}
}
