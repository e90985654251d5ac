package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// VWAPCalculator estimates the settlement reference price from minute bars.
// All methods are pure over their inputs; the realtime accumulator below
// carries the only state.
type VWAPCalculator struct{}

func NewVWAPCalculator() *VWAPCalculator {
	return &VWAPCalculator{}
}

// VWAP returns sum(close*volume)/sum(volume) over bars whose timestamp falls
// in [start, end], rounded to 2 decimals. Returns ErrDataUnavailable when no
// bar matches or total volume is zero.
func (c *VWAPCalculator) VWAP(bars []domain.Bar, start, end time.Time) (float64, error) {
	var pv, vol float64
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		pv += b.Close * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		return 0, fmt.Errorf("vwap window %s..%s: %w", start.Format("15:04"), end.Format("15:04"), domain.ErrDataUnavailable)
	}
	return round2(pv / vol), nil
}

// PriceAt returns the close of the latest bar at or before target.
func (c *VWAPCalculator) PriceAt(bars []domain.Bar, target time.Time) (domain.PriceSample, error) {
	var best *domain.Bar
	for i := range bars {
		if bars[i].Time.After(target) {
			continue
		}
		if best == nil || bars[i].Time.After(best.Time) {
			best = &bars[i]
		}
	}
	if best == nil {
		return domain.PriceSample{}, fmt.Errorf("no bar at or before %s: %w", target.Format("15:04"), domain.ErrDataUnavailable)
	}
	return domain.PriceSample{Value: best.Close}, nil
}

// synthesisWeights places intraday points at fixed clock times as fractions
// between the daily open and close (or against high/low for the morning
// extremes). The weights are a documented approximation policy carried over
// from the production tuning, not a derived result.
type synthPoint struct {
	hour, minute int
	price        func(o, h, l, c float64) float64
}

var synthesisWeights = []synthPoint{
	{9, 30, func(o, h, l, c float64) float64 { return o }},
	{10, 0, func(o, h, l, c float64) float64 { return o + (h-o)*0.3 }},
	{10, 30, func(o, h, l, c float64) float64 { return h }},
	{11, 0, func(o, h, l, c float64) float64 { return h - (h-l)*0.2 }},
	{11, 30, func(o, h, l, c float64) float64 { return o + (c-o)*0.4 }},
	{13, 0, func(o, h, l, c float64) float64 { return o + (c-o)*0.45 }},
	{13, 30, func(o, h, l, c float64) float64 { return o + (c-o)*0.5 }},
	{14, 0, func(o, h, l, c float64) float64 { return o + (c-o)*0.6 }},
	{14, 30, func(o, h, l, c float64) float64 { return o + (c-o)*0.7 }},
	{14, 45, func(o, h, l, c float64) float64 { return o + (c-o)*0.85 }},
	{14, 59, func(o, h, l, c float64) float64 { return c }},
	{15, 0, func(o, h, l, c float64) float64 { return c }},
}

// SynthesizeDaily builds approximate intraday bars from one daily bar for
// days where true minute data is missing. Volume is split evenly; each bar's
// high/low hugs the synthesized price but never exceeds the daily range.
func (c *VWAPCalculator) SynthesizeDaily(day domain.Bar) []domain.Bar {
	o, h, l, cl := day.Open, day.High, day.Low, day.Close
	perBar := day.Volume / float64(len(synthesisWeights))
	y, m, d := day.Time.Date()
	loc := day.Time.Location()

	out := make([]domain.Bar, 0, len(synthesisWeights))
	for _, p := range synthesisWeights {
		price := p.price(o, h, l, cl)
		out = append(out, domain.Bar{
			Time:   time.Date(y, m, d, p.hour, p.minute, 0, 0, loc),
			Open:   price,
			High:   math.Min(price*1.001, h),
			Low:    math.Max(price*0.999, l),
			Close:  price,
			Volume: perBar,
		})
	}
	return out
}

// SamplePrice is PriceAt with the synthesized fallback: when no real minute
// bar covers the target, the daily bar is expanded and sampled instead, and
// the result is flagged approximate.
func (c *VWAPCalculator) SamplePrice(minuteBars []domain.Bar, daily *domain.Bar, target time.Time) (domain.PriceSample, error) {
	if sample, err := c.PriceAt(minuteBars, target); err == nil {
		return sample, nil
	}
	if daily == nil {
		return domain.PriceSample{}, fmt.Errorf("no minute data and no daily fallback: %w", domain.ErrDataUnavailable)
	}
	sample, err := c.PriceAt(c.SynthesizeDaily(*daily), target)
	if err != nil {
		return domain.PriceSample{}, err
	}
	sample.Synthesized = true
	return sample, nil
}

// RealtimeVWAP accumulates cumulative price*volume per symbol during the live
// settlement window. Reset clears all symbols at the window start.
type RealtimeVWAP struct {
	mu  sync.Mutex
	pv  map[string]float64
	vol map[string]float64
}

func NewRealtimeVWAP() *RealtimeVWAP {
	return &RealtimeVWAP{
		pv:  make(map[string]float64),
		vol: make(map[string]float64),
	}
}

func (r *RealtimeVWAP) Add(symbol string, price, volume float64) {
	if price <= 0 || volume <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pv[symbol] += price * volume
	r.vol[symbol] += volume
}

func (r *RealtimeVWAP) Value(symbol string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vol[symbol] <= 0 {
		return 0, fmt.Errorf("realtime vwap for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	return round2(r.pv[symbol] / r.vol[symbol]), nil
}

func (r *RealtimeVWAP) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pv = make(map[string]float64)
	r.vol = make(map[string]float64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
