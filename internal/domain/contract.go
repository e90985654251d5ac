package domain

import (
	"fmt"
	"math"
	"strings"
)

// Contract holds immutable per-product metadata for a CFFEX index future.
// Fee rates are fractions of the notional (price * multiplier * qty).
type Contract struct {
	Product           string  `json:"product"`
	Name              string  `json:"name"`
	Multiplier        float64 `json:"multiplier"`
	MarginRatio       float64 `json:"margin_ratio"`
	TickSize          float64 `json:"tick_size"`
	OpenFeeRate       float64 `json:"open_fee_rate"`
	CloseFeeRate      float64 `json:"close_fee_rate"`
	CloseTodayFeeRate float64 `json:"close_today_fee_rate"`
}

// ContractRegistry resolves a symbol ("IC0", "IM2406") to its contract metadata.
type ContractRegistry interface {
	Get(symbol string) (*Contract, error)
}

var cffexContracts = map[string]*Contract{
	"IF": {Product: "IF", Name: "沪深300股指期货", Multiplier: 300, MarginRatio: 0.10, TickSize: 0.2, OpenFeeRate: 0.000023, CloseFeeRate: 0.000023, CloseTodayFeeRate: 0.000345},
	"IH": {Product: "IH", Name: "上证50股指期货", Multiplier: 300, MarginRatio: 0.10, TickSize: 0.2, OpenFeeRate: 0.000023, CloseFeeRate: 0.000023, CloseTodayFeeRate: 0.000345},
	"IC": {Product: "IC", Name: "中证500股指期货", Multiplier: 200, MarginRatio: 0.12, TickSize: 0.2, OpenFeeRate: 0.000023, CloseFeeRate: 0.000023, CloseTodayFeeRate: 0.000345},
	"IM": {Product: "IM", Name: "中证1000股指期货", Multiplier: 200, MarginRatio: 0.12, TickSize: 0.2, OpenFeeRate: 0.000023, CloseFeeRate: 0.000023, CloseTodayFeeRate: 0.000345},
}

// StaticRegistry serves the built-in CFFEX contract table.
type StaticRegistry struct{}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{}
}

func (r *StaticRegistry) Get(symbol string) (*Contract, error) {
	code := ProductCode(symbol)
	if c, ok := cffexContracts[code]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown contract product %q for symbol %q: %w", code, symbol, ErrDataUnavailable)
}

// ProductCode extracts the leading letters of a symbol: "IC0" -> "IC", "IM2406" -> "IM".
func ProductCode(symbol string) string {
	s := strings.ToUpper(symbol)
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return s[:i]
		}
	}
	return s
}

// PriceLimits returns the daily up/down limit pair: +-10% of the previous
// settlement, rounded to the contract tick.
func (c *Contract) PriceLimits(prevSettlement float64) (upper, lower float64) {
	upper = c.RoundToTick(prevSettlement * 1.10)
	lower = c.RoundToTick(prevSettlement * 0.90)
	return upper, lower
}

func (c *Contract) RoundToTick(price float64) float64 {
	if c.TickSize <= 0 {
		return price
	}
	return math.Round(price/c.TickSize) * c.TickSize
}
