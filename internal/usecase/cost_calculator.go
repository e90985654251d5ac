package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// CostCalculator computes margin, fees and round-trip P&L for index futures.
// Every function is pure and deterministic. Money values go through decimal
// and are rounded to 2 places before they leave the calculator, so persisted
// amounts never carry float dust.
type CostCalculator struct {
	registry domain.ContractRegistry
}

func NewCostCalculator(registry domain.ContractRegistry) *CostCalculator {
	return &CostCalculator{registry: registry}
}

// RoundTrip is the full cost breakdown of one open/close cycle.
type RoundTrip struct {
	OpenFee         float64 `json:"open_fee"`
	CloseFee        float64 `json:"close_fee"`
	TotalFee        float64 `json:"total_fee"`
	Margin          float64 `json:"margin"`
	GrossPnl        float64 `json:"gross_pnl"`
	NetPnl          float64 `json:"net_pnl"`
	BreakevenPoints float64 `json:"breakeven_points"`
}

// Margin returns price * multiplier * qty * marginRatio.
func (c *CostCalculator) Margin(contract *domain.Contract, price float64, qty int) (float64, error) {
	if price <= 0 || qty <= 0 {
		return 0, fmt.Errorf("margin: bad price %f or qty %d: %w", price, qty, domain.ErrDataUnavailable)
	}
	m := notional(contract, price, qty).Mul(decimal.NewFromFloat(contract.MarginRatio))
	return f2(m), nil
}

// Fee returns the exchange fee for one leg. closeToday selects the penalty
// rate for closing a position opened the same day; it only applies when
// isOpen is false.
func (c *CostCalculator) Fee(contract *domain.Contract, price float64, qty int, isOpen, closeToday bool) (float64, error) {
	if price <= 0 || qty <= 0 {
		return 0, fmt.Errorf("fee: bad price %f or qty %d: %w", price, qty, domain.ErrDataUnavailable)
	}
	rate := contract.CloseFeeRate
	if isOpen {
		rate = contract.OpenFeeRate
	} else if closeToday {
		rate = contract.CloseTodayFeeRate
	}
	return f2(notional(contract, price, qty).Mul(decimal.NewFromFloat(rate))), nil
}

// RoundTripCost prices a full open/close cycle. sameDay applies the
// close-today fee rate to the closing leg.
func (c *CostCalculator) RoundTripCost(contract *domain.Contract, entryPrice, exitPrice float64, qty int, sameDay bool) (*RoundTrip, error) {
	openFee, err := c.Fee(contract, entryPrice, qty, true, false)
	if err != nil {
		return nil, err
	}
	closeFee, err := c.Fee(contract, exitPrice, qty, false, sameDay)
	if err != nil {
		return nil, err
	}
	margin, err := c.Margin(contract, entryPrice, qty)
	if err != nil {
		return nil, err
	}

	mult := decimal.NewFromFloat(contract.Multiplier).Mul(decimal.NewFromInt(int64(qty)))
	gross := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(entryPrice)).Mul(mult)
	totalFee := decimal.NewFromFloat(openFee).Add(decimal.NewFromFloat(closeFee))
	net := gross.Sub(totalFee)

	rt := &RoundTrip{
		OpenFee:  openFee,
		CloseFee: closeFee,
		TotalFee: f2(totalFee),
		Margin:   margin,
		GrossPnl: f2(gross),
		NetPnl:   f2(net),
	}
	// Index points the trade must move to cover both fee legs.
	if !mult.IsZero() {
		rt.BreakevenPoints, _ = totalFee.Div(mult).Round(4).Float64()
	}
	return rt, nil
}

// MarginFor resolves the contract and sizes the margin in one call.
func (c *CostCalculator) MarginFor(symbol string, price float64, qty int) (float64, error) {
	contract, err := c.registry.Get(symbol)
	if err != nil {
		return 0, err
	}
	return c.Margin(contract, price, qty)
}

func notional(contract *domain.Contract, price float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(contract.Multiplier)).
		Mul(decimal.NewFromInt(int64(qty)))
}

func f2(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}
