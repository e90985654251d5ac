package usecase_test

import (
	"math"
	"testing"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testContract(t *testing.T) *domain.Contract {
	t.Helper()
	c, err := domain.NewStaticRegistry().Get("IC0")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return c
}

func TestCostCalculator_Margin(t *testing.T) {
	calc := usecase.NewCostCalculator(domain.NewStaticRegistry())
	c := testContract(t)

	// 5500 * 200 * 1 * 0.12
	got, err := calc.Margin(c, 5500.0, 1)
	if err != nil {
		t.Fatalf("Margin: %v", err)
	}
	if !floatEquals(got, 132000.0) {
		t.Errorf("Expected margin 132000, got %f", got)
	}

	if _, err := calc.Margin(c, -1, 1); err == nil {
		t.Error("Expected error for negative price")
	}
	if _, err := calc.Margin(c, 5500, 0); err == nil {
		t.Error("Expected error for zero qty")
	}
}

func TestCostCalculator_Fee(t *testing.T) {
	calc := usecase.NewCostCalculator(domain.NewStaticRegistry())
	c := testContract(t)

	tests := []struct {
		name       string
		isOpen     bool
		closeToday bool
		want       float64
	}{
		{"open", true, false, 25.3},        // 5500*200*0.000023
		{"close", false, false, 25.3},      // same rate as open
		{"close_today", false, true, 379.5}, // 5500*200*0.000345
	}
	for _, tt := range tests {
		got, err := calc.Fee(c, 5500.0, 1, tt.isOpen, tt.closeToday)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !floatEquals(got, tt.want) {
			t.Errorf("%s: expected fee %f, got %f", tt.name, tt.want, got)
		}
	}
}

// Closing a position opened the same day must always cost more than a normal
// close, at any price and size.
func TestCostCalculator_CloseTodayPenalty(t *testing.T) {
	calc := usecase.NewCostCalculator(domain.NewStaticRegistry())
	for _, symbol := range []string{"IC0", "IM0", "IF0", "IH0"} {
		c, err := domain.NewStaticRegistry().Get(symbol)
		if err != nil {
			t.Fatalf("registry %s: %v", symbol, err)
		}
		for _, price := range []float64{100.0, 3999.8, 5500.0, 7210.2} {
			for _, qty := range []int{1, 2, 5} {
				today, _ := calc.Fee(c, price, qty, false, true)
				normal, _ := calc.Fee(c, price, qty, false, false)
				if today <= normal {
					t.Errorf("%s price=%f qty=%d: close-today fee %f not above close fee %f",
						symbol, price, qty, today, normal)
				}
			}
		}
	}
}

func TestCostCalculator_RoundTrip(t *testing.T) {
	calc := usecase.NewCostCalculator(domain.NewStaticRegistry())
	c := testContract(t)

	rt, err := calc.RoundTripCost(c, 5439.0, 5520.0, 1, false)
	if err != nil {
		t.Fatalf("RoundTripCost: %v", err)
	}

	// gross = (5520-5439)*200 = 16200
	if !floatEquals(rt.GrossPnl, 16200.0) {
		t.Errorf("Expected gross 16200, got %f", rt.GrossPnl)
	}
	// openFee 5439*200*0.000023 -> 25.02, closeFee 5520*200*0.000023 -> 25.39
	if !floatEquals(rt.OpenFee, 25.02) || !floatEquals(rt.CloseFee, 25.39) {
		t.Errorf("Unexpected fees: open %f close %f", rt.OpenFee, rt.CloseFee)
	}
	if !floatEquals(rt.TotalFee, rt.OpenFee+rt.CloseFee) {
		t.Errorf("Total fee %f != open+close %f", rt.TotalFee, rt.OpenFee+rt.CloseFee)
	}
	// net = gross - totalFee, exactly
	if !floatEquals(rt.NetPnl, rt.GrossPnl-rt.TotalFee) {
		t.Errorf("Net %f != gross %f - fees %f", rt.NetPnl, rt.GrossPnl, rt.TotalFee)
	}
	if rt.BreakevenPoints <= 0 {
		t.Errorf("Expected positive breakeven points, got %f", rt.BreakevenPoints)
	}
}

func TestCostCalculator_RoundTripSameDay(t *testing.T) {
	calc := usecase.NewCostCalculator(domain.NewStaticRegistry())
	c := testContract(t)

	sameDay, err := calc.RoundTripCost(c, 5500.0, 5510.0, 1, true)
	if err != nil {
		t.Fatalf("RoundTripCost sameDay: %v", err)
	}
	overnight, err := calc.RoundTripCost(c, 5500.0, 5510.0, 1, false)
	if err != nil {
		t.Fatalf("RoundTripCost overnight: %v", err)
	}
	if sameDay.CloseFee <= overnight.CloseFee {
		t.Errorf("Same-day close fee %f should exceed overnight close fee %f",
			sameDay.CloseFee, overnight.CloseFee)
	}
	if sameDay.NetPnl >= overnight.NetPnl {
		t.Errorf("Same-day net %f should be below overnight net %f",
			sameDay.NetPnl, overnight.NetPnl)
	}
}
