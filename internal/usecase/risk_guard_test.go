package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
)

func TestRiskGuard_PositionLimits(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	cfg.MaxPositionPerSymbol = 2
	cfg.MaxTotalPosition = 3
	guard := usecase.NewRiskGuard(cfg)

	require.NoError(t, guard.AllowOpen("IC0", 2))
	guard.OnOpen("IC0", 2, 50)

	assert.Error(t, guard.AllowOpen("IC0", 1), "per-symbol limit reached")
	require.NoError(t, guard.AllowOpen("IM0", 1))
	guard.OnOpen("IM0", 1, 25)

	assert.Error(t, guard.AllowOpen("IM0", 1), "total limit reached")

	guard.OnClose("IC0", 2, 1000)
	assert.NoError(t, guard.AllowOpen("IM0", 1), "room after close")
}

func TestRiskGuard_DailyLossBreach(t *testing.T) {
	cfg := domain.DefaultStrategyConfig() // max_daily_loss 10000
	guard := usecase.NewRiskGuard(cfg)

	breached, _ := guard.Check(-9999)
	assert.False(t, breached)

	breached, reason := guard.Check(-10500)
	require.True(t, breached, "cumulative -10500 against 10000 limit")
	assert.Contains(t, reason, "daily loss")

	// Sticky until the daily reset.
	breached, _ = guard.Check(0)
	assert.True(t, breached)
	assert.Error(t, guard.AllowOpen("IC0", 1))

	guard.ResetDaily(time.Now())
	breached, _ = guard.Check(0)
	assert.False(t, breached)
	assert.NoError(t, guard.AllowOpen("IC0", 1))
}

func TestRiskGuard_DrawdownBreach(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	cfg.Risk.MaxDailyLoss = 1e12 // keep the daily-loss rule out of the way
	cfg.Risk.MaxDrawdownPct = 0.05
	cfg.Risk.InitialCapital = 500000
	guard := usecase.NewRiskGuard(cfg)

	// 4% under the peak: fine. 5%: breach.
	breached, _ := guard.Check(-20000)
	assert.False(t, breached)

	breached, reason := guard.Check(-25000)
	require.True(t, breached)
	assert.Contains(t, reason, "drawdown")
}

func TestRiskGuard_Snapshot(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	guard := usecase.NewRiskGuard(cfg)

	guard.OnOpen("IC0", 1, 25.30)
	guard.OnClose("IC0", 1, 3974.70)

	snap := guard.Snapshot()
	assert.InDelta(t, 3949.40, snap.DailyPnl, 1e-9)
	assert.InDelta(t, 503949.40, snap.Equity, 1e-9)
	assert.False(t, snap.Breached)
	assert.GreaterOrEqual(t, snap.PeakEquity, snap.Equity)
}
