package usecase_test

import (
	"context"
	"testing"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
	"go.uber.org/zap"
)

type nopGateway struct{}

func (nopGateway) RecordSignal(ctx context.Context, sig *domain.Signal) error      { return nil }
func (nopGateway) RecordTrade(ctx context.Context, trade *domain.Trade) error      { return nil }
func (nopGateway) SavePosition(ctx context.Context, pos *domain.Position) error    { return nil }
func (nopGateway) RecordRiskEvent(ctx context.Context, ev *domain.RiskEvent) error { return nil }
func (nopGateway) Notify(ctx context.Context, event *domain.NotifyEvent) error     { return nil }

func newScheduler(cfg *domain.StrategyConfig) *usecase.LiveScheduler {
	registry := domain.NewStaticRegistry()
	risk := usecase.NewRiskGuard(cfg)
	engine := usecase.NewStrategyEngine(registry, usecase.NewCostCalculator(registry), risk)
	return usecase.NewLiveScheduler(
		&stubMarketData{}, nopGateway{}, engine, risk,
		usecase.NewRealtimeVWAP(), cfg, zap.NewNop(),
	)
}

func TestScheduler_UpdateConfigRejectsInvalid(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	sched := newScheduler(cfg)

	bad := cfg.Clone()
	bad.Threshold1 = -0.5
	if _, err := sched.UpdateConfig(bad); err == nil {
		t.Fatal("Expected validation error")
	}
	if got := sched.Config().Threshold1; got != cfg.Threshold1 {
		t.Errorf("Rejected update must keep the previous snapshot, threshold_1 = %f", got)
	}
}

func TestScheduler_UpdateConfigPublishesClone(t *testing.T) {
	sched := newScheduler(domain.DefaultStrategyConfig())

	next := domain.DefaultStrategyConfig()
	next.Threshold1 = 0.015
	applied, err := sched.UpdateConfig(next)
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	// Mutating the caller's copy must not reach the active snapshot.
	next.Threshold1 = 0.9
	if sched.Config().Threshold1 != 0.015 {
		t.Errorf("Snapshot aliased the caller's config, threshold_1 = %f", sched.Config().Threshold1)
	}
	if applied.Threshold1 != 0.015 {
		t.Errorf("Applied snapshot wrong: %f", applied.Threshold1)
	}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	sched := newScheduler(domain.DefaultStrategyConfig())

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Second Start: %v", err)
	}
	if !sched.Running() {
		t.Error("Running should report true after Start")
	}

	sched.Stop()
	sched.Stop()
	if sched.Running() {
		t.Error("Running should report false after Stop")
	}
}

func TestScheduler_StartRejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	cfg.MonitorStart = "29:99"
	sched := newScheduler(cfg)

	if err := sched.Start(context.Background()); err == nil {
		t.Fatal("Expected validation error")
	}
	if sched.Running() {
		t.Error("Failed Start must not leave the scheduler running")
	}
}
