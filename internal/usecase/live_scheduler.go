package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"go.uber.org/zap"
)

// staleAfterTicks is how many consecutive failed fetches flag a symbol stale.
const staleAfterTicks = 3

// LiveScheduler drives the strategy engine against live quotes. One goroutine
// per symbol on a fixed ticker keeps same-symbol ticks strictly serialized
// while different symbols run independently. Config hot updates swap an
// immutable snapshot through an atomic pointer; a tick reads exactly one
// snapshot for its whole evaluation.
type LiveScheduler struct {
	data    domain.MarketDataSource
	gateway domain.ExecutionGateway
	engine  *StrategyEngine
	risk    *RiskGuard
	vwap    *RealtimeVWAP
	logger  *zap.Logger

	cfg atomic.Pointer[domain.StrategyConfig]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	ctx     context.Context
	loops   map[string]context.CancelFunc
	wg      sync.WaitGroup

	// session lifecycle flags, reset daily
	lifecycle struct {
		sync.Mutex
		day              int // year*1000 + yday
		preMarketDone    bool
		dayOpenProcessed bool
		postMarketDone   bool
	}
}

func NewLiveScheduler(
	data domain.MarketDataSource,
	gateway domain.ExecutionGateway,
	engine *StrategyEngine,
	risk *RiskGuard,
	vwap *RealtimeVWAP,
	cfg *domain.StrategyConfig,
	logger *zap.Logger,
) *LiveScheduler {
	s := &LiveScheduler{
		data:    data,
		gateway: gateway,
		engine:  engine,
		risk:    risk,
		vwap:    vwap,
		logger:  logger,
	}
	s.cfg.Store(cfg)
	return s
}

// Config returns the active snapshot.
func (s *LiveScheduler) Config() *domain.StrategyConfig {
	return s.cfg.Load()
}

// UpdateConfig validates and publishes a new snapshot. On validation failure
// the previous snapshot stays active and the error is returned. While the
// scheduler is running, symbol loops are reconciled against the new symbol
// list: added symbols start ticking, removed ones stop.
func (s *LiveScheduler) UpdateConfig(next *domain.StrategyConfig) (*domain.StrategyConfig, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	snapshot := next.Clone()
	s.cfg.Store(snapshot)
	s.risk.Reconfigure(snapshot)

	s.mu.Lock()
	if s.running {
		s.reconcileLoopsLocked(snapshot.Symbols)
	}
	s.mu.Unlock()

	s.logger.Info("config updated",
		zap.Strings("symbols", snapshot.Symbols),
		zap.Float64("threshold_1", snapshot.Threshold1),
		zap.Float64("threshold_2", snapshot.Threshold2))
	return snapshot, nil
}

// Start launches the symbol loops and the session lifecycle loop. Idempotent.
func (s *LiveScheduler) Start(parent context.Context) error {
	cfg := s.cfg.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.ctx = ctx
	s.running = true
	s.loops = make(map[string]context.CancelFunc)

	for _, symbol := range cfg.Symbols {
		s.startLoopLocked(symbol)
	}
	s.wg.Add(1)
	go s.sessionLoop(ctx)

	s.logger.Info("scheduler started", zap.Strings("symbols", cfg.Symbols))
	return nil
}

// Stop cancels the loops and waits for in-flight ticks to drain, so no
// half-applied transition survives the teardown. Idempotent.
func (s *LiveScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.loops = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *LiveScheduler) startLoopLocked(symbol string) {
	loopCtx, stop := context.WithCancel(s.ctx)
	s.loops[symbol] = stop
	s.wg.Add(1)
	go s.symbolLoop(loopCtx, symbol)
}

// reconcileLoopsLocked brings the running loops in line with the new symbol
// list. A removed symbol's state stays in the engine, so positions it still
// holds settle at the next day-open pass.
func (s *LiveScheduler) reconcileLoopsLocked(symbols []string) {
	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
		if _, ok := s.loops[sym]; !ok {
			s.startLoopLocked(sym)
			s.logger.Info("symbol loop started", zap.String("symbol", sym))
		}
	}
	for sym, stop := range s.loops {
		if !want[sym] {
			stop()
			delete(s.loops, sym)
			s.logger.Info("symbol loop stopped", zap.String("symbol", sym))
		}
	}
}

func (s *LiveScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *LiveScheduler) symbolLoop(ctx context.Context, symbol string) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.Load().TickIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	staleCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx, symbol); err != nil {
				staleCount++
				if staleCount == staleAfterTicks {
					s.engine.MarkStale(symbol, true)
					s.logger.Warn("symbol marked stale", zap.String("symbol", symbol), zap.Error(err))
				}
				continue
			}
			staleCount = 0
		}
	}
}

// tick runs one full evaluation for a symbol against the snapshot it loads
// at entry. Errors are local to this symbol and this tick.
func (s *LiveScheduler) tick(ctx context.Context, symbol string) error {
	cfg := s.cfg.Load()
	now := time.Now()

	quote, err := s.data.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}
	if inSettlementWindow(now) {
		s.vwap.Add(symbol, quote.Last, quote.Volume)
	}

	// Risk check first: a breach that crossed the threshold on another
	// symbol's tick must liquidate this one in the same pass.
	if breached, reason := s.risk.Check(s.engine.UnrealizedPnl()); breached {
		s.handleBreach(ctx, reason, now)
		return nil
	}

	res, err := s.engine.OnTick(cfg, symbol, domain.PriceSample{Value: quote.Last}, now)
	if err != nil {
		return err
	}
	s.dispatch(ctx, res)
	return nil
}

func (s *LiveScheduler) handleBreach(ctx context.Context, reason string, now time.Time) {
	if !s.risk.ForceCloseOnBreach() {
		s.logger.Warn("risk breach, new entries blocked", zap.String("reason", reason))
		return
	}

	results := s.engine.ForceCloseAll(nil, now)
	if len(results) == 0 {
		return
	}
	snap := s.risk.Snapshot()
	ev := &domain.RiskEvent{
		ID:       newRecordID("risk", "account", now),
		Reason:   reason,
		DailyPnl: snap.DailyPnl,
		Drawdown: snap.Drawdown,
		Time:     now,
	}
	if err := s.gateway.RecordRiskEvent(ctx, ev); err != nil {
		s.logger.Error("risk event record failed", zap.Error(err))
	}
	if err := s.gateway.Notify(ctx, RenderRiskEvent(ev)); err != nil {
		s.logger.Error("risk notify failed", zap.Error(err))
	}
	for _, res := range results {
		s.dispatch(ctx, res)
	}
	s.logger.Warn("force closed all positions", zap.String("reason", reason))
}

// dispatch hands a tick's records to the gateway. Delivery failures are
// logged; the transition already happened and is the source of truth.
func (s *LiveScheduler) dispatch(ctx context.Context, res *TickResult) {
	if res == nil {
		return
	}
	for _, sig := range res.Signals {
		if err := s.gateway.RecordSignal(ctx, sig); err != nil {
			s.logger.Error("signal record failed", zap.String("id", sig.ID), zap.Error(err))
		}
		if err := s.gateway.Notify(ctx, RenderSignal(sig)); err != nil {
			s.logger.Error("signal notify failed", zap.String("id", sig.ID), zap.Error(err))
		}
	}
	for _, tr := range res.Trades {
		if err := s.gateway.RecordTrade(ctx, tr); err != nil {
			s.logger.Error("trade record failed", zap.String("id", tr.ID), zap.Error(err))
		}
	}
	for i := range res.State.OpenPositions {
		pos := res.State.OpenPositions[i]
		if err := s.gateway.SavePosition(ctx, &pos); err != nil {
			s.logger.Error("position save failed", zap.String("id", pos.ID), zap.Error(err))
		}
	}
}

// sessionLoop runs the trading-day lifecycle: pre-market reset, the day-open
// settlement pass for overnight positions, and the post-market report.
func (s *LiveScheduler) sessionLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLifecycle(ctx, time.Now())
		}
	}
}

func (s *LiveScheduler) runLifecycle(ctx context.Context, now time.Time) {
	lc := &s.lifecycle
	lc.Lock()
	day := now.Year()*1000 + now.YearDay()
	if lc.day != day {
		lc.day = day
		lc.preMarketDone = false
		lc.dayOpenProcessed = false
		lc.postMarketDone = false
	}
	clock := domain.ClockOf(now)
	runPre := !lc.preMarketDone && clock >= preMarketClock && clock < dayOpenStartClock
	runOpen := !lc.dayOpenProcessed && clock >= dayOpenStartClock && clock <= dayOpenEndClock
	runPost := !lc.postMarketDone && clock >= postMarketClock
	if runPre {
		lc.preMarketDone = true
	}
	if runOpen {
		lc.dayOpenProcessed = true
	}
	if runPost {
		lc.postMarketDone = true
	}
	lc.Unlock()

	switch {
	case runPre:
		s.risk.ResetDaily(now)
		s.engine.ResetSession()
		s.vwap.Reset()
		s.logger.Info("pre-market reset done")
	case runOpen:
		s.settleOvernight(ctx, now)
	case runPost:
		report := RenderPnlReport(s.risk.Snapshot())
		if err := s.gateway.Notify(ctx, report); err != nil {
			s.logger.Error("pnl report notify failed", zap.Error(err))
		}
		s.logger.Info("post-market report sent")
	}
}

// settleOvernight closes positions carried from the previous session at the
// current open quote. The cross-day exit rule of the strategy.
func (s *LiveScheduler) settleOvernight(ctx context.Context, now time.Time) {
	for _, st := range s.engine.States() {
		if len(st.OpenPositions) == 0 {
			continue
		}
		quote, err := s.data.GetQuote(ctx, st.Symbol)
		if err != nil {
			s.logger.Error("day-open quote failed", zap.String("symbol", st.Symbol), zap.Error(err))
			continue
		}
		res, err := s.engine.CloseAll(st.Symbol, domain.PriceSample{Value: quote.Last}, now, "next_open_close", false)
		if err != nil {
			s.logger.Error("day-open close failed", zap.String("symbol", st.Symbol), zap.Error(err))
			continue
		}
		s.dispatch(ctx, res)
	}
}

var (
	preMarketClock, _    = domain.ParseClock("09:15")
	dayOpenStartClock, _ = domain.ParseClock("09:30")
	dayOpenEndClock, _   = domain.ParseClock("09:35")
	postMarketClock, _   = domain.ParseClock("15:05")
	settleStartClock, _  = domain.ParseClock("14:00")
	settleEndClock, _    = domain.ParseClock("15:00")
)

func inSettlementWindow(t time.Time) bool {
	c := domain.ClockOf(t)
	return c >= settleStartClock && c <= settleEndClock
}
