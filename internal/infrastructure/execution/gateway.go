package execution

import (
	"context"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"go.uber.org/zap"
)

const (
	retryAttempts = 5
	retryBaseWait = 500 * time.Millisecond
)

// Gateway fans engine records out to persistence and notification channels.
// Delivery is at-least-once: a failed write goes to a background retry loop
// with exponential backoff and never blocks or rolls back the state
// transition that produced the record. Records carry stable ids and the
// repositories upsert, so redelivery is idempotent.
type Gateway struct {
	positions domain.PositionRepository
	trades    domain.TradeRepository
	signals   domain.SignalRepository
	risks     domain.RiskRepository
	notifiers []domain.Notifier
	logger    *zap.Logger

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func NewGateway(
	positions domain.PositionRepository,
	trades domain.TradeRepository,
	signals domain.SignalRepository,
	risks domain.RiskRepository,
	notifiers []domain.Notifier,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		positions: positions,
		trades:    trades,
		signals:   signals,
		risks:     risks,
		notifiers: notifiers,
		logger:    logger,
		closed:    make(chan struct{}),
	}
}

func (g *Gateway) RecordSignal(ctx context.Context, sig *domain.Signal) error {
	if err := g.signals.SaveSignal(ctx, sig); err != nil {
		g.retryLater("signal "+sig.ID, func(ctx context.Context) error {
			return g.signals.SaveSignal(ctx, sig)
		})
	}
	return nil
}

func (g *Gateway) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	if err := g.trades.SaveTrade(ctx, trade); err != nil {
		g.retryLater("trade "+trade.ID, func(ctx context.Context) error {
			return g.trades.SaveTrade(ctx, trade)
		})
	}
	return nil
}

func (g *Gateway) SavePosition(ctx context.Context, pos *domain.Position) error {
	if err := g.positions.SavePosition(ctx, pos); err != nil {
		g.retryLater("position "+pos.ID, func(ctx context.Context) error {
			return g.positions.SavePosition(ctx, pos)
		})
	}
	return nil
}

func (g *Gateway) RecordRiskEvent(ctx context.Context, ev *domain.RiskEvent) error {
	if err := g.risks.SaveRiskEvent(ctx, ev); err != nil {
		g.retryLater("risk event "+ev.ID, func(ctx context.Context) error {
			return g.risks.SaveRiskEvent(ctx, ev)
		})
	}
	return nil
}

// Notify fans out to every channel. One channel failing does not stop the
// others; failures are retried per channel.
func (g *Gateway) Notify(ctx context.Context, event *domain.NotifyEvent) error {
	for _, n := range g.notifiers {
		notifier := n
		if err := notifier.Send(ctx, event); err != nil {
			g.retryLater("notify "+event.Kind, func(ctx context.Context) error {
				return notifier.Send(ctx, event)
			})
		}
	}
	return nil
}

// retryLater runs fn with backoff until it succeeds, attempts run out, or
// the gateway closes.
func (g *Gateway) retryLater(what string, fn func(context.Context) error) {
	g.logger.Warn("delivery failed, scheduling retries", zap.String("record", what))
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		wait := retryBaseWait
		for attempt := 1; attempt <= retryAttempts; attempt++ {
			select {
			case <-g.closed:
				return
			case <-time.After(wait):
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := fn(ctx)
			cancel()
			if err == nil {
				g.logger.Info("delivery recovered", zap.String("record", what), zap.Int("attempt", attempt))
				return
			}
			wait *= 2
		}
		g.logger.Error("delivery abandoned after retries", zap.String("record", what))
	}()
}

// Close stops the retry loops and waits for them.
func (g *Gateway) Close() {
	g.once.Do(func() { close(g.closed) })
	g.wg.Wait()
}
