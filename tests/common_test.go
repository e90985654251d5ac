package tests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// MockMarketData serves scripted quotes so scenarios control every tick.
type MockMarketData struct {
	mu     sync.Mutex
	Prices map[string]float64
}

func (m *MockMarketData) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Prices == nil {
		m.Prices = map[string]float64{}
	}
	m.Prices[symbol] = price
}

func (m *MockMarketData) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no scripted quote for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	return &domain.Quote{Symbol: symbol, Last: p, Time: time.Now()}, nil
}

func (m *MockMarketData) GetMinuteBars(ctx context.Context, symbol string, date time.Time) ([]domain.Bar, error) {
	return nil, domain.ErrDataUnavailable
}

func (m *MockMarketData) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	return nil, domain.ErrDataUnavailable
}

// CollectNotifier records outbound notifications in memory.
type CollectNotifier struct {
	mu     sync.Mutex
	Events []*domain.NotifyEvent
}

func (c *CollectNotifier) Send(ctx context.Context, event *domain.NotifyEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
	return nil
}

func (c *CollectNotifier) Kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, 0, len(c.Events))
	for _, ev := range c.Events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func sessionTime(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.Local)
}
