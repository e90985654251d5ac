package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wyuan/futures_settle_arb/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			level INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			margin_held REAL NOT NULL,
			status TEXT NOT NULL,
			close_price REAL NOT NULL DEFAULT 0,
			close_time DATETIME,
			realized_pnl REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions(symbol, status);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			action TEXT NOT NULL,
			level INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			fee REAL NOT NULL,
			margin REAL NOT NULL DEFAULT 0,
			realized_pnl REAL NOT NULL DEFAULT 0,
			reason TEXT,
			close_today BOOLEAN NOT NULL DEFAULT 0,
			estimated_fill BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades(symbol, created_at);`,
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			type TEXT NOT NULL,
			trigger_price REAL NOT NULL,
			base_price REAL NOT NULL,
			drop_pct REAL NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			executed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_time ON signals(symbol, created_at);`,
		`CREATE TABLE IF NOT EXISTS risk_events (
			id TEXT PRIMARY KEY,
			reason TEXT NOT NULL,
			daily_pnl REAL NOT NULL,
			drawdown REAL NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Migration: older databases predate the fill-fidelity column.
	// We ignore the error if the column already exists.
	_, _ = s.db.Exec(`ALTER TABLE trades ADD COLUMN estimated_fill BOOLEAN NOT NULL DEFAULT 0`)

	return nil
}

// PositionRepository Implementation

func (s *SQLiteStore) SavePosition(ctx context.Context, p *domain.Position) error {
	query := `INSERT OR REPLACE INTO positions (id, symbol, direction, level, quantity, entry_price, entry_time, margin_held, status, close_price, close_time, realized_pnl)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Symbol, p.Direction, p.Level, p.Quantity, p.EntryPrice, p.EntryTime,
		p.MarginHeld, p.Status, p.ClosePrice, p.CloseTime, p.RealizedPnl)
	return err
}

func (s *SQLiteStore) ListPositions(ctx context.Context, symbol string, status domain.PositionStatus, limit int) ([]*domain.Position, error) {
	query := `SELECT id, symbol, direction, level, quantity, entry_price, entry_time, margin_held, status, close_price, close_time, realized_pnl
			  FROM positions WHERE symbol = ? AND status = ? ORDER BY entry_time DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		var closeTime sql.NullTime
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Direction, &p.Level, &p.Quantity, &p.EntryPrice, &p.EntryTime, &p.MarginHeld, &p.Status, &p.ClosePrice, &closeTime, &p.RealizedPnl); err != nil {
			return nil, err
		}
		if closeTime.Valid {
			p.CloseTime = closeTime.Time
		}
		positions = append(positions, &p)
	}
	return positions, nil
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	query := `INSERT OR REPLACE INTO trades (id, symbol, direction, action, level, quantity, price, fee, margin, realized_pnl, reason, close_today, estimated_fill, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Symbol, t.Direction, t.Action, t.Level, t.Quantity, t.Price,
		t.Fee, t.Margin, t.RealizedPnl, t.Reason, t.CloseToday, t.EstimatedFill, t.Time)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	query := `SELECT id, symbol, direction, action, level, quantity, price, fee, margin, realized_pnl, reason, close_today, estimated_fill, created_at
			  FROM trades`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Direction, &t.Action, &t.Level, &t.Quantity, &t.Price, &t.Fee, &t.Margin, &t.RealizedPnl, &t.Reason, &t.CloseToday, &t.EstimatedFill, &t.Time); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// SignalRepository Implementation

func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.Signal) error {
	query := `INSERT OR REPLACE INTO signals (id, symbol, type, trigger_price, base_price, drop_pct, quantity, executed, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sig.ID, sig.Symbol, sig.Type, sig.TriggerPrice, sig.BasePrice, sig.DropPct, sig.Quantity, sig.Executed, sig.Time)
	return err
}

func (s *SQLiteStore) ListSignals(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error) {
	query := `SELECT id, symbol, type, trigger_price, base_price, drop_pct, quantity, executed, created_at FROM signals`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		var sig domain.Signal
		if err := rows.Scan(&sig.ID, &sig.Symbol, &sig.Type, &sig.TriggerPrice, &sig.BasePrice, &sig.DropPct, &sig.Quantity, &sig.Executed, &sig.Time); err != nil {
			return nil, err
		}
		signals = append(signals, &sig)
	}
	return signals, nil
}

// RiskRepository Implementation

func (s *SQLiteStore) SaveRiskEvent(ctx context.Context, ev *domain.RiskEvent) error {
	query := `INSERT OR REPLACE INTO risk_events (id, reason, daily_pnl, drawdown, created_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, ev.ID, ev.Reason, ev.DailyPnl, ev.Drawdown, ev.Time)
	return err
}

func (s *SQLiteStore) ListRiskEvents(ctx context.Context, limit int) ([]*domain.RiskEvent, error) {
	query := `SELECT id, reason, daily_pnl, drawdown, created_at FROM risk_events ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.RiskEvent
	for rows.Next() {
		var ev domain.RiskEvent
		if err := rows.Scan(&ev.ID, &ev.Reason, &ev.DailyPnl, &ev.Drawdown, &ev.Time); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
