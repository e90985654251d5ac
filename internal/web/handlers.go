package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"running": s.scheduler.Running(),
		"symbols": s.scheduler.Config().Symbols,
		"time":    time.Now(),
	})
}

func (s *Server) handleAllStates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.States())
}

func (s *Server) handleSymbolState(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.engine.GetState(symbol))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.tradeRepo.ListTrades(r.Context(), r.URL.Query().Get("symbol"), queryLimit(r, 100))
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.signalRepo.ListSignals(r.Context(), r.URL.Query().Get("symbol"), queryLimit(r, 100))
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, signals)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.risk.Snapshot())
}

func (s *Server) handleRiskEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.riskRepo.ListRiskEvents(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.logger.Error("Failed to list risk events", zap.Error(err))
		http.Error(w, "Failed to list risk events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The scheduler outlives the request; it owns its own context.
	if err := s.scheduler.Start(context.Background()); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("Failed to start scheduler", zap.Error(err))
		http.Error(w, "Failed to start", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	s.writeJSON(w, map[string]any{"running": false})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.scheduler.Config())
}

// handleUpdateConfig applies a partial update on top of the active snapshot.
// An invalid result is rejected and the active snapshot stays in force.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	next := s.scheduler.Config().Clone()
	if err := json.NewDecoder(r.Body).Decode(next); err != nil {
		http.Error(w, "invalid config body", http.StatusBadRequest)
		return
	}
	applied, err := s.scheduler.UpdateConfig(next)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, applied)
}

type backtestRequest struct {
	Symbols []string               `json:"symbols"`
	From    string                 `json:"from"`
	To      string                 `json:"to"`
	Config  *domain.StrategyConfig `json:"config"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		http.Error(w, "invalid from date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		http.Error(w, "invalid to date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	cfg := req.Config
	if cfg == nil {
		cfg = s.scheduler.Config()
	}

	result, err := s.backtester.Run(r.Context(), req.Symbols, from, to, cfg)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, domain.ErrDataUnavailable) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("Backtest failed", zap.Error(err))
		http.Error(w, "backtest failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, result)
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
