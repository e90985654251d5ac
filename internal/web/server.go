package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	scheduler  *usecase.LiveScheduler
	engine     *usecase.StrategyEngine
	risk       *usecase.RiskGuard
	backtester *usecase.BacktestRunner
	tradeRepo  domain.TradeRepository
	signalRepo domain.SignalRepository
	riskRepo   domain.RiskRepository
	hub        *Hub
	logger     *zap.Logger
}

func NewServer(
	port int,
	scheduler *usecase.LiveScheduler,
	engine *usecase.StrategyEngine,
	risk *usecase.RiskGuard,
	backtester *usecase.BacktestRunner,
	tradeRepo domain.TradeRepository,
	signalRepo domain.SignalRepository,
	riskRepo domain.RiskRepository,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		scheduler:  scheduler,
		engine:     engine,
		risk:       risk,
		backtester: backtester,
		tradeRepo:  tradeRepo,
		signalRepo: signalRepo,
		riskRepo:   riskRepo,
		hub:        hub,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Strategy state
	s.router.HandleFunc("GET /api/state", s.handleAllStates)
	s.router.HandleFunc("GET /api/state/{symbol}", s.handleSymbolState)

	// Records
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/signals", s.handleSignals)
	s.router.HandleFunc("GET /api/risk", s.handleRisk)
	s.router.HandleFunc("GET /api/risk/events", s.handleRiskEvents)

	// Lifecycle
	s.router.HandleFunc("POST /api/engine/start", s.handleStart)
	s.router.HandleFunc("POST /api/engine/stop", s.handleStop)

	// Config hot update
	s.router.HandleFunc("GET /api/config", s.handleGetConfig)
	s.router.HandleFunc("POST /api/config", s.handleUpdateConfig)

	// Backtest
	s.router.HandleFunc("POST /api/backtest", s.handleBacktest)

	// Event stream
	s.router.HandleFunc("GET /ws", s.hub.handleWS)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
