package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/execution"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/logger"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/marketdata"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/notify"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/storage"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
	"github.com/wyuan/futures_settle_arb/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Strategy *domain.StrategyConfig `yaml:"strategy"`
	Data     struct {
		QuoteEndpoint string `yaml:"quote_endpoint"`
		KlineEndpoint string `yaml:"kline_endpoint"`
	} `yaml:"data"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level     string `yaml:"level"`
		AuditFile string `yaml:"audit_file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Secrets come from the environment, never from the yaml file.
type Secrets struct {
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Config{Strategy: domain.DefaultStrategyConfig()}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		fmt.Printf("Failed to read environment: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "settle_arb.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Market data + contracts
	data := marketdata.NewSinaAdapter(cfg.Data.QuoteEndpoint, cfg.Data.KlineEndpoint)
	registry := domain.NewStaticRegistry()

	// 5. Core services
	costs := usecase.NewCostCalculator(registry)
	risk := usecase.NewRiskGuard(cfg.Strategy)
	engine := usecase.NewStrategyEngine(registry, costs, risk)
	rtVwap := usecase.NewRealtimeVWAP()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// 6. Outbound channels
	hub := web.NewHub(log)
	go hub.Run(rootCtx)

	notifiers := []domain.Notifier{hub, notify.NewLogNotifier(log)}
	if secrets.TelegramToken != "" && secrets.TelegramChatID != 0 {
		tg, err := notify.NewTelegramNotifier(secrets.TelegramToken, secrets.TelegramChatID, log)
		if err != nil {
			log.Error("Telegram disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	gateway := execution.NewGateway(store, store, store, store, notifiers, log)
	defer gateway.Close()

	// 7. Scheduler. The audit file keeps the trade decision trail separate
	// from the service log: the engine writes AUDIT/SAFETY lines through the
	// stdlib logger, which gets routed into the audit file here.
	if cfg.Logging.AuditFile != "" {
		auditLog, err := logger.NewFileLogger(cfg.Logging.AuditFile, "debug")
		if err != nil {
			log.Error("Failed to init audit logger, using default", zap.Error(err))
		} else {
			defer auditLog.Sync()
			stdlog.SetFlags(0)
			stdlog.SetOutput(zap.NewStdLog(auditLog).Writer())
		}
	}
	scheduler := usecase.NewLiveScheduler(data, gateway, engine, risk, rtVwap, cfg.Strategy, log)
	if err := scheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// 8. Web server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	backtester := usecase.NewBacktestRunner(data, registry, log)
	server := web.NewServer(port, scheduler, engine, risk, backtester, store, store, store, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	scheduler.Stop()
	server.Shutdown(context.Background())
}
