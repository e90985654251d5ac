package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/logger"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/marketdata"
	"github.com/wyuan/futures_settle_arb/internal/usecase"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	var (
		symbols  = flag.String("symbols", "IC0,IM0", "comma separated contract symbols")
		from     = flag.String("from", "", "start date YYYY-MM-DD")
		to       = flag.String("to", "", "end date YYYY-MM-DD")
		cfgPath  = flag.String("config", "", "optional strategy yaml, defaults otherwise")
		logLevel = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	fromDate, err := time.Parse("2006-01-02", *from)
	if err != nil {
		fmt.Println("invalid -from date, want YYYY-MM-DD")
		os.Exit(1)
	}
	toDate, err := time.Parse("2006-01-02", *to)
	if err != nil {
		fmt.Println("invalid -to date, want YYYY-MM-DD")
		os.Exit(1)
	}

	cfg := domain.DefaultStrategyConfig()
	if *cfgPath != "" {
		f, err := os.Open(*cfgPath)
		if err != nil {
			fmt.Printf("open config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			f.Close()
			fmt.Printf("decode config: %v\n", err)
			os.Exit(1)
		}
		f.Close()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(*logLevel)
	if err != nil {
		fmt.Printf("logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	data := marketdata.NewSinaAdapter("", "")
	runner := usecase.NewBacktestRunner(data, domain.NewStaticRegistry(), log)

	result, err := runner.Run(context.Background(), strings.Split(*symbols, ","), fromDate, toDate, cfg)
	if err != nil {
		log.Fatal("backtest failed", zap.Error(err))
	}

	printReport(result)
}

func printReport(res *usecase.BacktestResult) {
	s := res.Summary
	fmt.Printf("Backtest %s .. %s  symbols=%s\n\n",
		res.From.Format("2006-01-02"), res.To.Format("2006-01-02"), strings.Join(res.Symbols, ","))
	fmt.Printf("Total return:     %8.2f%%\n", s.TotalReturn*100)
	fmt.Printf("Annual return:    %8.2f%%\n", s.AnnualReturn*100)
	fmt.Printf("Sharpe:           %8.2f\n", s.Sharpe)
	fmt.Printf("Sortino:          %8.2f\n", s.Sortino)
	fmt.Printf("Max drawdown:     %8.2f%%  (%d days)\n", s.MaxDrawdown*100, s.MaxDrawdownDays)
	fmt.Printf("Calmar:           %8.2f\n", s.Calmar)
	fmt.Printf("Win rate:         %8.2f%%\n", s.WinRate*100)
	fmt.Printf("Profit factor:    %8.2f\n", s.ProfitFactor)
	fmt.Printf("Avg win/loss:     %8.2f / %.2f\n", s.AvgWin, s.AvgLoss)
	fmt.Printf("Trades:           %8d  (estimated fills: %d)\n", s.TradeCount, s.EstimatedFills)
	fmt.Printf("Avg holding days: %8.2f\n\n", s.AvgHoldingDays)

	fmt.Println("Monthly returns:")
	for _, m := range s.SortedMonths() {
		fmt.Printf("  %s  %8.2f%%\n", m, s.MonthlyReturns[m]*100)
	}
	fmt.Println("\nPer symbol:")
	for sym, st := range s.PerSymbol {
		fmt.Printf("  %-6s trades=%d wins=%d net=%.2f fees=%.2f\n", sym, st.Trades, st.Wins, st.NetPnl, st.TotalFee)
	}
}
