package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/infrastructure/marketdata"
)

// Quick feed diagnostic: fetch a quote and today's minute bars for a symbol.
func main() {
	symbol := flag.String("symbol", "IC0", "contract symbol")
	flag.Parse()

	data := marketdata.NewSinaAdapter("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	quote, err := data.GetQuote(ctx, *symbol)
	if err != nil {
		fmt.Printf("quote failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s last=%.2f bid=%.2f ask=%.2f prev_settle=%.2f vol=%.0f\n",
		quote.Symbol, quote.Last, quote.Bid, quote.Ask, quote.PrevSettlement, quote.Volume)

	bars, err := data.GetMinuteBars(ctx, *symbol, time.Now())
	if err != nil {
		fmt.Printf("minute bars failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d minute bars, first %s last %s\n",
		len(bars), bars[0].Time.Format("15:04"), bars[len(bars)-1].Time.Format("15:04"))
}
