// Command bookcheck fetches the reference order book once and prints the
// levels the arbitrator would quote for a given balance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/infra/bitstamp"
	"crypto_arb/internal/marketdata"
	"crypto_arb/internal/reconcile"
	"crypto_arb/pkg/quant"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	quote := flag.String("quote", "0", "available quote balance, e.g. 150.5")
	base := flag.String("base", "0", "available base balance, e.g. 0.25")
	depth := flag.Int("depth", 10, "levels to print per side")
	flag.Parse()

	if err := run(*configPath, *quote, *base, *depth); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func run(configPath, quote, base string, depth int) error {
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	var bal domain.Balance
	if bal.QuoteAvailable, err = quant.ParsePriceSats(quote); err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	if bal.BaseAvailable, err = quant.ParseQtySats(base); err != nil {
		return fmt.Errorf("base: %w", err)
	}

	client := bitstamp.NewClient(cfg.API.Bitstamp.RestURL, nil, time.Duration(cfg.API.Bitstamp.TimeoutMS)*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw, err := client.OrderBook(ctx)
	if err != nil {
		return fmt.Errorf("fetch order book: %w", err)
	}

	bidFee, askFee := cfg.Fees()
	bids, asks, err := marketdata.AdaptBook(raw, marketdata.Fees{Bid: bidFee, Ask: askFee})
	if err != nil {
		return err
	}

	fmt.Println("=== Bitstamp → BlinkTrade quote check ===")
	fmt.Printf("   fees:    bid %s / ask %s\n", bidFee, askFee)
	fmt.Printf("   balance: quote %s / base %s\n\n", bal.QuoteAvailable, bal.BaseAvailable)

	printSide("📗 BIDS", reconcile.FundedSide(bids, bal), len(bids.Levels), depth)
	printSide("📕 ASKS", reconcile.FundedSide(asks, bal), len(asks.Levels), depth)
	return nil
}

func printSide(title string, side domain.BookSide, total, depth int) {
	fmt.Printf("%s (%d of %d levels funded)\n", title, len(side.Levels), total)
	var cost quant.PriceSats
	for i, l := range side.Levels {
		cost += quant.Notional(l.Price, l.Qty)
		if i < depth {
			fmt.Printf("   %16s x %14s  (cum quote %s)\n", l.Price, l.Qty, cost)
		}
	}
	fmt.Println()
}
