// Command cancelall logs into the target venue and cancels every open order.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/infra/blinktrade"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	timeout := flag.Duration("timeout", 15*time.Second, "give up after this long")
	flag.Parse()

	if *configPath == "" {
		*configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	inbox := make(chan event.Event, 64)
	bt := cfg.API.BlinkTrade
	client, err := blinktrade.NewClient(blinktrade.Config{
		URL:      bt.WSURL,
		Username: bt.Username,
		Password: bt.Password,
		BrokerID: bt.BrokerID,
		Symbol:   cfg.Trading.Symbol,
	}, inbox, 0)
	if err != nil {
		slog.Error("❌ Failed to create client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client.Connect(ctx)
	defer client.Disconnect()

	for {
		select {
		case <-ctx.Done():
			slog.Error("❌ Timed out waiting for login")
			os.Exit(1)
		case ev := <-inbox:
			login, ok := ev.(event.LoginEvent)
			if !ok {
				continue
			}
			if !login.Success {
				slog.Error("❌ Login rejected", "reason", login.Reason)
				os.Exit(2)
			}
			if err := client.CancelAll(ctx); err != nil {
				slog.Error("❌ Cancel-all failed", "error", err)
				os.Exit(1)
			}
			slog.Info("🛑 Cancel-all sent", "user", login.UserID, "broker", login.BrokerID)
			// let the frame flush before the socket closes
			time.Sleep(500 * time.Millisecond)
			return
		}
	}
}
