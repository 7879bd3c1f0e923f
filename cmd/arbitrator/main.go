package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crypto_arb/internal/app"
	"crypto_arb/internal/engine"
	"crypto_arb/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: configs/config.yaml)")
	pprofAddr := flag.String("pprof", "", "pprof listen address, e.g. localhost:6060")
	flag.Parse()

	// 1. Pprof Server (Localhost only for security)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", "addr", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}
	infra.PrintBanner(bootstrap.Config)

	arb, err := app.NewArbitrator(bootstrap)
	if err != nil {
		slog.Error("❌ Wiring failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = arb.Run(ctx)
	bootstrap.Close()

	switch {
	case err == nil:
	case errors.Is(err, engine.ErrAuthFailed):
		slog.Error("❌ Login rejected by the target venue", slog.Any("error", err))
		os.Exit(2)
	default:
		slog.Error("❌ Arbitrator stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
