// Command audit replays a session journal offline and prints the balance and
// position it rebuilds. It never connects to either venue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crypto_arb/internal/replay"
	"crypto_arb/internal/engine"
	"crypto_arb/internal/execution"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	dbPath := flag.String("journal", "", "journal file (default: workspace journal for the configured mode)")
	after := flag.Int64("after", 0, "replay entries with id greater than this")
	flag.Parse()

	if err := run(*configPath, *dbPath, *after); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, after int64) error {
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath == "" {
		mode := strings.ToLower(cfg.Trading.Mode)
		dbPath = filepath.Join(infra.GetWorkspaceDir(), "data", mode, cfg.Storage.JournalFile)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	j, err := storage.OpenJournal(dbPath)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := context.Background()
	if id, err := j.GetMetadata(ctx, "session_id"); err == nil {
		fmt.Printf("session  %s\n", id)
	}

	// Replay never routes, so the target is a recorder.
	eng := engine.New(engine.Config{Symbol: cfg.Trading.Symbol}, execution.NewRouter(execution.NewMockTarget(), nil))
	stats, err := replay.NewReplayer(j).RunReplay(ctx, eng, after)
	if err != nil {
		return err
	}

	st := eng.State()
	fmt.Printf("entries  applied=%d skipped=%d last_id=%d\n", stats.Applied, stats.Skipped, stats.LastID)
	fmt.Printf("broker   %s (logged_in=%t)\n", st.BrokerID, st.LoggedIn)
	fmt.Printf("balance  quote=%s base=%s\n", st.Balance.QuoteAvailable, st.Balance.BaseAvailable)
	fmt.Printf("position target=%s reference=%s fills=%d hedges=%d\n",
		st.Position.TargetNet, st.Position.ReferenceNet, st.Position.Fills, st.Position.Hedges)
	fmt.Printf("exposure %s\n", st.Exposure)
	return nil
}
