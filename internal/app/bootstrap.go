package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/metrics"
	"crypto_arb/internal/storage"

	"github.com/google/uuid"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Journal   *storage.Journal
	Snapshots *storage.SnapshotManager
	Metrics   *metrics.Metrics
	SessionID string

	logFile *os.File
	unlock  func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config and opens everything that lives on disk.
// An empty path falls back to ResolveConfigPath.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Crypto Arb...")

	// 0. Runtime Warmup (GC Optimization)
	event.Warmup(256)

	// 1. Load Config (Dynamic Path Resolution)
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Workspace: _workspace/{data,logs,dumps}/{mode}
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)
	dumpDir := filepath.Join(workDir, "dumps", mode)
	for _, dir := range []string{dataDir, logDir, dumpDir} {
		if err := infra.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	// 3. Setup Logger
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(filepath.Join(logDir, cfg.Logging.File), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		b.logFile = f
		slog.SetDefault(infra.NewLogger(cfg, f))
	} else {
		slog.SetDefault(infra.NewLogger(cfg))
	}

	// 4. Singleton Instance Lock: two arbitrators on one account fight over every order.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 5. Journal (SQLite, WAL-mode)
	dbPath := filepath.Join(dataDir, cfg.Storage.JournalFile)
	j, err := storage.OpenJournal(dbPath)
	if err != nil {
		return err
	}
	b.Journal = j

	b.SessionID = uuid.NewString()
	now := time.Now().UnixMicro()
	ctx := context.Background()
	if err := j.UpsertMetadata(ctx, "session_id", b.SessionID, now); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	j.UpsertMetadata(ctx, "version", cfg.App.Version, now)
	j.UpsertMetadata(ctx, "mode", cfg.Trading.Mode, now)
	slog.Info("✅ Journal initialized (WAL-mode)", "path", dbPath, "session", b.SessionID)

	b.Snapshots = storage.NewSnapshotManager(dumpDir)
	b.Metrics = metrics.New()
	return nil
}

// Close releases what Initialize opened.
func (b *Bootstrap) Close() {
	if b.Snapshots != nil {
		if err := b.Snapshots.Cleanup(20); err != nil {
			slog.Warn("Snapshot cleanup failed", "err", err)
		}
	}
	if b.Journal != nil {
		b.Journal.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
	if b.logFile != nil {
		b.logFile.Close()
	}
}
