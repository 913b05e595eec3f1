// Command inkbridge is the main entry point for the inkbridge translation
// pipeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arcveil/inkbridge/internal/app"
	"github.com/arcveil/inkbridge/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "inkbridge: config file %q not found — pass -config with the path to a YAML configuration file\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "inkbridge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel, cfg.Server.DebugMode)
	slog.SetDefault(logger)

	slog.Info("inkbridge starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"translation_model", cfg.Models.TranslationModel,
		"advice_model", cfg.Models.AdviceModel,
	)

	checkLegacyQueueFile(*configPath)

	// ── Application wiring ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(ctx, cfg, application)

	slog.Info("queue worker running — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// checkLegacyQueueFile warns (but never auto-imports) if a queue.json file
// from an older, file-based version of this tool is sitting next to the
// config — grounded on original_source/database.py's _check_legacy_queue.
func checkLegacyQueueFile(configPath string) {
	queuePath := filepath.Join(filepath.Dir(configPath), "queue.json")
	data, err := os.ReadFile(queuePath)
	if err != nil {
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Debug("legacy queue.json found but could not be parsed", "path", queuePath, "err", err)
		return
	}
	if len(items) == 0 {
		return
	}

	slog.Warn("legacy queue.json detected and will NOT be imported automatically",
		"path", queuePath, "items", len(items))
	fmt.Fprintf(os.Stderr,
		"WARNING: found %d item(s) in legacy %s. This version stores queued jobs in PostgreSQL and does not migrate the old file — re-enqueue the chapters manually, then remove it.\n",
		len(items), queuePath)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(ctx context.Context, cfg *config.Config, a *app.App) {
	queueDepth, err := a.QueueStore().Count(ctx, "")
	if err != nil {
		slog.Warn("failed to read queue depth for startup summary", "err", err)
		queueDepth = -1
	}

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        inkbridge — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Translation model", cfg.Models.TranslationModel)
	printField("Advice model", cfg.Models.AdviceModel)
	printField("Registry path", cfg.Registry.Path)
	printField("Storage configured", boolLabel(cfg.Storage.PostgresDSN != ""))
	if queueDepth >= 0 {
		printField("Queue depth", fmt.Sprintf("%d", queueDepth))
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func boolLabel(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printField(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-18s: %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, debug bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
