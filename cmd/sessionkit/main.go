// Package main is the entrypoint for the sessionkit scenario runner.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MahdiBaghbani/sessionkit/internal/harness"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/config"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
	"github.com/MahdiBaghbani/sessionkit/internal/scenario"

	// Register controllers
	_ "github.com/MahdiBaghbani/sessionkit/internal/controllers/loader"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	host := flag.String("host", "", "Session host (overrides config)")
	https := flag.String("https", "", "Use https: true or false (overrides config)")
	maxRedirects := flag.String("max-redirects", "", "Redirect chain bound, 0 for none (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	transcriptDriver := flag.String("transcript-driver", "", "Record transcripts with driver: memory, json, sqlite, mirror (overrides config)")
	transcriptDir := flag.String("transcript-dir", "", "Transcript data directory (overrides config)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] scenario.toml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	// Load config with precedence: defaults -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			Host:              host,
			HTTPS:             https,
			MaxRedirects:      maxRedirects,
			LoggingLevel:      loggingLevel,
			TranscriptDriver:  transcriptDriver,
			TranscriptDataDir: transcriptDir,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		return 1
	}

	level, err := logutil.ParseLevel(cfg.Logging.Level)
	if err != nil {
		bootstrapLogger.Error("invalid logging level", "error", err)
		return 1
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range flag.Args() {
		ok, err := runScenario(ctx, cfg, path, logger)
		if err != nil {
			logger.Error("scenario aborted", "path", path, "error", err)
			return 1
		}
		if !ok {
			failed++
		}
	}

	if failed > 0 {
		logger.Warn("scenarios failed", "failed", failed, "total", flag.NArg())
		return 1
	}
	return 0
}

// runScenario gives each scenario its own harness so sessions, login
// state and controller memory never leak between files.
func runScenario(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (bool, error) {
	sc, err := scenario.Load(path, logger)
	if err != nil {
		return false, err
	}

	h, err := harness.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("failed to close harness", "error", err)
		}
	}()

	report, err := scenario.Run(ctx, h, sc, logger)
	if err != nil {
		return false, err
	}
	if err := report.Write(os.Stdout); err != nil {
		return false, err
	}

	if ts := h.Transcript(); ts != nil {
		for name, id := range report.SessionIDs {
			exchanges, err := ts.ListExchanges(ctx, id)
			if err != nil {
				logger.Warn("failed to read transcript", "session", name, "error", err)
				continue
			}
			logger.Info("transcript recorded", "session", name, "session_id", id, "exchanges", len(exchanges))
		}
	}
	return report.OK(), nil
}
