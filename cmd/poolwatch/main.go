// Package main is the entry point for poolwatch, the blue/green failover
// and error-rate watcher.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/alert"
	"github.com/poolwatch/poolwatch/internal/clock"
	"github.com/poolwatch/poolwatch/internal/config"
	"github.com/poolwatch/poolwatch/internal/detector"
	"github.com/poolwatch/poolwatch/internal/history"
	"github.com/poolwatch/poolwatch/internal/monitoring"
	"github.com/poolwatch/poolwatch/internal/parser"
	"github.com/poolwatch/poolwatch/internal/tailer"
	"github.com/poolwatch/poolwatch/internal/watcher"
)

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// ~/.config/poolwatch/.env first, then a local .env may override.
	configEnv := filepath.Join(homeDir, ".config", "poolwatch", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Resolve()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	monitoring.Global(monitoring.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().
		Str("log_file", cfg.LogFile).
		Int("window_size", cfg.WindowSize).
		Float64("threshold", cfg.ErrorRateThreshold).
		Int("cooldown_sec", cfg.AlertCooldownSec).
		Str("active_pool", cfg.ActivePool).
		Bool("maintenance", cfg.MaintenanceActive()).
		Msg("starting poolwatch")

	clk := clock.NewReal()
	maintenance := cfg.MaintenanceActive

	var recorder alert.Recorder
	if cfg.AlertHistoryDSN != "" {
		sink, err := history.New(cfg.AlertHistoryDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open alert history sink")
		}
		defer func() { _ = sink.Close() }()
		recorder = sink
	}

	dispatcher := alert.NewDispatcher(alert.DispatcherConfig{
		Notifier:    alert.NewSlack(cfg.SlackWebhookURL),
		Recorder:    recorder,
		Cooldown:    cfg.AlertCooldown(),
		Timeout:     cfg.NotifyTimeout(),
		Maintenance: maintenance,
		Clock:       clk,
	})
	queue := alert.NewAsync(dispatcher)
	defer queue.Close()

	seed, _ := parser.ParsePool(cfg.ActivePool)
	failover := detector.NewFailover(detector.FailoverConfig{
		Cooldown:    cfg.AlertCooldown(),
		Seed:        seed,
		Maintenance: maintenance,
		Clock:       clk,
	})
	errorRate := detector.NewErrorRate(detector.ErrorRateConfig{
		WindowSize:  cfg.WindowSize,
		Threshold:   cfg.ErrorRateThreshold,
		Cooldown:    cfg.AlertCooldown(),
		Warmup:      cfg.WarmupSize,
		Maintenance: maintenance,
		Clock:       clk,
	})

	tail := tailer.New(tailer.Config{
		Path:         cfg.LogFile,
		PollInterval: cfg.PollInterval(),
		FromStart:    cfg.ReplayExisting,
	})

	w := watcher.New(tail, failover, errorRate, cfg.ErrorRateThreshold, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("watcher stopped")
	}
	log.Info().Msg("poolwatch stopped")
}
