package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fleetsync/internal/client"
	"fleetsync/internal/config"
	"fleetsync/internal/metrics"
	"fleetsync/internal/realtime"
	"fleetsync/internal/store"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "fleetsync",
		Short: "Data-access sidecar for fleet pilot-certification dashboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.json", "path to config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Error().Err(err).Msg("failed to load config")
		return err
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", configPath).
		Str("store", cfg.StoreURL).
		Int("maxConcurrent", cfg.MaxConcurrent).
		Int("batchWindowMs", cfg.BatchWindow).
		Msg("starting fleetsync")

	collector := metrics.NewCollector()
	storeClient := store.NewClient(cfg.StoreURL, cfg.APIKey, cfg.GetRequestTimeoutDuration(), logger)

	accessClient, err := client.New(cfg, storeClient, nil, collector, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create access client")
		return err
	}
	defer accessClient.Close()

	var listener *realtime.Listener
	if cfg.HasRealtime() {
		listener = realtime.NewListener(
			cfg.RealtimeURL,
			cfg.GetReconnectIntervalDuration(),
			cfg.GetPingIntervalDuration(),
			func(category, id string) {
				if id != "" {
					accessClient.InvalidateCategory(category, id)
					return
				}
				accessClient.InvalidateCategory(category)
			},
			logger,
		)
		listener.Start()
		defer listener.Close()
	} else {
		logger.Info().Msg("realtime change feed disabled")
	}

	go func() {
		if err := metrics.StartServer(cfg.MetricsPort); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Int("port", cfg.MetricsPort).Msg("metrics server listening")

	statsTicker := time.NewTicker(cfg.GetStatsLogIntervalDuration())
	defer statsTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-statsTicker.C:
			logStats(accessClient, logger)
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			return nil
		}
	}
}

func logStats(c *client.Client, logger zerolog.Logger) {
	stats := c.Stats()
	logger.Info().
		Int("totalQueries", stats.TotalQueries).
		Int("activeQueries", stats.ActiveQueries).
		Int("loadingQueries", stats.LoadingQueries).
		Int("errorQueries", stats.ErrorQueries).
		Int("memoryCacheSize", stats.MemoryCacheSize).
		Float64("cacheHitRatio", stats.CacheHitRatio).
		Msg("access-layer stats")

	for name, s := range c.PerfStats() {
		logger.Debug().
			Str("operation", name).
			Int("count", s.Count).
			Dur("average", s.Average).
			Dur("min", s.Min).
			Dur("max", s.Max).
			Int("slowCount", s.SlowCount).
			Msg("operation stats")
	}
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
