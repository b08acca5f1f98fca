package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voicedesk/config"
	"voicedesk/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "path to dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			for _, p := range cfgErr.Problems {
				slog.Error("config problem", "problem", p)
			}
		}
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := bootstrap.Build(cfg, logger)
	if err != nil {
		logger.Error("building services", "error", err)
		os.Exit(1)
	}

	logger.Info("starting voicedesk",
		"presentation_addr", cfg.Presentation.Addr,
		"audio_backend", cfg.Audio.Backend,
	)

	if err := services.Run(ctx); err != nil {
		logger.Error("voicedesk error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
