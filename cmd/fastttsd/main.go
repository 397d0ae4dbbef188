package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fasttts-labs/fasttts-core/internal/align"
	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath     string
		showVersion    bool
		downloadModels bool
	)

	flag.StringVar(&configPath, "config", "fasttts.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&downloadModels, "download-models", false, "Download the configured alignment models and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		bootstrap.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Telemetry.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if downloadModels {
		aligner, err := align.NewMFA(cfg.Alignment, logger)
		if err != nil {
			logger.Error("failed to build aligner", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := aligner.DownloadModels(ctx); err != nil {
			logger.Error("model download failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("alignment models downloaded",
			slog.String("acoustic_model", cfg.Alignment.AcousticModel),
			slog.String("dictionary", cfg.Alignment.Dictionary))
		return
	}

	rt := runtime.New(cfg, logger)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
