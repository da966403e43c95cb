// Command collector runs a single acquisition round and exits. It is meant
// for cron-style scheduling; a round that yields nothing exits non-zero so
// the invoker notices the gap.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bullionwatch/bullion-snapshot-service/internal/adapters/capture"
	"github.com/bullionwatch/bullion-snapshot-service/internal/adapters/postgres"
	"github.com/bullionwatch/bullion-snapshot-service/internal/adapters/scrape"
	"github.com/bullionwatch/bullion-snapshot-service/internal/adapters/vision"
	"github.com/bullionwatch/bullion-snapshot-service/internal/config"
	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/metrics"
	"github.com/bullionwatch/bullion-snapshot-service/internal/services"
)

func main() {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, logger))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		return 1
	}

	roundService := services.NewRoundService(
		postgres.NewObservationRepository(db),
		postgres.NewDailyRecordRepository(db),
		scrape.NewClient(
			scrape.WithUserAgent(cfg.Scrape.UserAgent),
			scrape.WithTimeout(cfg.Scrape.Timeout),
			scrape.WithLogger(logger),
		),
		capture.NewClient(
			capture.WithBaseURL(cfg.Capture.BaseURL),
			capture.WithTimeout(cfg.Capture.Timeout),
			capture.WithLogger(logger),
		),
		vision.NewClient(
			vision.WithBaseURL(cfg.Vision.BaseURL),
			vision.WithAPIKey(cfg.Vision.APIKey),
			vision.WithModel(cfg.Vision.Model),
			vision.WithTimeout(cfg.Vision.Timeout),
			vision.WithLogger(logger),
		),
		metrics.New(),
		cfg.Round,
		logger,
	)

	summary, err := roundService.RunRound(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyRound) {
			logger.Error("round yielded no usable price", "targets", summary.Targets)
		} else {
			logger.Error("round failed", "error", err)
		}
		return 1
	}

	logger.Info("round complete",
		"targets", summary.Targets,
		"usable", summary.UsablePrices,
		"reconciled", summary.Reconciled,
		"high_confidence", summary.HighConfidence,
	)
	return 0
}

func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
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

	if os.Getenv("LOG_FORMAT") == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
