package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/app"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/config"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("order-fulfillment", cfg.LogLevel)
	log.Info("starting order fulfillment service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Bool("redis_enabled", cfg.RedisEnabled),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled),
		slog.Bool("notifications_enabled", cfg.NotificationsEnabled()),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("order fulfillment service stopped")
}
