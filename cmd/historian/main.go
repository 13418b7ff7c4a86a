// cmd/historian pops match actions from the Redis queue and persists them to
// PostgreSQL in batches.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tourney/internal/cache"
	"github.com/jason-s-yu/tourney/internal/config"
	"github.com/jason-s-yu/tourney/internal/database"
	"github.com/jason-s-yu/tourney/internal/historian"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("TOURNEY_CONFIG"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := database.Connect(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		logger.Fatalf("postgres: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(cache.NewActionQueue(rdb, cfg.Redis.QueueName), pg, historian.Config{
		BatchSize:  cfg.Historian.BatchSize,
		FlushDelay: cfg.Historian.FlushDelay,
		Inactivity: cfg.Historian.Inactivity,
	}, logger)
	svc.Run(ctx)
}
