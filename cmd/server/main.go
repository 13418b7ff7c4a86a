// cmd/server runs the tournament service: the event store behind the HTTP API
// and push socket, backed by PostgreSQL, Redis and the chat notifier.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/tourney/internal/auth"
	"github.com/jason-s-yu/tourney/internal/cache"
	"github.com/jason-s-yu/tourney/internal/config"
	"github.com/jason-s-yu/tourney/internal/database"
	"github.com/jason-s-yu/tourney/internal/handlers"
	"github.com/jason-s-yu/tourney/internal/metrics"
	"github.com/jason-s-yu/tourney/internal/middleware"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/tournament"
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
	loc, _ := cfg.Event.Location()

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

	var notifier notify.Notifier
	var operator string
	if cfg.Telegram.Token != "" {
		bot, err := notify.Dial(cfg.Telegram.Token)
		if err != nil {
			logger.Fatalf("telegram: %v", err)
		}
		notifier = notify.NewTelegram(bot, cfg.Telegram.ChatID, cfg.Telegram.RatePerSecond, logger)
		if cfg.Telegram.OperatorChatID != 0 {
			operator = notify.ChatTarget(cfg.Telegram.OperatorChatID)
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, announcements go to the log")
		notifier = notify.NewLogging(logger)
	}

	m := metrics.New()
	hub := push.NewHub(logger, push.DefaultBuffer, m.PushSubscribers)

	store := tournament.New(tournament.Options{
		SnapshotInterval: cfg.Event.SnapshotInterval,
		TeardownGrace:    cfg.Event.TeardownDelay,
		ReminderLead:     cfg.Event.ReminderLead,
		Location:         loc,
		OperatorTarget:   operator,
		Logger:           logger,
		Metrics:          m,
	}, tournament.Ports{
		Notifier:    notifier,
		Persistence: pg,
		Snapshots:   cache.NewSnapshots(rdb, cfg.Redis.SnapshotKey),
		Publisher:   hub,
		Actions:     cache.NewActionQueue(rdb, cfg.Redis.QueueName),
	})

	restored, err := store.Restore(ctx)
	switch {
	case err != nil:
		logger.Errorf("failed to restore the event snapshot: %v", err)
	case restored:
		ev := store.Event()
		logger.WithFields(logrus.Fields{"event_id": ev.ID, "round": ev.Round}).Info("restored running event")
	}

	var signer *auth.Signer
	if cfg.Admin.KeyFile != "" {
		signer, err = auth.LoadSigner(cfg.Admin.KeyFile, cfg.Admin.TokenTTL)
	} else {
		logger.Warn("JWT_KEY_FILE not set, tokens will not survive a restart")
		signer, err = auth.NewSigner(cfg.Admin.TokenTTL)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	opts := handlers.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m.Handler(),
	}
	if cfg.Server.RateLimit > 0 {
		opts.Limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}
	api := handlers.NewAPI(store, signer, handlers.Admin{ID: cfg.Admin.ID, PasswordHash: cfg.Admin.PasswordHash}, logger, opts)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Running on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if store.IsRunning() {
		if err := store.Backup(shutdownCtx); err != nil {
			logger.Errorf("final snapshot failed: %v", err)
		}
	}
}
