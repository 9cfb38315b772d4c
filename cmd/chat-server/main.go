package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raphaelfeliz/chat-nov9/internal/app"
	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/common/config"
	"github.com/raphaelfeliz/chat-nov9/internal/common/database"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/common/observability"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/notify"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// retryWithBackoff attempts an operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting chat server",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	ctx := context.Background()

	// --- Conversation store ---
	var chatStore store.Store = store.NewMemoryStore()
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		chatStore = store.NewRedisStore(redisClient.Client, log)
		zapLog.Info("Redis store connected")
	} else {
		zapLog.Warn("no Redis configured, conversations will not survive restarts")
	}

	// --- Catalog ---
	products := catalog.DefaultProducts()
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		products, err = catalog.LoadFromPostgres(ctx, pg.DB)
		if err != nil {
			zapLog.Fatal("catalog load failed", zap.Error(err))
		}
		zapLog.Info("catalog loaded from PostgreSQL", zap.Int("products", len(products)))
	} else {
		zapLog.Info("using embedded catalog", zap.Int("products", len(products)))
	}
	index := catalog.NewIndex(products)

	// --- Extraction collaborator ---
	extractor, err := extraction.NewClient(extraction.Config{
		BaseURL:    cfg.Extraction.BaseURL,
		Timeout:    time.Duration(cfg.Extraction.Timeout) * time.Millisecond,
		MaxRetries: cfg.Extraction.MaxRetries,
	}, log)
	if err != nil {
		zapLog.Fatal("extraction client init failed", zap.Error(err))
	}

	// --- Sales notifications ---
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notifications.Enabled() {
		var targets []notify.Notifier
		if cfg.Notifications.SNSTopicARN != "" {
			sns, err := notify.NewSNSNotifier(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.SNSTopicARN)
			if err != nil {
				zapLog.Fatal("sns notifier init failed", zap.Error(err))
			}
			targets = append(targets, sns)
		}
		if cfg.Notifications.SESSalesEmail != "" {
			ses, err := notify.NewSESNotifier(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.SESFromEmail, cfg.Notifications.SESSalesEmail)
			if err != nil {
				zapLog.Fatal("ses notifier init failed", zap.Error(err))
			}
			targets = append(targets, ses)
		}
		notifier = notify.NewFanout(log, targets...)
		zapLog.Info("sales notifications enabled", zap.Int("channels", len(targets)))
	}

	registry := session.NewRegistry(index, extractor, chatStore, notifier, cfg.Handover.WhatsAppNumber, log)
	hub := session.NewHub(log)

	srv := app.NewServer(&app.App{
		Config:   cfg,
		Log:      log,
		Registry: registry,
		Hub:      hub,
		Obs:      obs,
	})

	go func() {
		zapLog.Info("listening", zap.String("address", cfg.Server.ListenAddress))
		if err := srv.Listen(cfg.Server.ListenAddress); err != nil {
			zapLog.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}
	zapLog.Info("goodbye")
}
