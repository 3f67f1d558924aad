package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hongminglow/taheel-be/internal/auth"
	"github.com/hongminglow/taheel-be/internal/config"
	"github.com/hongminglow/taheel-be/internal/dashboard"
	"github.com/hongminglow/taheel-be/internal/events"
	"github.com/hongminglow/taheel-be/internal/jobs"
	"github.com/hongminglow/taheel-be/internal/logging"
	"github.com/hongminglow/taheel-be/internal/notify"
	"github.com/hongminglow/taheel-be/internal/payment"
	"github.com/hongminglow/taheel-be/internal/ratelimit"
	"github.com/hongminglow/taheel-be/internal/server"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/hongminglow/taheel-be/internal/storage/memory"
	postgres "github.com/hongminglow/taheel-be/internal/storage/postgres"
	"github.com/hongminglow/taheel-be/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	base, err := logging.New(logging.Options{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = base.Sync() }()
	zap.ReplaceGlobals(base)
	logger := base.Sugar()

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("init store", "driver", cfg.StoreDriver, "err", err)
	}
	defer store.Close()

	publisher := openPublisher(cfg, logger)
	defer publisher.Close()

	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Fatalw("init payment gateway", "mode", cfg.PaymentMode, "err", err)
	}

	ledger := notify.NewLedger(store, logger)
	engine := wallet.NewEngine(store, ledger, gateway, publisher, logger, wallet.Options{
		Currency:    cfg.PaymentCurrency,
		DefaultLang: cfg.DefaultLang,
	})
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalw("parse REDIS_URL", "err", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		engine.SetRateLimiter(ratelimit.New(rdb, cfg.RedisRateLimitPrefix, "wallet_topup", cfg.TopUpRateLimit, time.Minute))
	}

	scheduler := jobs.NewScheduler(logger)
	reconciler := wallet.NewReconciler(store, engine, cfg.ReconcileGrace, cfg.ReconcileBatchSize, logger)
	if err := scheduler.Register(jobs.Job{Name: "topup_reconcile", Schedule: cfg.ReconcileSchedule, Run: reconciler.RunOnce}); err != nil {
		logger.Fatalw("register reconciliation job", "err", err)
	}
	scheduler.Start()

	srv := server.New(cfg, server.Deps{
		Dashboard:     dashboard.NewAggregator(store, ledger, logger),
		Wallet:        engine,
		Notifications: ledger,
		Publisher:     publisher,
		Tokens:        auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		Logger:        logger,
	})

	go func() {
		logger.Infow("Taheel backend listening", "addr", cfg.HTTPAddress(), "store", cfg.StoreDriver, "payment_mode", cfg.PaymentMode)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("http server error", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warnw("graceful shutdown error", "err", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctxShutdown.Done():
		logger.Warn("reconciliation job still running at shutdown")
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return memory.New(), nil
	}
	return postgres.NewStore(ctx, postgres.Options{
		DatabaseURL:      cfg.DatabaseURL,
		CloudSQLInstance: cfg.CloudSQLInstance,
		MaxConns:         cfg.DatabaseMaxConns,
	})
}

func openPublisher(cfg config.Config, logger *zap.SugaredLogger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set; events are not published")
		return events.Fallback{Logger: logger}
	}
	producer, err := events.NewProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warnw("rabbitmq unavailable; events are not published", "err", err)
		return events.Fallback{Logger: logger}
	}
	return producer
}

func newGateway(cfg config.Config) (payment.Gateway, error) {
	if cfg.PaymentMode == config.PaymentHosted {
		return payment.NewHosted(cfg.PaymentCheckoutURL)
	}
	return payment.Sandbox{}, nil
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
