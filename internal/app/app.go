package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/retail-ledger/internal/api"
	"github.com/ayo6706/retail-ledger/internal/api/handler"
	"github.com/ayo6706/retail-ledger/internal/api/middleware"
	"github.com/ayo6706/retail-ledger/internal/config"
	"github.com/ayo6706/retail-ledger/internal/db"
	"github.com/ayo6706/retail-ledger/internal/events"
	"github.com/ayo6706/retail-ledger/internal/idempotency"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/ledger/memory"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"github.com/ayo6706/retail-ledger/internal/otp"
	"github.com/ayo6706/retail-ledger/internal/repository"
	"github.com/ayo6706/retail-ledger/internal/service"
	"github.com/ayo6706/retail-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// storage is the driver-specific half of the wiring.
type storage struct {
	ledger  ledger.Store
	users   service.UserStore
	idem    idempotency.Backend
	pingers map[string]handler.Pinger
	close   func()
}

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		st.pingers["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	var otpStore otp.Store = otp.NewMemoryStore()
	var idemCache redis.Cmdable
	if redisClient != nil {
		otpStore = otp.NewRedisStore(redisClient, "ledger:otp")
		idemCache = redisClient
	} else {
		logger.Warn("redis disabled: one-time codes are kept in process memory")
	}
	otpSvc := otp.NewService(otpStore, cfg.Ledger.OTPTTL, cfg.Ledger.OTPStaticCode)

	publisher := events.Connect(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()

	policy := policyFromConfig(cfg.Ledger)
	authSvc := service.NewAuthService(st.users, cfg.LoginLockoutThreshold)
	svc := api.Services{
		Auth:      authSvc,
		Accounts:  service.NewAccountService(st.ledger, policy),
		Transfers: service.NewTransferService(st.ledger, st.users, otpSvc, events.NewEmitter(publisher), policy),
		Reports:   service.NewReportService(st.ledger),
		OTP:       otpSvc,
	}

	if cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	reconciler := worker.NewReconciliationWorker(service.NewReconciliationService(st.ledger)).
		WithSchedule(cfg.ReconciliationSchedule)
	stopWorker, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}

	idemStore := idempotency.NewStore(idemCache, st.idem, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, logger, svc, idemStore, st.pingers)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("driver", cfg.LedgerDriver))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping reconciliation worker")
	cancel()
	stopWorker()

	logger.Info("shutdown complete")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.LedgerDriver == config.DriverMemory {
		zap.L().Warn("memory ledger driver: balances are lost on restart")
		mem := memory.New()
		return &storage{
			ledger:  mem,
			users:   mem,
			idem:    idempotency.NewMemoryBackend(),
			pingers: map[string]handler.Pinger{},
			close:   func() {},
		}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	store := repository.NewStore(pool, cfg.LockTimeout)
	return &storage{
		ledger:  store,
		users:   repository.NewUsers(pool),
		idem:    idempotency.NewPostgresBackend(store.Queries()),
		pingers: map[string]handler.Pinger{"database": pool},
		close:   pool.Close,
	}, nil
}

func policyFromConfig(l config.Ledger) service.Policy {
	return service.Policy{
		MinTransfer:        l.MinTransfer,
		MaxSingleTransfer:  l.MaxSingleTransfer,
		DailyLimits:        l.DailyLimits,
		RatesToReference:   l.RatesToReference,
		ExternalAccountFee: l.ExternalAccountFee,
		ExternalPhoneFee:   l.ExternalPhoneFee,
		MaxRUBAccounts:     l.MaxRUBAccounts,
		MaxForeignAccounts: l.MaxForeignAccounts,
		RequireOTPInternal: l.RequireOTPInternal,
		LimitLocation:      l.LimitLocation,
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
