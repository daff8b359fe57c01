package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iscss/css-jobs-sub000/internal/api"
	"github.com/iscss/css-jobs-sub000/internal/auth"
	"github.com/iscss/css-jobs-sub000/internal/config"
	"github.com/iscss/css-jobs-sub000/internal/db"
	"github.com/iscss/css-jobs-sub000/internal/domains"
	"github.com/iscss/css-jobs-sub000/internal/email"
	"github.com/iscss/css-jobs-sub000/internal/identity"
	"github.com/iscss/css-jobs-sub000/internal/metrics"
	"github.com/iscss/css-jobs-sub000/internal/ratelimit"
	"github.com/iscss/css-jobs-sub000/internal/users"
	"github.com/iscss/css-jobs-sub000/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger, err = configureLogger(logger, cfg.LogDevelopment)
	if err != nil {
		logger.Fatal("failed to build development logger", zap.Error(err))
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Email Sender
	// ------------------------------------------------
	var sender email.Sender
	switch cfg.EmailProvider {
	case "smtp":
		sender = &email.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}
	default:
		if cfg.ResendAPIKey == "" {
			logger.Warn("RESEND_API_KEY not set, every send will fail and be retried")
		}
		sender = email.NewResendSender(cfg.ResendAPIKey, cfg.ResendAPIURL)
	}

	// ------------------------------------------------
	// Queue Processor
	// ------------------------------------------------
	var wg sync.WaitGroup

	processor := worker.NewProcessor(store, sender, worker.ProcessorConfig{
		From:      cfg.EmailFrom,
		SiteURL:   cfg.SiteURL,
		BatchSize: cfg.QueueBatchSize,
		Lease:     cfg.QueueLease,
		Retry:     worker.RetryPolicy{Base: cfg.RetryBaseDelay},
		Pacer:     rate.NewLimiter(rate.Limit(cfg.ProviderRateLimit), 1),
	}, logger)

	if cfg.QueuePollInterval > 0 {
		worker.StartScheduler(ctx, &wg, cfg.QueuePollInterval, cfg.QueueLease, processor, logger)
	}

	// ------------------------------------------------
	// Auth Rate Limiters
	// ------------------------------------------------
	var limitStore ratelimit.Store
	switch cfg.RateLimitBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		limitStore = ratelimit.NewRedisStore(rdb, "ratelimit:")
	default:
		limitStore = ratelimit.NewMemoryStore()
	}

	limiters := auth.Limiters{
		SignIn:        mustLimiter(logger, "sign_in", ratelimit.SignIn, limitStore),
		SignUp:        mustLimiter(logger, "sign_up", ratelimit.SignUp, limitStore),
		PasswordReset: mustLimiter(logger, "password_reset", ratelimit.PasswordReset, limitStore),
	}

	ratelimit.StartCleanup(ctx, &wg, cfg.RateLimitCleanupInterval, logger,
		limiters.SignIn, limiters.SignUp, limiters.PasswordReset)

	// ------------------------------------------------
	// Institution Domains
	// ------------------------------------------------
	domainTable := domains.Lazy(func() ([]domains.Institution, error) {
		return domains.Load(ctx, cfg.DomainsSource)
	})

	gate := auth.NewGate(limiters, domainTable, logger)

	// ------------------------------------------------
	// User Deletion
	// ------------------------------------------------
	deleter := users.NewDeleter(
		users.NewTokenVerifier(cfg.SupabaseJWTSecret, cfg.SupabaseJWTAudience),
		store,
		identity.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey),
		logger,
	)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Processor:         processor,
		Queue:             store,
		Users:             deleter,
		Gate:              gate,
		Log:               logger,
		FunctionSecret:    cfg.FunctionSecret,
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		BatchTimeout:      cfg.QueueLease,
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Wait for the scheduler and cleanup loops
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

func mustLimiter(logger *zap.Logger, name string, policy ratelimit.Config, store ratelimit.Store) *ratelimit.Limiter {
	l, err := ratelimit.New(name, policy, store)
	if err != nil {
		logger.Fatal("invalid rate limit policy", zap.String("limiter", name), zap.Error(err))
	}
	return l
}
