package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/auth"
	"github.com/md-rashed-zaman/repbook/libs/db"
	"github.com/md-rashed-zaman/repbook/libs/httpx"
	"github.com/md-rashed-zaman/repbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/repbook/libs/otel"
	"github.com/md-rashed-zaman/repbook/libs/runtime"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking HTTP API and outbox publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return runServer(s)
		},
	}
}

func runServer(s settings) error {
	logger := runtime.NewLogger(s.Service, s.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store  storage.Store
		source outbox.Source
		mem    *storage.Memory
		checks []runtime.ReadyCheck
	)
	switch s.Store {
	case storeMemory:
		mem = storage.NewMemory()
		if s.SeedFile != "" {
			users, providers, err := seedMemory(mem, s.SeedFile)
			if err != nil {
				return err
			}
			logger.Info("memory store seeded", "users", users, "providers", providers)
		}
		logger.Warn("using in-memory store; data is lost on restart")
		store, source = mem, mem
	default:
		pool, err := db.Open(ctx, s.DatabaseURL, db.PoolConfig{MaxConns: int32(s.DBMaxConns)})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return err
		}
		defer pool.Close()
		pg := storage.NewPostgres(pool, s.BookingMaxAttempts)
		store, source = pg, pg.Outbox()
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	if brokers := kafkax.SplitBrokers(s.KafkaBrokers); len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		defer writer.Close()
		publisher := outbox.NewPublisher(source, writer, logger, outbox.PublisherConfig{PollEvery: s.OutboxPollEvery})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)})
	} else {
		logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		if mem != nil {
			mem.DiscardEvents()
		}
	}

	var limiter httpx.Limiter
	if s.RedisURL != "" {
		opts, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, logger, httpx.RedisLimiterConfig{
			Limit:    s.RateLimitPerMinute,
			Window:   time.Minute,
			Prefix:   "booking",
			Key:      handlers.RateLimitKey,
			FailOpen: true,
		})
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		limiter = httpx.NewRateLimiter(s.RateLimitPerMinute, time.Minute, handlers.RateLimitKey)
	}

	svc := booking.New(store, logger)
	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(svc, logger).Register(mux, auth.RequireBearer(s.JWTSecret), limiter.Middleware())

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(s.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", s.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
