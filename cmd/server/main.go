package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/feastly-app/api/internal/config"
	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/payment"
	"github.com/feastly-app/api/internal/router"
	"github.com/feastly-app/api/internal/scheduler"
	"github.com/feastly-app/api/internal/service"
	"github.com/feastly-app/api/internal/ws"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}
	queries := database.New(pool)

	hub := ws.NewHub(logger)
	go hub.Run()

	var gateway payment.Gateway
	if cfg.PaymentBaseURL != "" {
		gateway = payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentMerchantID, cfg.PaymentAPIKey)
	} else {
		logger.Warn("no payment gateway configured, using sandbox")
		gateway = payment.Sandbox{}
	}

	// Background timeout sweeps.
	sweeper := service.NewTimeoutSweeper(queries, cfg.PaymentGrace, cfg.DeliveryGrace, logger)
	sched := scheduler.New(logger)
	sched.Every(ctx, cfg.UnpaidSweepInterval, "sweep-unpaid", func(ctx context.Context, now time.Time) {
		if _, err := sweeper.SweepUnpaid(ctx, now); err != nil {
			logger.Error("unpaid sweep failed", zap.Error(err))
		}
	})
	sched.DailyAt(ctx, cfg.DeliverySweepHour, cfg.DeliverySweepMinute, "sweep-stuck-delivery", func(ctx context.Context, now time.Time) {
		if _, err := sweeper.SweepStuckDelivery(ctx, now); err != nil {
			logger.Error("stuck delivery sweep failed", zap.Error(err))
		}
	})

	r := router.New(cfg, queries, pool, hub, gateway, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
