package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/api"
	"github.com/alexchen/portfolio-backend/internal/cache"
	"github.com/alexchen/portfolio-backend/internal/config"
	"github.com/alexchen/portfolio-backend/internal/contact"
	"github.com/alexchen/portfolio-backend/internal/email"
	"github.com/alexchen/portfolio-backend/internal/github"
	"github.com/alexchen/portfolio-backend/internal/logger"
	"github.com/alexchen/portfolio-backend/internal/metrics"
	"github.com/alexchen/portfolio-backend/internal/queue"
	"github.com/alexchen/portfolio-backend/internal/ratelimit"
	"github.com/alexchen/portfolio-backend/internal/status"
	"github.com/alexchen/portfolio-backend/internal/worker"
)

const monitorInterval = 10 * time.Second

func main() {

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Cache (Redis)
	// ------------------------------------------------
	store, err := cache.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid redis url", zap.Error(err))
	}

	cacheClient := cache.New(store, log)
	if err := cacheClient.Connect(ctx); err != nil {
		// Degraded, not fatal: the gate fails open and reads miss until
		// the monitor brings the store back.
		log.Warn("cache unavailable at startup", zap.Error(err))
	}
	go cacheClient.Monitor(ctx, monitorInterval)
	defer cacheClient.Close()

	// ------------------------------------------------
	// Queue (RabbitMQ)
	// ------------------------------------------------
	queueClient := queue.New(cfg.RabbitMQURL, log)
	if err := queueClient.Connect(ctx); err != nil {
		log.Warn("broker unavailable at startup", zap.Error(err))
	}
	go queueClient.Monitor(ctx, monitorInterval)
	defer queueClient.Close()

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
		log.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Email Sender
	// ------------------------------------------------
	sender := &email.Sender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		From: cfg.SMTPFrom,
	}

	// ------------------------------------------------
	// Services
	// ------------------------------------------------
	gate := ratelimit.NewGate(
		cacheClient,
		cfg.RateLimitThreshold,
		time.Duration(cfg.RateLimitWindowSec)*time.Second,
		log,
	)

	tracker := analytics.NewTracker(queueClient, cacheClient, log)

	contactService := contact.NewService(
		gate,
		queueClient,
		sender,
		tracker,
		cfg.ContactEmail,
		log,
	)

	showcase := github.NewService(cacheClient, cfg.GitHubUsername, cfg.GitHubToken, log)
	reporter := status.NewReporter(cacheClient, queueClient)

	// ------------------------------------------------
	// Workers
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendRate)

	var wg sync.WaitGroup

	workers := worker.New(queueClient, sender, tracker, limiter, cfg.RetryAttempts, log)
	workers.Start(ctx, &wg)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Contact:  contactService,
		Tracker:  tracker,
		Status:   reporter,
		Showcase: showcase,
		Log:      log,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Routes(),
	}

	go func() {
		log.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	log.Info("shutting down services...")

	// Wait for in-flight consumers to stop
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", zap.Error(err))
	}

	log.Info("application shutdown complete")
}
