package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"pactflow/agreement"
	"pactflow/audit"
	"pactflow/auth"
	"pactflow/config"
	"pactflow/db"
	"pactflow/document"
	"pactflow/logger"
	"pactflow/metrics"
	"pactflow/middleware"
	"pactflow/notify"
	"pactflow/profile"
	"pactflow/translate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pactflow api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	var docs document.Store = document.NopStore{}
	if cfg.DocumentStorageEnabled() {
		s3Store, err := document.NewS3Store(ctx, document.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			LinkTTL:   24 * time.Hour,
		})
		if err != nil {
			return err
		}
		docs = s3Store
	}

	profiles := profile.NewService(profile.NewRepository(pool))
	accounts := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	otp := auth.NewOTPService(auth.NewOTPRepository(pool), cfg.OTPTTL)
	auditor := audit.NewLogger(audit.NewPGRecorder(pool), log).WithObserver(collector)
	outbox := notify.NewOutbox(pool)

	agreements := agreement.NewService(agreement.NewPGStore(pool, outbox), profiles, auditor).
		WithLogger(log).
		WithObserver(collector).
		WithDocuments(document.NewExporter(), docs).
		WithBaseURL(cfg.AppBaseURL)
	if cfg.OTPRequired {
		agreements.WithOTPVerifier(otp)
	}

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.NotifyWebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.NotifyWebhookURL, notify.NewSafeHTTPClient(cfg.NotifyTimeout))
	}
	worker := notify.NewWorker(outbox, sender, notify.WorkerConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
		SendTimeout:  cfg.NotifyTimeout,
	}, log).WithObserver(collector)

	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitPerMinute, cfg.SignRateLimitPerMinute), log)
	defer limiter.Stop()

	server := &Server{
		agreements: agreements,
		accounts:   accounts,
		tokens:     accounts,
		profiles:   profiles,
		otp:        otp,
		translator: translate.NewDictionary(nil),
		limiter:    limiter,
		collector:  collector,
		gatherer:   reg,
		logger:     log,
		now:        time.Now,
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if cfg.RepairInterval > 0 {
		repairer := agreement.NewRepairer(agreements)
		g.Go(func() error {
			return runRepairLoop(gctx, repairer, cfg.RepairInterval, log)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("pactflow api stopped")
	return nil
}

// runRepairLoop runs the repair pass every interval until ctx is done.
func runRepairLoop(ctx context.Context, repairer *agreement.Repairer, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		n, err := repairer.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WarnContext(ctx, "repair pass failed", slog.Any("error", err))
		}
		if n > 0 {
			log.InfoContext(ctx, "repair pass fixed agreements", slog.Int("count", n))
		}
	}
}
