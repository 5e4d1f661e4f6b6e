package main

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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wayneindustries/resourcemgmt/db"
	"github.com/wayneindustries/resourcemgmt/internal/app/migrate"
	httpx "github.com/wayneindustries/resourcemgmt/internal/http"
	"github.com/wayneindustries/resourcemgmt/internal/repository/postgres"
	"github.com/wayneindustries/resourcemgmt/internal/service/accesslog"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/auth"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/service/demo"
	"github.com/wayneindustries/resourcemgmt/internal/service/performance"
	"github.com/wayneindustries/resourcemgmt/internal/service/profile"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/service/settings"
	"github.com/wayneindustries/resourcemgmt/internal/service/stats"
	"github.com/wayneindustries/resourcemgmt/internal/service/storage"
	"github.com/wayneindustries/resourcemgmt/internal/ws"
	"github.com/wayneindustries/resourcemgmt/pkg/config"
	"github.com/wayneindustries/resourcemgmt/pkg/logger"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log, logCloser, err := logger.NewWithOptions("api", logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to configure logging:", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, db.Migrations, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if cfg.RunMigrations {
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()
	defer hub.Stop()

	changes := changefeed.New(repo, hub, log, cfg.RealtimeChannel, cfg.RealtimeListen)
	go changes.Run(ctx)

	accessLogs := accesslog.New(repo, changes, log)
	alerts := alert.New(repo, changes, log)
	authSvc := auth.New(repo, repo, repo, repo, accessLogs, auth.NewLogNotifier(log, cfg.PasswordResetURL, cfg.Production()), log, cfg)
	resources := resource.New(repo, repo, changes, accessLogs, alerts, log)

	blobs, err := storage.NewFSStore(cfg.StorageRoot)
	if err != nil {
		log.Error("failed to prepare object storage", "root", cfg.StorageRoot, "error", err)
		os.Exit(1)
	}
	storageSvc := storage.New(repo, blobs, log, storage.Config{
		Secret:        cfg.StorageSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		MaxBytes:      cfg.MaxUploadBytes(),
		DefaultTTL:    cfg.StorageURLTTL,
	})

	perf := performance.New(repo, log, cfg.PerfBucketSpan, cfg.PerfFlushEvery)
	perfDone := make(chan struct{})
	go func() {
		defer close(perfDone)
		perf.Run(ctx)
	}()

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, httpx.Services{
		Auth:        authSvc,
		Profiles:    profile.New(repo, changes, accessLogs, log),
		Resources:   resources,
		AccessLogs:  accessLogs,
		Alerts:      alerts,
		Settings:    settings.New(repo, changes, log),
		Storage:     storageSvc,
		Changes:     changes,
		Demo:        demo.New(authSvc, repo, resources, alerts, log),
		Stats:       stats.New(repo),
		Performance: perf,
	}, httpx.Options{
		Limiter:           limiter,
		DBHealth:          pool.Ping,
		RealtimeHeartbeat: cfg.RealtimeHeartbeat,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		FileURLTTL:        cfg.StorageURLTTL,
		AllowedOrigins:    cfg.AllowedOrigins,
		TrustedProxies:    cfg.TrustedProxies,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(router.Drain)

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "environment", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		<-perfDone
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
			<-perfDone
			os.Exit(1)
		}
	}
}

