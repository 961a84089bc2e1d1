package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erocrawler/gmanimato/internal/config"
	"github.com/erocrawler/gmanimato/internal/domain/ports/adapter"
	"github.com/erocrawler/gmanimato/internal/infra/adapters/render"
	pg "github.com/erocrawler/gmanimato/internal/infra/db/postgres"
	"github.com/erocrawler/gmanimato/internal/infra/logging"
	"github.com/erocrawler/gmanimato/internal/infra/metrics"
	red "github.com/erocrawler/gmanimato/internal/infra/redis"
	"github.com/erocrawler/gmanimato/internal/infra/sched"
	"github.com/erocrawler/gmanimato/internal/infra/web"
	"github.com/erocrawler/gmanimato/internal/infra/worker"
	"github.com/erocrawler/gmanimato/internal/usecase"
)

var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	entryRepo := pg.NewEntryRepo(pool, tm)
	settingsRepo := pg.NewSettingsRepoCacheDecorator(pg.NewSettingsRepo(pool), redisClient)

	// ---- Remote backend (optional) ----
	// Keep the interface nil when unconfigured so the router can tell
	// "absent" apart from "failing".
	var backend adapter.RenderBackend
	if c := render.NewClient(cfg.Render, logger); c != nil {
		backend = c
		logger.Info().Str("endpoint", cfg.Render.Endpoint).Msg("remote render backend configured")
	} else {
		logger.Warn().Msg("no remote render backend configured; jobs depend on the local pool")
	}
	payloads := render.NewPayloadBuilder()

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(entryRepo)
	routerUC := usecase.NewRouterUseCase(entryRepo, settingsRepo, backend, payloads, cfg.Server.BaseURL, logger)
	reconciler := usecase.NewReconcilerUseCase(entryRepo, backend, routerUC, logger)
	claimUC := usecase.NewClaimUseCase(entryRepo, payloads, cfg.Server.BaseURL, logger)
	submitUC := usecase.NewSubmissionUseCase(entryRepo, settingsRepo, quotaUC, routerUC, logger)
	entryUC := usecase.NewEntryUseCase(entryRepo)

	// ---- Web server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(submitUC, entryUC, claimUC, reconciler, routerUC, settingsRepo, rateLimiter, auth, cfg, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Migration sweeper ----
	taskPool := worker.NewPool(cfg.Sweeper.Workers, logger)
	taskPool.Start(ctx)
	sweeper := sched.NewMigrationSweeper(entryRepo, settingsRepo, routerUC, locker, taskPool,
		cfg.Sweeper.Interval, cfg.Sweeper.BatchSize, logger)
	go sweeper.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	taskPool.Stop()
}
