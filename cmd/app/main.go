// File: cmd/app/main.go
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

	"leadscout/internal/config"
	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/repository"
	"leadscout/internal/infra/db/memory"
	pg "leadscout/internal/infra/db/postgres"
	"leadscout/internal/infra/logging"
	"leadscout/internal/infra/metrics"
	"leadscout/internal/infra/promptargs"
	red "leadscout/internal/infra/redis"
	"leadscout/internal/infra/web"
	"leadscout/internal/runner"
	"leadscout/internal/scoring"
	"leadscout/internal/stream"
	"leadscout/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory storage allowed)")
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

	// ---- Repositories ----
	var leadRepo repository.LeadRepository
	var resultRepo repository.ResultRepository
	if cfg.Database.URL != "" {
		pool, perr := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
		if perr != nil {
			log.Fatalf("postgres: %v", perr)
		}
		defer pool.Close()
		leadRepo = pg.NewLeadRepo(pool)
		resultRepo = pg.NewResultRepo(pool)
	} else {
		logger.Warn().Msg("no database configured; using in-memory storage")
		memLeads := memory.NewLeadRepo()
		memLeads.Put(&model.Lead{ID: "demo", OrgID: "dev", Company: "Demo Corp", CreatedAt: time.Now(), UpdatedAt: time.Now()})
		leadRepo = memLeads
		resultRepo = memory.NewResultRepo()
	}

	// ---- Scoring rubric ----
	rubric := scoring.DefaultConfig()
	if cfg.Scoring.RubricPath != "" {
		rubric, err = scoring.LoadConfig(cfg.Scoring.RubricPath)
		if err != nil {
			log.Fatalf("scoring rubric: %v", err)
		}
	}

	// ---- Pipeline ----
	reg := runner.NewRegistry()
	run := runner.New(runner.Config{
		Tool:           cfg.Runner.Tool,
		WorkDir:        cfg.Runner.WorkDir,
		PoolSize:       cfg.Runner.PoolSize,
		QueueWait:      cfg.Runner.QueueWait,
		DefaultTimeout: cfg.Runner.DefaultTimeout,
		EvictionGrace:  cfg.Stream.EvictionGrace,
	}, reg, logger, nil)

	uc := usecase.NewResearchUseCase(run, leadRepo, resultRepo, promptargs.New(), rubric, cfg.Runner.WorkDir, logger)
	run.SetOnComplete(uc.HandleCompletion)

	streamSrv := stream.NewServer(reg, stream.Config{
		ActiveInterval: cfg.Stream.ActiveInterval,
		IdleInterval:   cfg.Stream.IdleInterval,
		IdleThreshold:  cfg.Stream.IdleThreshold,
	}, logger)

	// ---- Redis rate limiter ----
	var limiter web.SubmitLimiter
	if cfg.Redis.Enabled {
		redisClient, rerr := red.NewClient(ctx, &cfg.Redis)
		if rerr != nil {
			log.Fatalf("redis: %v", rerr)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.Redis.RateLimit, cfg.Redis.RateWindow)
	}

	// ---- HTTP ----
	var auth *web.AuthManager
	if cfg.Server.SessionSecret != "" {
		auth = web.NewAuthManager(cfg.Server.SessionSecret, !cfg.Runtime.Dev, cfg.Server.SessionTTL)
	}
	srv := web.NewServer(uc, reg, streamSrv, limiter, auth, cfg.Server.APIKey, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	run.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
