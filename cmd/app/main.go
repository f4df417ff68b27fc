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

	"fitmarket-settlement/internal/config"
	pg "fitmarket-settlement/internal/infra/db/postgres"
	"fitmarket-settlement/internal/infra/logging"
	"fitmarket-settlement/internal/infra/metrics"
	red "fitmarket-settlement/internal/infra/redis"
	"fitmarket-settlement/internal/infra/sched"
	"fitmarket-settlement/internal/infra/web"
	"fitmarket-settlement/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	userRepo := pg.NewUserRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Use cases ----
	clock := usecase.SystemClock()
	settlementUC := usecase.NewSettlementUseCase(paymentRepo, membershipRepo, txm, clock, logger)
	membershipUC := usecase.NewMembershipUseCase(membershipRepo, planRepo, settlementUC, txm, clock, logger)
	reportUC := usecase.NewReportUseCase(paymentRepo, membershipRepo, userRepo, logger)

	// ---- Expiry sweep ----
	sweeper := sched.NewSweepWorker(cfg.Scheduler.SweepCron, membershipUC, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("sweep worker")
	}

	// ---- HTTP ----
	srv := web.NewServer(settlementUC, membershipUC, reportUC, logger)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
