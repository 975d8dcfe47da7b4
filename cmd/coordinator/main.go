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

	"github.com/pranit-garg/Dispatch/internal/application"
	"github.com/pranit-garg/Dispatch/internal/config"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/channel"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/ledger"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/payment"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/reputation"
	"github.com/pranit-garg/Dispatch/internal/infra/adapters/swap"
	pg "github.com/pranit-garg/Dispatch/internal/infra/db/postgres"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"
	"github.com/pranit-garg/Dispatch/internal/infra/metrics"
	red "github.com/pranit-garg/Dispatch/internal/infra/redis"
	"github.com/pranit-garg/Dispatch/internal/infra/sched"
	"github.com/pranit-garg/Dispatch/internal/infra/web"
	"github.com/pranit-garg/Dispatch/internal/infra/worker"
	"github.com/pranit-garg/Dispatch/internal/registry"
	"github.com/pranit-garg/Dispatch/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop settlement adapters)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	settlementRepo := pg.NewSettlementRepo(pool)
	pairingRepo := pg.NewPairingRepo(pool)

	// ---- Settlement adapters (noop in dev) ----
	var venue adapter.SwapVenue
	var dist adapter.Distributor
	var repLedger adapter.ReputationLedger
	if cfg.Runtime.Dev {
		venue = swap.NewNoopVenue()
		dist = ledger.NewNoopDistributor()
		repLedger = reputation.NewNoopLedger()
	} else {
		venue, err = swap.NewJupiterVenue(cfg.Settlement.VenueURL, cfg.Settlement.InputMint, cfg.Settlement.OutputMint, cfg.Settlement.SlippageBps)
		if err != nil {
			log.Fatalf("swap venue: %v", err)
		}
		dist, err = ledger.NewHTTPDistributor(cfg.Settlement.DistributorURL, cfg.Settlement.TreasuryAddr)
		if err != nil {
			log.Fatalf("distributor: %v", err)
		}
		repLedger, err = reputation.NewERC8004Ledger(cfg.Reputation.LedgerURL)
		if err != nil {
			log.Fatalf("reputation ledger: %v", err)
		}
	}

	// ---- Worker registry ----
	reg := registry.New(pairingRepo, repLedger, registry.Options{
		LivenessTimeout: cfg.Matching.LivenessTimeout,
		MaxRevocations:  cfg.Matching.MaxRevocations,
		ReputationTTL:   cfg.Reputation.CacheTTL,
	}, logger)

	// ---- Background task pool (reputation posts) ----
	taskPool := worker.NewPool(cfg.Reputation.Workers, logger)
	taskPool.Start(ctx)
	defer taskPool.Stop()

	// ---- Worker channel ----
	ch := channel.NewInProc()

	// ---- Use cases ----
	quoteUC := usecase.NewQuoteUseCase(cfg.Coordinator.Network)
	matchUC := usecase.NewMatchUseCase(reg, pairingRepo, cfg.Matching, logger)
	settleUC := usecase.NewSettlementUseCase(settlementRepo, venue, dist, repLedger, locker, taskPool, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, reg, matchUC, settleUC, ch, cfg.Matching, logger)
	pairingUC := usecase.NewPairingUseCase(pairingRepo, logger)

	// ---- Coordinator pump ----
	coord := application.NewCoordinator(ch, reg, jobUC, logger)
	go func() {
		if err := coord.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("coordinator pump stopped")
		}
	}()

	// ---- Sweepers ----
	sweeper := sched.NewSettlementSweeper(settleUC, settlementRepo, cfg.Settlement.SweepInterval, cfg.Settlement.StaleAfter, logger)
	go sweeper.Start(ctx)
	archiver := sched.NewJobArchiver(jobRepo, settlementRepo, time.Hour, cfg.Settlement.Retention, logger)
	go archiver.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, !cfg.Runtime.Dev, cfg.Web.JWTTTL)
	srv := web.NewServer(quoteUC, jobUC, pairingUC, settlementRepo, payment.NewHeaderGate(), auth, cfg.Web.AdminKey, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
