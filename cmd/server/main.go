package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratesclient "github.com/aristath/moneta/internal/clients/rates"
	"github.com/aristath/moneta/internal/config"
	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/events"
	"github.com/aristath/moneta/internal/modules/contributions"
	"github.com/aristath/moneta/internal/modules/entity"
	"github.com/aristath/moneta/internal/modules/exchange"
	"github.com/aristath/moneta/internal/modules/fetch"
	"github.com/aristath/moneta/internal/modules/flows"
	"github.com/aristath/moneta/internal/modules/forecast"
	"github.com/aristath/moneta/internal/modules/historic"
	"github.com/aristath/moneta/internal/modules/imports"
	"github.com/aristath/moneta/internal/modules/loans"
	"github.com/aristath/moneta/internal/modules/position"
	"github.com/aristath/moneta/internal/modules/realestate"
	"github.com/aristath/moneta/internal/modules/savings"
	"github.com/aristath/moneta/internal/modules/transactions"
	"github.com/aristath/moneta/internal/scheduler"
	"github.com/aristath/moneta/internal/server"
	"github.com/aristath/moneta/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting moneta")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ev := events.NewManager(log)

	// Repositories and services.
	entityRepo := entity.NewRepository(db.Conn(), log)
	credsRepo := entity.NewCredentialsRepository(db.Conn(), log)
	sessionsRepo := entity.NewSessionsRepository(db.Conn(), log)
	entitySvc := entity.NewService(entityRepo, credsRepo, sessionsRepo, ev, log)
	if err := entitySvc.SeedNatives(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed native entities")
	}

	positionSvc := position.NewService(position.NewRepository(db.Conn(), log), position.NewAssetRegistry(db.Conn(), log), ev, log)
	txSvc := transactions.NewService(transactions.NewRepository(db.Conn(), log), ev, log)
	historicSvc := historic.NewService(historic.NewRepository(db.Conn(), log), log)
	contribSvc := contributions.NewService(contributions.NewRepository(db.Conn(), log), log)
	flowsRepo := flows.NewRepository(db.Conn(), log)
	flowsSvc := flows.NewService(flowsRepo, log)
	realestateSvc := realestate.NewService(realestate.NewRepository(db.Conn(), log), flowsRepo, log)
	loansSvc := loans.NewService(log)
	savingsSvc := savings.NewService(log)

	fetchRepo := fetch.NewRepository(db.Conn(), log)
	fetchSvc := fetch.NewService(fetch.Config{
		Registry:      fetch.NewRegistry(),
		Entities:      entityRepo,
		Credentials:   credsRepo,
		Sessions:      sessionsRepo,
		DB:            db,
		LastFetches:   fetchRepo,
		Positions:     positionSvc,
		Transactions:  txSvc,
		Contributions: contribSvc,
		Historic:      historicSvc,
		Events:        ev,
		Cooldown:      cfg.PositionCooldown,
		Log:           log,
	})

	forecastSvc := forecast.NewService(
		positionSvc, flowsSvc, contribSvc, realestateSvc,
		cfg.CapitalGainsBaseTax, log,
	)
	importsSvc := imports.NewService(entitySvc, positionSvc, txSvc, fetchRepo, ev, log)

	exchangeSvc := exchange.NewService(
		exchange.NewRepository(db.Conn(), log),
		ratesclient.NewClient(log),
		ev, nil, log,
	)

	// Background jobs.
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RatesRefreshSchedule, scheduler.NewRatesRefreshJob(exchangeSvc, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register rates refresh job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DevMode: cfg.DevMode,
		Handlers: server.Handlers{
			Entities:      entity.NewHandler(entitySvc, log),
			Fetch:         fetch.NewHandler(fetchSvc, log),
			Positions:     position.NewHandler(positionSvc, log),
			Transactions:  transactions.NewHandler(txSvc, log),
			Historic:      historic.NewHandler(historicSvc, log),
			Contributions: contributions.NewHandler(contribSvc, log),
			Flows:         flows.NewHandler(flowsSvc, log),
			RealEstate:    realestate.NewHandler(realestateSvc, log),
			Loans:         loans.NewHandler(loansSvc, log),
			Savings:       savings.NewHandler(savingsSvc, log),
			Forecast:      forecast.NewHandler(forecastSvc, log),
			Imports:       imports.NewHandler(importsSvc, log),
			Exchange:      exchange.NewHandler(exchangeSvc, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
