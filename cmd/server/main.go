// Package main is the entry point for the secret friend API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/config"
	"secret-friend/internal/pkg/db"
	"secret-friend/internal/pkg/lock"
	"secret-friend/internal/repository"
	"secret-friend/internal/server"
	"secret-friend/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("driver", cfg.Database.Driver).
		Int("min_participants", cfg.Game.MinParticipants).
		Bool("master_password", cfg.Admin.MasterPassword != "").
		Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		games  service.GameStore
		people service.PeopleStore
		health server.HealthFunc
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		games, people = store, store.People()

	default:
		if err := db.Migrate(cfg.Database.DSN()); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		games = repository.NewGameRepository(dbPool.Pool)
		people = repository.NewPeopleRepository(dbPool.Pool)
		health = dbPool.Health
	}

	// One lock set shared by every service that mutates games.
	gameLock := lock.NewKeyLock()

	deps := &server.Dependencies{
		Config:        cfg,
		GameService:   service.NewGameService(games, people, gameLock, cfg),
		RevealService: service.NewRevealService(games, gameLock),
		PeopleService: service.NewPeopleService(people, cfg),
		AdminService:  service.NewAdminService(games, people, cfg),
		Health:        health,
	}

	srv, err := server.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}
