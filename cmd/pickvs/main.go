package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortuna/pickvs/internal/api/rest"
	"github.com/fortuna/pickvs/internal/auth"
	"github.com/fortuna/pickvs/internal/backfill"
	"github.com/fortuna/pickvs/internal/cache"
	"github.com/fortuna/pickvs/internal/config"
	"github.com/fortuna/pickvs/internal/publisher"
	"github.com/fortuna/pickvs/internal/service"
	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

const (
	serviceName    = "pickvs"
	serviceVersion = "1.0.0"

	// importStreamMaxLen caps the odds.imported stream
	importStreamMaxLen = 10000
)

func main() {
	log.Printf("Starting %s v%s - Sports Picks API", serviceName, serviceVersion)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetFlags(cfg.LogFlags())
	if cfg.Debug {
		log.Println("Debug logging enabled")
	}

	// Odds and units are sent as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	db, err := store.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("✓ Connected to database")

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// Redis is optional: without it listings are uncached and imports unannounced
	var (
		gameCache    service.Cache
		importEvents backfill.EventPublisher
	)
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable: %v (continuing without cache)", err)
		} else {
			defer redisCache.Close()
			gameCache = redisCache
			importEvents = publisher.NewRedisStreamPublisher(redisCache.Client(), importStreamMaxLen)
			log.Println("✓ Connected to Redis")
		}
	}

	games := repository.NewGameRepository(db.DB())
	odds := repository.NewOddsRepository(db.DB())
	users := repository.NewUserRepository(db.DB())
	picks := repository.NewPickRepository(db.DB())

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)

	gameService := service.NewGameService(games, odds, gameCache)
	pickService := service.NewPickService(games, picks)
	userService := service.NewUserService(users, tokens)

	runner := backfill.NewRunner(db, backfill.RunnerConfig{
		GameBatchSize: cfg.GameBatchSize,
		OddsBatchSize: cfg.OddsBatchSize,
		Cache:         gameService,
		Publisher:     importEvents,
	})
	importService := backfill.NewService(db, runner, cfg.ImportDir, nil)
	importService.Start()

	log.Printf("✓ Import service started (import dir %s)", cfg.ImportDir)

	restServer := rest.NewServer(cfg.RESTPort, rest.Dependencies{
		Health:      db,
		Games:       gameService,
		Picks:       pickService,
		Users:       userService,
		Imports:     importService,
		Auth:        tokens.Middleware,
		CORSOrigins: cfg.CORSOrigins,
	})
	go func() {
		log.Printf("Starting REST API server on port %s", cfg.RESTPort)
		if err := restServer.Start(); err != nil {
			log.Printf("REST server error: %v", err)
		}
	}()

	log.Printf("✓ %s v%s started successfully", serviceName, serviceVersion)
	log.Printf("  REST API: http://0.0.0.0:%s", cfg.RESTPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("Shutting down %s gracefully...", serviceName)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := importService.Shutdown(shutdownCtx); err != nil {
		log.Printf("Import service shutdown error: %v", err)
	}

	log.Printf("%s stopped", serviceName)
}
