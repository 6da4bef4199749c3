package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-import/internal/api/handlers"
	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/app"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/jobs/inmemory"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/session"
)

// sweepInterval is how often expired import sessions are removed.
const sweepInterval = 10 * time.Minute

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv(config.EnvPrefix+"_CONFIG"), "Path to a YAML config file")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
		workers    = flag.Int("workers", 2, "Concurrent extraction workers")
	)
	flag.Parse()

	loader := config.NewLoader()
	if *port != "" {
		loader.Viper().Set("server.port", *port)
	}
	cfg, err := loader.Load(*configPath)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()

	services, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	registry := session.NewRegistry(services.SessionDependencies(session.LogNotifier{Logger: log}))

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, *workers, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", *workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, handlers.ExtractJobHandler(registry)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	if ttl := cfg.Import.SessionTTL; ttl > 0 {
		go registry.RunSweeper(workerCtx, sweepInterval, ttl)
	}

	var uploader handlers.Uploader
	if services.GCS != nil {
		uploader = services.GCS
	}

	router := handlers.Router{
		Imports:      handlers.NewImportsHandler(registry, jobQueue, services.Presets, uploader, cfg.Storage.Bucket, cfg.Import.MaxBytes, log),
		Accounts:     handlers.NewAccountsHandler(services.Accounts, log),
		Categories:   handlers.NewCategoriesHandler(services.Categories, log),
		Presets:      handlers.NewPresetsHandler(services.Presets),
		Transactions: handlers.NewTransactionsHandler(services.Transactions, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}

	handler := middleware.Chain(router.Handler(),
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * 4,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Store.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight extractions finish before cancelling them.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
