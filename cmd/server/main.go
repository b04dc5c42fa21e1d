package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/binder-tracker/backend/internal/api"
	"github.com/codyseavey/binder-tracker/backend/internal/config"
	"github.com/codyseavey/binder-tracker/backend/internal/database"
	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	db, err := database.Initialize(database.Options{
		Driver:      cfg.DBDriver,
		Path:        cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	catalog := services.NewPokemonTCGService(services.PokemonTCGOptions{
		BaseURL:   cfg.CatalogBaseURL,
		APIKey:    cfg.CatalogAPIKey,
		Timeout:   cfg.CatalogTimeout,
		RateLimit: cfg.CatalogRateLimit,
		CacheSize: cfg.AutocompleteCacheSz,
	})

	policy := services.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.ResolveMaxAttempts
	policy.BaseDelay = cfg.ResolveBaseDelay

	store := services.NewCardStore(db)
	resolver := services.NewCardResolver(store, catalog, policy, cfg.ResolveConcurrency)
	binders := services.NewBinderService(db)
	valuation := services.NewValuationService(resolver, binders)
	priceHistory := services.NewPriceHistoryService(resolver, 0)
	snapshotService := services.NewSnapshotService(db, binders, valuation, cfg.SnapshotHour)
	cardSync := services.NewCardSyncWorker(resolver, binders, services.CardSyncOptions{
		Interval:    cfg.CardSyncInterval,
		Staleness:   cfg.CardStaleness,
		Concurrency: cfg.ResolveConcurrency,
	})

	metrics.UpdateStoreMetrics(db)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start card sync worker in background with panic recovery
	go func() {
		runImmediately := cfg.SyncCardsOnStartup
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("PANIC in card sync worker: %v - restarting in 30 seconds", r)
					}
				}()
				cardSync.Start(ctx, runImmediately)
			}()
			runImmediately = false

			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
				log.Println("Card sync worker restarting after panic recovery...")
			}
		}
	}()

	go snapshotService.Start(ctx)

	router := api.SetupRouter(cfg, api.Services{
		Catalog:      catalog,
		Resolver:     resolver,
		PriceHistory: priceHistory,
		Binders:      binders,
		Valuation:    valuation,
		Snapshots:    snapshotService,
		CardSync:     cardSync,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
