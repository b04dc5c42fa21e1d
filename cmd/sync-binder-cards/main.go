// sync-binder-cards refreshes every card referenced by a binder from the
// Pokemon TCG API and updates the local card cache.
//
// Usage: go run ./cmd/sync-binder-cards [-dry-run] [-concurrency=5]
//
// Database and catalog settings come from the same environment variables as
// the server (DB_DRIVER, DB_PATH, DATABASE_URL, POKEMON_TCG_API_KEY, ...).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/binder-tracker/backend/internal/config"
	"github.com/codyseavey/binder-tracker/backend/internal/database"
	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "List the cards that would be refreshed without calling the catalog")
	concurrency := flag.Int("concurrency", 0, "Maximum concurrent catalog requests (default RESOLVE_CONCURRENCY)")
	flag.Parse()

	cfg := config.Load()
	cfg.ConfigureLogging()
	if *concurrency > 0 {
		cfg.ResolveConcurrency = *concurrency
	}

	db, err := database.Initialize(database.Options{
		Driver:      cfg.DBDriver,
		Path:        cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	binders := services.NewBinderService(db)

	if *dryRun {
		ids, err := binders.DistinctCardIDs(ctx)
		if err != nil {
			log.Fatalf("Failed to list binder cards: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Printf("\n%d cards would be refreshed\n", len(ids))
		return
	}

	catalog := services.NewPokemonTCGService(services.PokemonTCGOptions{
		BaseURL:   cfg.CatalogBaseURL,
		APIKey:    cfg.CatalogAPIKey,
		Timeout:   cfg.CatalogTimeout,
		RateLimit: cfg.CatalogRateLimit,
	})

	policy := services.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.ResolveMaxAttempts
	policy.BaseDelay = cfg.ResolveBaseDelay

	resolver := services.NewCardResolver(services.NewCardStore(db), catalog, policy, cfg.ResolveConcurrency)
	worker := services.NewCardSyncWorker(resolver, binders, services.CardSyncOptions{
		Concurrency: cfg.ResolveConcurrency,
	})

	result, err := worker.SyncBinderCards(ctx)
	if err != nil {
		log.Fatalf("Sync failed after %d cards: %v", result.Synced, err)
	}

	fmt.Printf("Synced %d cards, %d failed\n", result.Synced, result.Failed)
	for _, fc := range worker.GetStatus().FailedCards {
		fmt.Printf("  - %s: %s\n", fc.CardID, fc.Reason)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
