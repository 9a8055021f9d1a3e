package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cbwis-backend/internal/inventory"
	"github.com/angelmondragon/cbwis-backend/internal/ledger"
	"github.com/angelmondragon/cbwis-backend/pkg/config"
	"github.com/angelmondragon/cbwis-backend/pkg/db"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
	"github.com/angelmondragon/cbwis-backend/pkg/migrate"
	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
)

func main() {
	dir := flag.String("dir", "seed-data", "directory holding inventory.json and transactions.json")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "seed"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	im, err := newImporter(dbClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to build importer", err)
		os.Exit(1)
	}

	summary, err := im.Run(ctx, *dir)
	if err != nil {
		logg.Error(ctx, "seed import failed", err)
		os.Exit(1)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"items_created":        summary.ItemsCreated,
		"items_skipped":        summary.ItemsSkipped,
		"transactions_applied": summary.TransactionsApplied,
		"transactions_skipped": summary.TransactionsSkipped,
	}), fmt.Sprintf("seed import finished from %s", *dir))
}

func newImporter(dbClient *db.Client, logg *logger.Logger) (*importer, error) {
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:         dbClient,
		Repository: ledger.NewRepository(dbClient.DB()),
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}
	itemRepo := inventory.NewRepository(dbClient.DB())
	inventoryService, err := inventory.NewService(itemRepo, dbClient, ledgerService, emitter, logg)
	if err != nil {
		return nil, err
	}
	return &importer{
		inventory: inventoryService,
		ledger:    ledgerService,
		items:     itemRepo,
		logg:      logg,
	}, nil
}
