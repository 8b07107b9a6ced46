package main

import (
	"context"
	"os"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/application"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	marketplacehttp "github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/http"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/memory"
	pgrepo "github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/repository/postgres"
	marketplacews "github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/websocket"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/pricing"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/registry"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/config"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/db/migrations"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/httpserver"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/keymutex"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	sharedws "github.com/cristianortiz/marketplaceEngine/internal/shared/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting marketplaceEngine server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// persistence: postgres when DB_HOST is configured, otherwise the
	// in-memory wiring (useful for local runs and demos)
	var (
		pool     *pgxpool.Pool
		listings domain.ListingRepository
		bids     domain.BidRepository
	)
	if os.Getenv("DB_HOST") != "" {
		log.Info("Running database migrations...")
		if err := migrations.RunMigrations(); err != nil {
			log.Fatal("Database migration failed", zap.Error(err))
		}
		log.Info("Database migrations completed successfully.")

		pool, err = db.GetPostgresDBPool(ctx)
		if err != nil {
			log.Fatal("Database connection failed", zap.Error(err))
		}
		defer pool.Close()

		listings = pgrepo.NewListingRepository(pool)
		bids = pgrepo.NewBidRepository(pool)
	} else {
		log.Warn("DB_HOST not set, using in-memory repositories")
		memListings := memory.NewListingRepository()
		listings = memListings
		bids = memory.NewBidRepository(memListings)
	}

	// external collaborators: in-memory stand-ins; production deployments
	// swap these for chain-backed clients at this one spot
	assets := memory.NewAssetRegistry()
	ledger := memory.NewLedger()

	reg := registry.New(cfg.RateCacheTTL)
	converter := pricing.NewConverter(reg)

	hub := sharedws.NewHub()
	go hub.Run(ctx)
	events := marketplacews.NewBroadcaster(hub)

	locks := keymutex.New()
	custody := application.NewCustodian(assets, cfg.OperatorID)
	settlement := application.NewSettlement(ledger, cfg.OperatorID, cfg.TreasuryID, cfg.FeeRateBps)

	service := application.NewMarketplaceService(
		application.NewListAssetUseCase(listings, custody, settlement, locks, pool, events),
		application.NewBuyAssetUseCase(listings, custody, settlement, converter, ledger, cfg.OperatorID, locks, pool, events),
		application.NewUnlistAssetUseCase(listings, custody, locks, pool, events),
		application.NewPlaceBidUseCase(listings, bids, reg, ledger, cfg.OperatorID, locks, pool, events),
		application.NewCancelBidUseCase(listings, bids, ledger, cfg.OperatorID, locks, pool, events),
		application.NewAcceptBidUseCase(listings, bids, custody, settlement, locks, pool, events),
		application.NewGetListingStateUseCase(listings),
	)

	server := httpserver.NewServer()
	marketplacehttp.NewHandler(service, reg, cfg.OperatorID).RegisterRoutes(server.App())
	marketplacews.NewSubscriptionHandler(service, hub).RegisterRoutes(server.App(), ctx)

	if err := server.Start(cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}
