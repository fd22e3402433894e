package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/params"
	"github.com/vizvalabs/marketd/pkg/api"
	"github.com/vizvalabs/marketd/pkg/assets"
	"github.com/vizvalabs/marketd/pkg/crypto"
	"github.com/vizvalabs/marketd/pkg/market"
	"github.com/vizvalabs/marketd/pkg/storage"
	"github.com/vizvalabs/marketd/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	store, err := storage.Open(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Collaborators ----
	registry := assets.NewRegistry()
	bank := assets.NewBank()
	tokens := assets.NewTokenSet()

	lazyMintToken := common.HexToAddress(cfg.Market.LazyMintToken)
	if err := registry.CreateCollection(lazyMintToken, market.TokenERC721); err != nil {
		sugar.Fatalw("collection_setup_failed", "err", err)
	}

	// Wrapped-currency ledger for bid-voucher settlement. Bidders deposit
	// and approve the engine before their vouchers can be finalized.
	weth := assets.NewToken("WETH")
	tokens.Register(wethAddress(), weth)

	// ---- Engine ----
	engine := market.NewEngine(market.Options{
		ChainID:       cfg.Market.ChainID,
		Self:          common.HexToAddress(cfg.Market.Self),
		Operator:      common.HexToAddress(cfg.Market.Operator),
		LazyMintToken: lazyMintToken,
		Assets:        registry,
		Payments:      tokens,
		Native:        bank,
		Store:         store,
		Logger:        sugar,
	})

	// Initialization happens exactly once per data directory: reuse the
	// persisted parameters when present, otherwise record this node's.
	mcfg, found, err := store.LoadMarketConfig()
	if err != nil {
		sugar.Fatalw("market_config_load_failed", "err", err)
	}
	if !found {
		mcfg = storage.MarketConfig{
			CommissionBps: cfg.Market.CommissionBps,
			Treasury:      common.HexToAddress(cfg.Market.Treasury),
		}
		if err := store.SaveMarketConfig(mcfg); err != nil {
			sugar.Fatalw("market_config_save_failed", "err", err)
		}
	}
	if err := engine.Init(mcfg.CommissionBps, mcfg.Treasury); err != nil {
		sugar.Fatalw("market_init_failed", "err", err)
	}

	listings, err := store.LoadListings()
	if err != nil {
		sugar.Fatalw("listing_load_failed", "err", err)
	}
	if err := engine.Restore(listings); err != nil {
		sugar.Fatalw("listing_restore_failed", "err", err)
	}
	sugar.Infow("listings_restored", "count", len(listings))

	// ---- API ----
	server := api.NewServer(engine, sugar)
	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutting_down")
}

// wethAddress is the deterministic dev address of the wrapped-currency
// ledger.
func wethAddress() common.Address {
	return crypto.DeriveAddress("marketd/weth")
}
