// Package app wires configuration, logging, storage and the price sources
// into the running bot.
package app

import (
	"log/slog"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/infra"
	"pricealert_go/internal/infra/sources"
	"pricealert_go/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.LayeredStore

	// Stream is non-nil when the Binance WebSocket feed is enabled; the
	// caller owns its Connect/Disconnect lifecycle.
	Stream *sources.BinanceStream

	CryptoSources []domain.PriceSource
	StockSource   domain.PriceSource
	CryptoNames   domain.NameSource
	StockNames    domain.NameSource
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping price alert bot...")

	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// A broken database is survivable: the layered store runs on the file
	// copy until the next restart.
	db, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("⚠️ database unavailable, running on file storage only", slog.Any("error", err))
		db = nil
	} else {
		slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.DBPath))
	}

	file := storage.NewFileStore(cfg.Storage.ConfigFile, cfg.Storage.StateFile, cfg.Telegram.AdminChatID)
	b.Store = storage.NewLayeredStore(db, file)

	b.buildSources()
	return nil
}

// buildSources assembles the price source adapters from the config. The
// stream source joins the crypto pool: a cache hit costs nothing and a miss
// falls through to the REST adapters like any other decline.
func (b *Bootstrap) buildSources() {
	cfg := b.Config

	if cfg.Sources.Binance.StreamEnabled {
		b.Stream = sources.NewBinanceStream(cfg.Sources.Binance.WSURL)
		b.CryptoSources = append(b.CryptoSources, b.Stream)
	}

	b.CryptoSources = append(b.CryptoSources,
		sources.NewCryptoCompare(cfg.Sources.CryptoCompare.URL, cfg.Sources.CryptoCompare.APIKey),
		sources.NewCoinbase(cfg.Sources.Coinbase.URL),
		sources.NewBinanceRest(cfg.Sources.Binance.RestURL),
	)

	yahoo := sources.NewYahoo(cfg.Sources.Yahoo.URL)
	b.StockSource = yahoo
	b.StockNames = yahoo
	b.CryptoNames = sources.NewCoinGecko(cfg.Sources.CoinGecko.URL)

	slog.Info("✅ Price sources ready",
		slog.Int("crypto", len(b.CryptoSources)),
		slog.Bool("stream", b.Stream != nil))
}
