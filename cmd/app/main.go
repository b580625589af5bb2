package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricealert_go/internal/app"
	"pricealert_go/internal/engine"
	"pricealert_go/internal/infra/telegram"
	"pricealert_go/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	// Credentials usually arrive via .env in development.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bootstrap.Stream != nil {
		if err := bootstrap.Stream.Connect(ctx); err != nil {
			slog.Error("Failed to start Binance stream", slog.Any("error", err))
		} else {
			defer bootstrap.Stream.Disconnect()
			slog.Info("✅ Binance stream worker started")
		}
	}

	resolver := service.NewResolver(
		bootstrap.CryptoSources,
		bootstrap.StockSource,
		bootstrap.CryptoNames,
		bootstrap.StockNames,
	)

	bot := telegram.NewClient(cfg.Telegram.BotToken, "")
	alertEngine := engine.New(bot, bootstrap.Store)

	scheduler := service.NewScheduler(
		resolver,
		alertEngine,
		bootstrap.Store,
		bootstrap.Store,
		time.Duration(cfg.Alerts.CheckIntervalSec)*time.Second,
		time.Duration(cfg.Alerts.SymbolPauseMS)*time.Millisecond,
	)

	handler := telegram.NewHandler(scheduler.Inbox(), resolver, cfg.Alerts.DefaultThreshold)
	poller := telegram.NewPoller(bot, handler, cfg.Telegram.PollTimeoutSec)
	go poller.Run(ctx)

	slog.Info("✨ Price alert bot operational. Press Ctrl+C to exit.",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version))

	if err := scheduler.Run(ctx); err != nil {
		slog.Error("❌ Scheduler failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("👋 Shutting down gracefully...")
}
