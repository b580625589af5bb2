// Package engine decides which notifications to send from one cycle's
// resolved prices and commits the baseline updates that follow.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/infra"

	"github.com/shopspring/decimal"
)

// Engine evaluates resolved prices against every user's thresholds. The
// baseline for a (user, symbol) pair only moves on a confirmed send, so a
// delivery failure leaves the alert armed for the next cycle.
type Engine struct {
	messenger domain.Messenger
	states    domain.StateStore
	now       func() time.Time
}

// New creates an engine committing through the given state store.
func New(messenger domain.Messenger, states domain.StateStore) *Engine {
	return &Engine{
		messenger: messenger,
		states:    states,
		now:       time.Now,
	}
}

// Evaluate walks every (user, symbol) pair the config tracks and applies the
// cycle's resolved prices. The state snapshot is mutated in place; each
// confirmed change is committed to the store immediately so a crash between
// pairs loses at most the pair in flight.
func (e *Engine) Evaluate(ctx context.Context, config domain.ConfigSnapshot, states domain.StateSnapshot, prices map[string]domain.Quote) {
	for _, userID := range sortedUsers(config) {
		wl := config[userID]
		for _, symbol := range sortedSymbols(wl) {
			quote, ok := prices[symbol]
			if !ok {
				continue // unresolved this cycle, state untouched
			}
			e.evaluatePair(ctx, userID, wl[symbol], quote, states)
		}
	}
}

func (e *Engine) evaluatePair(ctx context.Context, userID string, asset domain.TrackedAsset, quote domain.Quote, states domain.StateSnapshot) {
	prev, seeded := states.Get(userID, asset.Symbol)
	if !seeded || prev.LastPrice.IsZero() {
		e.seedBaseline(ctx, userID, asset.Symbol, quote.Price, states)
		return
	}

	change := domain.ChangeFraction(quote.Price, prev.LastPrice)
	if change.LessThan(asset.Threshold) {
		return
	}

	alert := domain.NewAlert(userID, asset, quote.Price, prev.LastPrice, e.now())
	text := FormatAlert(alert)

	if err := e.messenger.Send(ctx, userID, text); err != nil {
		infra.GlobalMetrics.RecordSendFailure()
		slog.Error("❌ alert delivery failed, baseline kept",
			slog.String("alert_id", alert.ID),
			slog.String("user", userID),
			slog.String("symbol", asset.Symbol),
			slog.Any("error", err))
		return
	}

	infra.GlobalMetrics.RecordAlertSent()
	slog.Info("📤 alert sent",
		slog.String("alert_id", alert.ID),
		slog.String("user", userID),
		slog.String("symbol", asset.Symbol),
		slog.String("price", quote.Price.String()),
		slog.String("change_pct", alert.ChangePct.StringFixed(2)),
		slog.String("source", quote.Source))

	next := domain.NotificationState{LastPrice: quote.Price, LastNotifiedAt: alert.At}
	states.Put(userID, asset.Symbol, next)
	if err := e.states.PutState(ctx, userID, asset.Symbol, next); err != nil {
		slog.Error("baseline commit failed after send",
			slog.String("user", userID),
			slog.String("symbol", asset.Symbol),
			slog.Any("error", err))
	}
}

// seedBaseline records the first observed price without notifying. The user
// already knows the current price; alerts only make sense for moves after
// tracking began.
func (e *Engine) seedBaseline(ctx context.Context, userID, symbol string, price decimal.Decimal, states domain.StateSnapshot) {
	st := domain.NotificationState{LastPrice: price, LastNotifiedAt: time.Time{}}
	states.Put(userID, symbol, st)
	infra.GlobalMetrics.RecordBaselineSeeded()
	slog.Info("🌱 baseline seeded",
		slog.String("user", userID),
		slog.String("symbol", symbol),
		slog.String("price", price.String()))

	if err := e.states.PutState(ctx, userID, symbol, st); err != nil {
		slog.Error("baseline commit failed",
			slog.String("user", userID),
			slog.String("symbol", symbol),
			slog.Any("error", err))
	}
}

// sortedUsers keeps evaluation order deterministic across cycles.
func sortedUsers(config domain.ConfigSnapshot) []string {
	users := make([]string, 0, len(config))
	for u := range config {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func sortedSymbols(wl domain.WatchList) []string {
	symbols := make([]string, 0, len(wl))
	for s := range wl {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
