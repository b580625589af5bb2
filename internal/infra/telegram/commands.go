package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/event"
	"pricealert_go/internal/infra"

	"github.com/shopspring/decimal"
)

const replyTimeout = 5 * time.Second

// SymbolValidator probes whether a symbol is priceable before it is added,
// returning the resolved quote and a display name.
type SymbolValidator interface {
	ValidateSymbol(ctx context.Context, symbol string) (domain.Quote, string, error)
}

// Handler parses chat commands and turns them into inbox mutations. It never
// mutates watch configuration itself.
type Handler struct {
	inbox            chan<- event.Mutation
	validator        SymbolValidator
	defaultThreshold decimal.Decimal
}

// NewHandler wires the command surface to the scheduler inbox.
func NewHandler(inbox chan<- event.Mutation, validator SymbolValidator, defaultThreshold decimal.Decimal) *Handler {
	return &Handler{
		inbox:            inbox,
		validator:        validator,
		defaultThreshold: defaultThreshold,
	}
}

// Handle processes one command message and returns the reply text. Non-command
// text gets a pointer to /help.
func (h *Handler) Handle(ctx context.Context, userID, text string) string {
	infra.GlobalMetrics.RecordCommandHandled()

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return helpText
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i] // strip bot mention suffix in group chats
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		return startText
	case "/help":
		return helpText
	case "/list":
		return h.handleList(ctx, userID)
	case "/add":
		return h.handleAdd(ctx, userID, args)
	case "/remove":
		return h.handleRemove(ctx, userID, args)
	case "/threshold":
		return h.handleThreshold(ctx, userID, args)
	default:
		return "Unknown command. " + helpHint
	}
}

func (h *Handler) handleAdd(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /add SYMBOL [percent]\nExample: /add BTC 5"
	}

	symbol := domain.NormalizeSymbol(args[0])
	if symbol == "" {
		return fmt.Sprintf("⚠️ %q is not a valid ticker.", args[0])
	}

	threshold := h.defaultThreshold
	if len(args) == 2 {
		t, err := domain.ParseThresholdPercent(args[1])
		if err != nil {
			return fmt.Sprintf("⚠️ %q is not a valid percentage. Try /add %s 5", args[1], symbol)
		}
		threshold = t
	}

	quote, displayName, err := h.validator.ValidateSymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSymbol) {
			return fmt.Sprintf("⚠️ No price source knows %s. Check the ticker and try again.", symbol)
		}
		return fmt.Sprintf("⚠️ Could not verify %s right now. Try again in a minute.", symbol)
	}

	asset, err := domain.NewTrackedAsset(symbol, displayName, quote.AssetType, threshold)
	if err != nil {
		return fmt.Sprintf("⚠️ Could not add %s: %v", symbol, err)
	}

	reply := make(chan event.UpsertResult, 1)
	if !h.post(ctx, event.WatchUpsert{UserID: userID, Asset: asset, Reply: reply}) {
		return busyText
	}
	res, ok := await(ctx, reply)
	if !ok || res.Err != nil {
		return busyText
	}

	verb := "updated"
	if res.Created {
		verb = "added"
	}
	return fmt.Sprintf("✅ <b>%s</b> (%s) %s at ±%s%%.", asset.DisplayName, asset.Symbol, verb, formatPercent(asset.Threshold))
}

func (h *Handler) handleRemove(ctx context.Context, userID string, args []string) string {
	if len(args) != 1 {
		return "Usage: /remove SYMBOL"
	}
	symbol := domain.NormalizeSymbol(args[0])
	if symbol == "" {
		return fmt.Sprintf("⚠️ %q is not a valid ticker.", args[0])
	}

	reply := make(chan event.RemoveResult, 1)
	if !h.post(ctx, event.WatchRemove{UserID: userID, Symbol: symbol, Reply: reply}) {
		return busyText
	}
	res, ok := await(ctx, reply)
	if !ok {
		return busyText
	}
	if errors.Is(res.Err, domain.ErrUnknownSymbol) || !res.Removed {
		return fmt.Sprintf("You are not tracking %s.", symbol)
	}
	if res.Err != nil {
		return busyText
	}
	return fmt.Sprintf("🗑 <b>%s</b> removed.", symbol)
}

func (h *Handler) handleThreshold(ctx context.Context, userID string, args []string) string {
	if len(args) != 2 {
		return "Usage: /threshold SYMBOL percent\nExample: /threshold BTC 2.5"
	}
	symbol := domain.NormalizeSymbol(args[0])
	if symbol == "" {
		return fmt.Sprintf("⚠️ %q is not a valid ticker.", args[0])
	}
	threshold, err := domain.ParseThresholdPercent(args[1])
	if err != nil {
		return fmt.Sprintf("⚠️ %q is not a valid percentage.", args[1])
	}

	listReply := make(chan event.ListResult, 1)
	if !h.post(ctx, event.WatchListQuery{UserID: userID, Reply: listReply}) {
		return busyText
	}
	list, ok := await(ctx, listReply)
	if !ok {
		return busyText
	}
	asset, tracked := list.Watches[symbol]
	if !tracked {
		return fmt.Sprintf("You are not tracking %s. Add it first: /add %s", symbol, symbol)
	}

	asset.Threshold = threshold
	reply := make(chan event.UpsertResult, 1)
	if !h.post(ctx, event.WatchUpsert{UserID: userID, Asset: asset, Reply: reply}) {
		return busyText
	}
	res, ok := await(ctx, reply)
	if !ok || res.Err != nil {
		return busyText
	}
	return fmt.Sprintf("✅ <b>%s</b> threshold set to ±%s%%.", symbol, formatPercent(threshold))
}

func (h *Handler) handleList(ctx context.Context, userID string) string {
	reply := make(chan event.ListResult, 1)
	if !h.post(ctx, event.WatchListQuery{UserID: userID, Reply: reply}) {
		return busyText
	}
	res, ok := await(ctx, reply)
	if !ok {
		return busyText
	}
	if len(res.Watches) == 0 {
		return "Your watch list is empty. Add a symbol: /add BTC 5"
	}

	symbols := make([]string, 0, len(res.Watches))
	for sym := range res.Watches {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var b strings.Builder
	b.WriteString("📋 <b>Your watch list</b>\n")
	for _, sym := range symbols {
		asset := res.Watches[sym]
		icon := "🪙"
		if asset.AssetType == domain.AssetStock {
			icon = "📊"
		}
		fmt.Fprintf(&b, "%s %s (%s) ±%s%%\n", icon, asset.DisplayName, asset.Symbol, formatPercent(asset.Threshold))
	}
	return strings.TrimRight(b.String(), "\n")
}

// post hands a mutation to the scheduler inbox without blocking forever.
func (h *Handler) post(ctx context.Context, m event.Mutation) bool {
	select {
	case h.inbox <- m:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(replyTimeout):
		return false
	}
}

func await[T any](ctx context.Context, reply <-chan T) (T, bool) {
	var zero T
	select {
	case res := <-reply:
		return res, true
	case <-ctx.Done():
		return zero, false
	case <-time.After(replyTimeout):
		return zero, false
	}
}

func formatPercent(threshold decimal.Decimal) string {
	return threshold.Mul(decimal.NewFromInt(100)).String()
}

const startText = `👋 I watch crypto and stock prices and ping you when they move.

/add BTC 5 starts tracking Bitcoin with a 5% threshold.
` + helpHint

const helpHint = `Send /help for the full command list.`

const busyText = `⏳ The bot is busy right now. Try again in a few seconds.`

const helpText = `<b>Commands</b>
/add SYMBOL [percent] - track a symbol (default threshold applies without percent)
/remove SYMBOL - stop tracking a symbol
/threshold SYMBOL percent - change a symbol's alert threshold
/list - show your tracked symbols
/help - this message

Alerts fire when the price moves past your threshold relative to the last alerted price.`
