package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"pricealert_go/internal/domain"
)

const conflictBackoff = 10 * time.Second

// Poller long-polls getUpdates and feeds command messages to the handler.
type Poller struct {
	client     *Client
	handler    *Handler
	timeoutSec int
}

// NewPoller wires the update loop. timeoutSec is the server-side long-poll
// hold passed to getUpdates.
func NewPoller(client *Client, handler *Handler, timeoutSec int) *Poller {
	if timeoutSec <= 0 {
		timeoutSec = 50
	}
	return &Poller{
		client:     client,
		handler:    handler,
		timeoutSec: timeoutSec,
	}
}

// Run polls until the context is cancelled. A 409 from the API means a
// second instance owns the token; the loop logs it and keeps retrying so a
// stale instance shutting down hands polling back without a restart.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("📨 Telegram poller started", slog.Int("timeout_sec", p.timeoutSec))
	var offset int64

	for {
		select {
		case <-ctx.Done():
			slog.Info("Telegram poller stopped")
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne *domain.NetworkError
			if errors.As(err, &ne) && !domain.IsRetriable(err) {
				slog.Error("❌ polling stopped, credentials rejected", slog.Any("error", err))
				return
			}
			if errors.Is(err, domain.ErrConflict) {
				slog.Warn("another bot instance is polling, backing off", slog.Any("error", err))
			} else {
				slog.Error("getUpdates failed", slog.Any("error", err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(conflictBackoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatch(ctx, u)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	userID := strconv.FormatInt(msg.Chat.ID, 10)
	reply := p.handler.Handle(ctx, userID, msg.Text)
	if reply == "" {
		return
	}
	if err := p.client.Send(ctx, userID, reply); err != nil {
		slog.Error("command reply failed",
			slog.String("chat_id", userID),
			slog.Any("error", err))
	}
}
