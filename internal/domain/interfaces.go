package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is one successfully resolved price.
type Quote struct {
	Price     decimal.Decimal
	AssetType AssetType
	Source    string
}

// PriceSource is a single external price-lookup API. Implementations treat
// every failure mode (network error, non-200, malformed payload, missing
// field) as "no price" and return an error.
type PriceSource interface {
	Name() string
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// NameSource recovers a human-readable display name for a ticker. Used only
// at add time; callers fall back to the uppercased symbol on failure.
type NameSource interface {
	FetchName(ctx context.Context, symbol string) (string, error)
}

// Messenger is the narrow outbound capability of the chat platform:
// deliver one formatted message to one recipient.
type Messenger interface {
	Send(ctx context.Context, chatID, text string) error
}

// ConfigStore persists the per-user watch configuration. Mutations are
// keyed per entry so concurrent writers cannot lose each other's updates.
type ConfigStore interface {
	LoadConfig(ctx context.Context) (ConfigSnapshot, error)
	UpsertWatch(ctx context.Context, userID string, asset TrackedAsset) error
	RemoveWatch(ctx context.Context, userID, symbol string) error
	SaveConfig(ctx context.Context, snapshot ConfigSnapshot) error
}

// StateStore persists the per-user last-notified prices with the same
// keyed contract as ConfigStore.
type StateStore interface {
	LoadState(ctx context.Context) (StateSnapshot, error)
	PutState(ctx context.Context, userID, symbol string, st NotificationState) error
	SaveState(ctx context.Context, snapshot StateSnapshot) error
}
