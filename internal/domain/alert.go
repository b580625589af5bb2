package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Alert is one threshold crossing ready to be delivered to a user.
// The ID ties log lines about a single delivery attempt together.
type Alert struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Symbol        string          `json:"symbol"`
	DisplayName   string          `json:"display_name"`
	Direction     Direction       `json:"direction"`
	ChangePct     decimal.Decimal `json:"change_pct"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	At            time.Time       `json:"at"`
}

// NewAlert builds an Alert for a threshold crossing. ChangePct is the
// relative move in percent, always positive; the sign of the move lives in
// Direction.
func NewAlert(userID string, asset TrackedAsset, current, previous decimal.Decimal, at time.Time) Alert {
	return Alert{
		ID:            uuid.NewString(),
		UserID:        userID,
		Symbol:        asset.Symbol,
		DisplayName:   asset.DisplayName,
		Direction:     ChangeDirection(current, previous),
		ChangePct:     ChangeFraction(current, previous).Mul(decimal.NewFromInt(100)),
		CurrentPrice:  current,
		PreviousPrice: previous,
		At:            at,
	}
}
