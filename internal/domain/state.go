package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationState tracks the last price at which a notification was
// confirmed sent for one (user, symbol) pair. The first observed price is
// stored here without sending, seeding the comparison baseline.
type NotificationState struct {
	LastPrice      decimal.Decimal `json:"last_price"`
	LastNotifiedAt time.Time       `json:"last_notified_at"`
}

// StateSnapshot maps user ID -> symbol -> NotificationState.
type StateSnapshot map[string]map[string]NotificationState

// Get looks up the state for a (user, symbol) pair.
func (s StateSnapshot) Get(userID, symbol string) (NotificationState, bool) {
	states, ok := s[userID]
	if !ok {
		return NotificationState{}, false
	}
	st, ok := states[symbol]
	return st, ok
}

// Put stores the state for a (user, symbol) pair.
func (s StateSnapshot) Put(userID, symbol string, st NotificationState) {
	states, ok := s[userID]
	if !ok {
		states = make(map[string]NotificationState)
		s[userID] = states
	}
	states[symbol] = st
}

// Clone returns a deep copy of the snapshot.
func (s StateSnapshot) Clone() StateSnapshot {
	out := make(StateSnapshot, len(s))
	for user, states := range s {
		cp := make(map[string]NotificationState, len(states))
		for sym, st := range states {
			cp[sym] = st
		}
		out[user] = cp
	}
	return out
}

// Direction of a price move relative to the last notified price.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// ChangeFraction computes abs(current - last) / last.
// A zero last price yields zero; callers treat such state as unseeded.
func ChangeFraction(current, last decimal.Decimal) decimal.Decimal {
	if last.IsZero() {
		return decimal.Zero
	}
	return current.Sub(last).Div(last).Abs()
}

// ChangeDirection reports whether the move from last to current is up or
// down. The direction only affects presentation, never whether an alert
// fires.
func ChangeDirection(current, last decimal.Decimal) Direction {
	if current.GreaterThanOrEqual(last) {
		return DirectionUp
	}
	return DirectionDown
}
