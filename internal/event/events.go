// Package event defines the mutation messages handed to the scheduler
// inbox. Command handlers never touch the watch configuration directly;
// they post one of these and wait on the reply channel, so the scheduler
// goroutine stays the only writer.
package event

import (
	"pricealert_go/internal/domain"
)

// Mutation is implemented by every inbox message.
type Mutation interface {
	mutation()
}

// UpsertResult reports what an upsert changed.
type UpsertResult struct {
	Created bool
	Asset   domain.TrackedAsset
	Err     error
}

// WatchUpsert adds or replaces one tracked asset for a user.
type WatchUpsert struct {
	UserID string
	Asset  domain.TrackedAsset
	Reply  chan UpsertResult
}

func (WatchUpsert) mutation() {}

// RemoveResult reports whether a watch entry existed.
type RemoveResult struct {
	Removed bool
	Err     error
}

// WatchRemove drops one tracked asset for a user.
type WatchRemove struct {
	UserID string
	Symbol string
	Reply  chan RemoveResult
}

func (WatchRemove) mutation() {}

// ListResult carries a copy of one user's watch list.
type ListResult struct {
	Watches domain.WatchList
}

// WatchListQuery reads a user's current watch list. The copy in the reply
// is the caller's to keep.
type WatchListQuery struct {
	UserID string
	Reply  chan ListResult
}

func (WatchListQuery) mutation() {}
