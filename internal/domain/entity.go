package domain

import (
	"time"
)

// WatchEntry is the persisted row behind one TrackedAsset.
// Threshold is stored as a decimal string to keep the exact value.
type WatchEntry struct {
	UserID      string    `gorm:"primaryKey" json:"user_id"`
	Symbol      string    `gorm:"primaryKey" json:"symbol"`
	DisplayName string    `json:"display_name"`
	AssetType   string    `json:"asset_type"`
	Threshold   string    `json:"threshold"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AlertStateEntry is the persisted row behind one NotificationState.
type AlertStateEntry struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Symbol         string    `gorm:"primaryKey" json:"symbol"`
	LastPrice      string    `json:"last_price"`
	LastNotifiedAt time.Time `json:"last_notified_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SchemaMeta carries store-level metadata (Key-Value), including the
// schema version written by every save.
type SchemaMeta struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
