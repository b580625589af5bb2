// Package storage persists watch configuration and notification state.
// The SQLite store is authoritative; a JSON file store backs it up so the
// bot survives a broken database with at most one cycle of noise.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pricealert_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SchemaVersion is written to the meta table on every save. Loads of an
// older version go through migration before the snapshot is returned.
const SchemaVersion = "2"

const schemaVersionKey = "schema_version"

// SQLiteStore implements ConfigStore and StateStore on a single SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database and migrates the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.WatchEntry{}, &domain.AlertStateEntry{}, &domain.SchemaMeta{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.writeSchemaVersion(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) writeSchemaVersion() error {
	meta := domain.SchemaMeta{
		Key:       schemaVersionKey,
		Value:     SchemaVersion,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&meta).Error
}

// LoadConfig reads every watch row into a snapshot. Rows with unparseable
// thresholds are skipped rather than failing the whole load.
func (s *SQLiteStore) LoadConfig(ctx context.Context) (domain.ConfigSnapshot, error) {
	var entries []domain.WatchEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	snapshot := make(domain.ConfigSnapshot)
	for _, e := range entries {
		threshold, err := decimal.NewFromString(e.Threshold)
		if err != nil || !threshold.IsPositive() {
			continue
		}
		snapshot.Upsert(e.UserID, domain.TrackedAsset{
			Symbol:      e.Symbol,
			DisplayName: e.DisplayName,
			AssetType:   domain.AssetType(e.AssetType),
			Threshold:   threshold,
		})
	}
	return snapshot, nil
}

// UpsertWatch writes one watch row keyed by (user, symbol).
func (s *SQLiteStore) UpsertWatch(ctx context.Context, userID string, asset domain.TrackedAsset) error {
	entry := domain.WatchEntry{
		UserID:      userID,
		Symbol:      asset.Symbol,
		DisplayName: asset.DisplayName,
		AssetType:   string(asset.AssetType),
		Threshold:   asset.Threshold.String(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return fmt.Errorf("upsert watch %s/%s: %w", userID, asset.Symbol, err)
	}
	return nil
}

// RemoveWatch deletes one watch row and its alert state.
func (s *SQLiteStore) RemoveWatch(ctx context.Context, userID, symbol string) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&domain.WatchEntry{}).Error; err != nil {
		return fmt.Errorf("remove watch %s/%s: %w", userID, symbol, err)
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&domain.AlertStateEntry{}).Error; err != nil {
		return fmt.Errorf("remove state %s/%s: %w", userID, symbol, err)
	}
	return nil
}

// SaveConfig replaces the full watch table with the snapshot, in one
// transaction. Used for rehydration, not for routine mutations.
func (s *SQLiteStore) SaveConfig(ctx context.Context, snapshot domain.ConfigSnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.WatchEntry{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for userID, wl := range snapshot {
			for _, asset := range wl {
				entry := domain.WatchEntry{
					UserID:      userID,
					Symbol:      asset.Symbol,
					DisplayName: asset.DisplayName,
					AssetType:   string(asset.AssetType),
					Threshold:   asset.Threshold.String(),
					UpdatedAt:   now,
				}
				if err := tx.Save(&entry).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// LoadState reads every alert-state row into a snapshot.
func (s *SQLiteStore) LoadState(ctx context.Context) (domain.StateSnapshot, error) {
	var entries []domain.AlertStateEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	snapshot := make(domain.StateSnapshot)
	for _, e := range entries {
		price, err := decimal.NewFromString(e.LastPrice)
		if err != nil {
			continue
		}
		snapshot.Put(e.UserID, e.Symbol, domain.NotificationState{
			LastPrice:      price,
			LastNotifiedAt: e.LastNotifiedAt,
		})
	}
	return snapshot, nil
}

// PutState writes one alert-state row keyed by (user, symbol).
func (s *SQLiteStore) PutState(ctx context.Context, userID, symbol string, st domain.NotificationState) error {
	entry := domain.AlertStateEntry{
		UserID:         userID,
		Symbol:         symbol,
		LastPrice:      st.LastPrice.String(),
		LastNotifiedAt: st.LastNotifiedAt,
		UpdatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return fmt.Errorf("put state %s/%s: %w", userID, symbol, err)
	}
	return nil
}

// SaveState replaces the full alert-state table with the snapshot.
func (s *SQLiteStore) SaveState(ctx context.Context, snapshot domain.StateSnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.AlertStateEntry{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for userID, states := range snapshot {
			for symbol, st := range states {
				entry := domain.AlertStateEntry{
					UserID:         userID,
					Symbol:         symbol,
					LastPrice:      st.LastPrice.String(),
					LastNotifiedAt: st.LastNotifiedAt,
					UpdatedAt:      now,
				}
				if err := tx.Save(&entry).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Meta reads one metadata value. Not found is not an error.
func (s *SQLiteStore) Meta(ctx context.Context, key string) (string, error) {
	var meta domain.SchemaMeta
	err := s.db.WithContext(ctx).First(&meta, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return meta.Value, nil
}
