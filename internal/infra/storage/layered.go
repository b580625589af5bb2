package storage

import (
	"context"
	"errors"
	"log/slog"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/infra"
)

// LayeredStore keeps the database authoritative and mirrors every write to
// the file store. On load, an unreachable or empty database falls back to
// the file copy so a wiped DB does not silently drop the watch lists.
type LayeredStore struct {
	db   *SQLiteStore
	file *FileStore
}

// NewLayeredStore combines the two stores. db may be nil when the database
// could not be opened at startup; everything then runs on the file store.
func NewLayeredStore(db *SQLiteStore, file *FileStore) *LayeredStore {
	return &LayeredStore{db: db, file: file}
}

// LoadConfig prefers the database and falls back to the file copy. When
// both fail the bot starts with an empty snapshot instead of crashing.
func (l *LayeredStore) LoadConfig(ctx context.Context) (domain.ConfigSnapshot, error) {
	if l.db != nil {
		snapshot, err := l.db.LoadConfig(ctx)
		if err == nil && len(snapshot) > 0 {
			return snapshot, nil
		}
		if err != nil {
			slog.Error("⚠️ config load from database failed, trying file copy", slog.Any("error", err))
		}
	}

	snapshot, err := l.file.LoadConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return make(domain.ConfigSnapshot), nil
		}
		slog.Error("config load from file failed, starting empty", slog.Any("error", err))
		return make(domain.ConfigSnapshot), nil
	}

	// Rehydrate the database from the file copy when it came up empty.
	if l.db != nil && len(snapshot) > 0 {
		if err := l.db.SaveConfig(ctx, snapshot); err != nil {
			slog.Error("config rehydration into database failed", slog.Any("error", err))
		}
	}
	return snapshot, nil
}

// UpsertWatch writes to the database and mirrors to the file. A database
// failure downgrades to file-only with a loud log, never a lost write.
func (l *LayeredStore) UpsertWatch(ctx context.Context, userID string, asset domain.TrackedAsset) error {
	var dbErr error
	if l.db != nil {
		dbErr = l.db.UpsertWatch(ctx, userID, asset)
		if dbErr != nil {
			infra.GlobalMetrics.RecordStoreFallback()
			slog.Error("⚠️ watch upsert failed in database, file copy only",
				slog.String("user", userID),
				slog.String("symbol", asset.Symbol),
				slog.Any("error", dbErr))
		}
	}

	if err := l.file.UpsertWatch(ctx, userID, asset); err != nil {
		if dbErr != nil {
			return err
		}
		slog.Warn("watch upsert failed in file copy", slog.Any("error", err))
	}
	return nil
}

// RemoveWatch removes from both stores.
func (l *LayeredStore) RemoveWatch(ctx context.Context, userID, symbol string) error {
	var dbErr error
	if l.db != nil {
		dbErr = l.db.RemoveWatch(ctx, userID, symbol)
		if dbErr != nil {
			infra.GlobalMetrics.RecordStoreFallback()
			slog.Error("⚠️ watch remove failed in database, file copy only",
				slog.String("user", userID),
				slog.String("symbol", symbol),
				slog.Any("error", dbErr))
		}
	}

	if err := l.file.RemoveWatch(ctx, userID, symbol); err != nil {
		if dbErr != nil {
			return err
		}
		slog.Warn("watch remove failed in file copy", slog.Any("error", err))
	}
	return nil
}

// SaveConfig writes the full snapshot to both stores.
func (l *LayeredStore) SaveConfig(ctx context.Context, snapshot domain.ConfigSnapshot) error {
	var dbErr error
	if l.db != nil {
		if dbErr = l.db.SaveConfig(ctx, snapshot); dbErr != nil {
			infra.GlobalMetrics.RecordStoreFallback()
			slog.Error("⚠️ config save failed in database, file copy only", slog.Any("error", dbErr))
		}
	}
	if err := l.file.SaveConfig(ctx, snapshot); err != nil {
		if dbErr != nil {
			return err
		}
		slog.Warn("config save failed in file copy", slog.Any("error", err))
	}
	return nil
}

// LoadState mirrors the LoadConfig fallback order.
func (l *LayeredStore) LoadState(ctx context.Context) (domain.StateSnapshot, error) {
	if l.db != nil {
		snapshot, err := l.db.LoadState(ctx)
		if err == nil && len(snapshot) > 0 {
			return snapshot, nil
		}
		if err != nil {
			slog.Error("⚠️ state load from database failed, trying file copy", slog.Any("error", err))
		}
	}

	snapshot, err := l.file.LoadState(ctx)
	if err != nil {
		slog.Error("state load from file failed, starting empty", slog.Any("error", err))
		return make(domain.StateSnapshot), nil
	}

	if l.db != nil && len(snapshot) > 0 {
		if err := l.db.SaveState(ctx, snapshot); err != nil {
			slog.Error("state rehydration into database failed", slog.Any("error", err))
		}
	}
	return snapshot, nil
}

// PutState writes one state entry to both stores.
func (l *LayeredStore) PutState(ctx context.Context, userID, symbol string, st domain.NotificationState) error {
	var dbErr error
	if l.db != nil {
		dbErr = l.db.PutState(ctx, userID, symbol, st)
		if dbErr != nil {
			infra.GlobalMetrics.RecordStoreFallback()
			slog.Error("⚠️ state put failed in database, file copy only",
				slog.String("user", userID),
				slog.String("symbol", symbol),
				slog.Any("error", dbErr))
		}
	}

	if err := l.file.PutState(ctx, userID, symbol, st); err != nil {
		if dbErr != nil {
			return err
		}
		slog.Warn("state put failed in file copy", slog.Any("error", err))
	}
	return nil
}

// SaveState writes the full snapshot to both stores.
func (l *LayeredStore) SaveState(ctx context.Context, snapshot domain.StateSnapshot) error {
	var dbErr error
	if l.db != nil {
		if dbErr = l.db.SaveState(ctx, snapshot); dbErr != nil {
			infra.GlobalMetrics.RecordStoreFallback()
			slog.Error("⚠️ state save failed in database, file copy only", slog.Any("error", dbErr))
		}
	}
	if err := l.file.SaveState(ctx, snapshot); err != nil {
		if dbErr != nil {
			return err
		}
		slog.Warn("state save failed in file copy", slog.Any("error", err))
	}
	return nil
}
