package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pricealert_go/internal/domain"

	"github.com/shopspring/decimal"
)

// fileSchemaVersion mirrors SchemaVersion for the JSON files. Files without
// a version field are treated as the legacy single-user layout.
const fileSchemaVersion = 2

type configFile struct {
	Version int                              `json:"version"`
	Users   map[string]map[string]assetEntry `json:"users"`
}

type assetEntry struct {
	DisplayName string `json:"display_name"`
	AssetType   string `json:"asset_type"`
	Threshold   string `json:"threshold"`
}

type stateFile struct {
	Version int                              `json:"version"`
	Users   map[string]map[string]stateEntry `json:"users"`
}

type stateEntry struct {
	LastPrice      string    `json:"last_price"`
	LastNotifiedAt time.Time `json:"last_notified_at"`
}

// legacyStateEntry is the pre-versioning layout: a flat symbol map owned by
// one implicit user.
type legacyStateEntry struct {
	LastNotificationPrice float64 `json:"last_notification_price"`
	LastNotificationTime  string  `json:"last_notification_time"`
}

// FileStore implements ConfigStore and StateStore on two JSON files. Writes
// go through a temp file and rename so a crash never leaves a torn file.
type FileStore struct {
	configPath string
	statePath  string

	// legacyUser owns entries migrated from files predating multi-user
	// layouts. Usually the admin chat ID.
	legacyUser string
}

// NewFileStore creates a file-backed store. The files need not exist yet.
func NewFileStore(configPath, statePath, legacyUser string) *FileStore {
	return &FileStore{
		configPath: configPath,
		statePath:  statePath,
		legacyUser: legacyUser,
	}
}

// LoadConfig reads the config file. A missing file yields ErrConfigNotFound
// so the caller can distinguish "fresh install" from a broken file.
func (f *FileStore) LoadConfig(ctx context.Context) (domain.ConfigSnapshot, error) {
	raw, err := os.ReadFile(f.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file configFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	if file.Version == 0 {
		return f.migrateLegacyConfig(ctx, raw)
	}

	snapshot := make(domain.ConfigSnapshot)
	for userID, assets := range file.Users {
		for symbol, e := range assets {
			threshold, err := decimal.NewFromString(e.Threshold)
			if err != nil || !threshold.IsPositive() {
				continue
			}
			snapshot.Upsert(userID, domain.TrackedAsset{
				Symbol:      symbol,
				DisplayName: e.DisplayName,
				AssetType:   domain.AssetType(e.AssetType),
				Threshold:   threshold,
			})
		}
	}
	return snapshot, nil
}

// migrateLegacyConfig lifts the old flat symbol->threshold layout into the
// versioned multi-user shape, parking everything under the legacy user. The
// migrated form is persisted right away so the migration runs once, not on
// every start.
func (f *FileStore) migrateLegacyConfig(ctx context.Context, raw []byte) (domain.ConfigSnapshot, error) {
	var legacy map[string]float64
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy config file: %w", err)
	}

	snapshot := make(domain.ConfigSnapshot)
	for symbol, threshold := range legacy {
		sym := domain.NormalizeSymbol(symbol)
		t := decimal.NewFromFloat(threshold)
		if sym == "" || !t.IsPositive() {
			continue
		}
		snapshot.Upsert(f.legacyUser, domain.TrackedAsset{
			Symbol:      sym,
			DisplayName: sym,
			AssetType:   domain.AssetCrypto,
			Threshold:   t,
		})
	}

	if err := f.SaveConfig(ctx, snapshot); err != nil {
		slog.Warn("could not rewrite migrated config file",
			slog.String("path", f.configPath),
			slog.Any("error", err))
	}
	return snapshot, nil
}

// UpsertWatch rewrites the config file with one entry changed.
func (f *FileStore) UpsertWatch(ctx context.Context, userID string, asset domain.TrackedAsset) error {
	snapshot, err := f.LoadConfig(ctx)
	if err != nil && !errors.Is(err, domain.ErrConfigNotFound) {
		return err
	}
	if snapshot == nil {
		snapshot = make(domain.ConfigSnapshot)
	}
	snapshot.Upsert(userID, asset)
	return f.SaveConfig(ctx, snapshot)
}

// RemoveWatch rewrites the config file with one entry dropped. The symbol's
// notification state goes with it, same as the database side, so a later
// re-add starts from a fresh baseline.
func (f *FileStore) RemoveWatch(ctx context.Context, userID, symbol string) error {
	snapshot, err := f.LoadConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return nil
		}
		return err
	}
	snapshot.Remove(userID, symbol)
	if err := f.SaveConfig(ctx, snapshot); err != nil {
		return err
	}
	return f.removeState(ctx, userID, symbol)
}

func (f *FileStore) removeState(ctx context.Context, userID, symbol string) error {
	states, err := f.LoadState(ctx)
	if err != nil {
		return err
	}
	userStates, ok := states[userID]
	if !ok {
		return nil
	}
	if _, ok := userStates[symbol]; !ok {
		return nil
	}
	delete(userStates, symbol)
	if len(userStates) == 0 {
		delete(states, userID)
	}
	return f.SaveState(ctx, states)
}

// SaveConfig writes the whole snapshot in the versioned layout.
func (f *FileStore) SaveConfig(_ context.Context, snapshot domain.ConfigSnapshot) error {
	file := configFile{
		Version: fileSchemaVersion,
		Users:   make(map[string]map[string]assetEntry, len(snapshot)),
	}
	for userID, wl := range snapshot {
		assets := make(map[string]assetEntry, len(wl))
		for symbol, asset := range wl {
			assets[symbol] = assetEntry{
				DisplayName: asset.DisplayName,
				AssetType:   string(asset.AssetType),
				Threshold:   asset.Threshold.String(),
			}
		}
		file.Users[userID] = assets
	}
	return writeJSONAtomic(f.configPath, file)
}

// LoadState reads the state file. A missing file is an empty snapshot: state
// is rebuildable, so absence is normal.
func (f *FileStore) LoadState(ctx context.Context) (domain.StateSnapshot, error) {
	raw, err := os.ReadFile(f.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return make(domain.StateSnapshot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var file stateFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if file.Version == 0 {
		return f.migrateLegacyState(ctx, raw)
	}

	snapshot := make(domain.StateSnapshot)
	for userID, states := range file.Users {
		for symbol, e := range states {
			price, err := decimal.NewFromString(e.LastPrice)
			if err != nil {
				continue
			}
			snapshot.Put(userID, symbol, domain.NotificationState{
				LastPrice:      price,
				LastNotifiedAt: e.LastNotifiedAt,
			})
		}
	}
	return snapshot, nil
}

func (f *FileStore) migrateLegacyState(ctx context.Context, raw []byte) (domain.StateSnapshot, error) {
	var legacy map[string]legacyStateEntry
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy state file: %w", err)
	}

	snapshot := make(domain.StateSnapshot)
	for symbol, e := range legacy {
		sym := domain.NormalizeSymbol(symbol)
		if sym == "" || e.LastNotificationPrice <= 0 {
			continue
		}
		at, err := time.Parse(time.RFC3339, e.LastNotificationTime)
		if err != nil {
			at = time.Time{}
		}
		snapshot.Put(f.legacyUser, sym, domain.NotificationState{
			LastPrice:      decimal.NewFromFloat(e.LastNotificationPrice),
			LastNotifiedAt: at,
		})
	}

	if err := f.SaveState(ctx, snapshot); err != nil {
		slog.Warn("could not rewrite migrated state file",
			slog.String("path", f.statePath),
			slog.Any("error", err))
	}
	return snapshot, nil
}

// PutState rewrites the state file with one entry changed.
func (f *FileStore) PutState(ctx context.Context, userID, symbol string, st domain.NotificationState) error {
	snapshot, err := f.LoadState(ctx)
	if err != nil {
		return err
	}
	snapshot.Put(userID, symbol, st)
	return f.SaveState(ctx, snapshot)
}

// SaveState writes the whole snapshot in the versioned layout.
func (f *FileStore) SaveState(_ context.Context, snapshot domain.StateSnapshot) error {
	file := stateFile{
		Version: fileSchemaVersion,
		Users:   make(map[string]map[string]stateEntry, len(snapshot)),
	}
	for userID, states := range snapshot {
		entries := make(map[string]stateEntry, len(states))
		for symbol, st := range states {
			entries[symbol] = stateEntry{
				LastPrice:      st.LastPrice.String(),
				LastNotifiedAt: st.LastNotifiedAt,
			}
		}
		file.Users[userID] = entries
	}
	return writeJSONAtomic(f.statePath, file)
}

// writeJSONAtomic marshals v and replaces path via temp file and rename.
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
