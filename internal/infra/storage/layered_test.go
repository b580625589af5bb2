package storage

import (
	"context"
	"path/filepath"
	"testing"

	"pricealert_go/internal/domain"
)

func TestLayeredStoreFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("empty database falls back to file copy", func(t *testing.T) {
		dir := t.TempDir()
		file := NewFileStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "state.json"), "admin")
		if err := file.UpsertWatch(ctx, "42", testAsset(t, "BTC", "0.05")); err != nil {
			t.Fatalf("seed file failed: %v", err)
		}

		db := newTestSQLiteStore(t)
		layered := NewLayeredStore(db, file)

		snapshot, err := layered.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := snapshot["42"]["BTC"]; !ok {
			t.Fatal("expected file entries after fallback")
		}

		// The fallback rehydrates the database for the next load.
		fromDB, err := db.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("db load failed: %v", err)
		}
		if _, ok := fromDB["42"]["BTC"]; !ok {
			t.Error("expected database rehydrated from file copy")
		}
	})

	t.Run("nil database runs file only", func(t *testing.T) {
		dir := t.TempDir()
		file := NewFileStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "state.json"), "admin")
		layered := NewLayeredStore(nil, file)

		if err := layered.UpsertWatch(ctx, "42", testAsset(t, "ETH", "0.02")); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		snapshot, err := layered.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := snapshot["42"]["ETH"]; !ok {
			t.Error("expected entry via file-only path")
		}
	})

	t.Run("database is authoritative when populated", func(t *testing.T) {
		dir := t.TempDir()
		file := NewFileStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "state.json"), "admin")
		db := newTestSQLiteStore(t)
		layered := NewLayeredStore(db, file)

		if err := layered.UpsertWatch(ctx, "42", testAsset(t, "BTC", "0.05")); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		// Poison the file copy with an extra entry; the DB wins on load.
		if err := file.UpsertWatch(ctx, "99", testAsset(t, "DOGE", "0.5")); err != nil {
			t.Fatalf("file upsert failed: %v", err)
		}

		snapshot, err := layered.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := snapshot["99"]; ok {
			t.Error("expected database to be authoritative")
		}
		if _, ok := snapshot["42"]["BTC"]; !ok {
			t.Error("expected database entry present")
		}
	})

	t.Run("both empty loads empty snapshot", func(t *testing.T) {
		dir := t.TempDir()
		file := NewFileStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "state.json"), "admin")
		layered := NewLayeredStore(newTestSQLiteStore(t), file)

		snapshot, err := layered.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(snapshot) != 0 {
			t.Errorf("expected empty snapshot, got %d users", len(snapshot))
		}
	})

	t.Run("state writes mirror to both stores", func(t *testing.T) {
		dir := t.TempDir()
		file := NewFileStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "state.json"), "admin")
		db := newTestSQLiteStore(t)
		layered := NewLayeredStore(db, file)

		st := domain.NotificationState{LastPrice: testAsset(t, "BTC", "0.05").Threshold}
		if err := layered.PutState(ctx, "42", "BTC", st); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		fromDB, _ := db.LoadState(ctx)
		if _, ok := fromDB.Get("42", "BTC"); !ok {
			t.Error("expected state in database")
		}
		fromFile, _ := file.LoadState(ctx)
		if _, ok := fromFile.Get("42", "BTC"); !ok {
			t.Error("expected state mirrored to file")
		}
	})
}
