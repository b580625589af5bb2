package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pricealert_go/internal/domain"

	"github.com/shopspring/decimal"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return store
}

func testAsset(t *testing.T, symbol string, threshold string) domain.TrackedAsset {
	t.Helper()
	th, err := decimal.NewFromString(threshold)
	if err != nil {
		t.Fatalf("bad threshold literal: %v", err)
	}
	asset, err := domain.NewTrackedAsset(symbol, "", domain.AssetCrypto, th)
	if err != nil {
		t.Fatalf("bad test asset: %v", err)
	}
	return asset
}

func TestSQLiteConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	t.Run("empty store loads empty snapshot", func(t *testing.T) {
		snapshot, err := store.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snapshot) != 0 {
			t.Errorf("expected empty snapshot, got %d users", len(snapshot))
		}
	})

	t.Run("upsert then load", func(t *testing.T) {
		if err := store.UpsertWatch(ctx, "42", testAsset(t, "BTC", "0.05")); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if err := store.UpsertWatch(ctx, "43", testAsset(t, "BTC", "0.02")); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		snapshot, err := store.LoadConfig(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(snapshot) != 2 {
			t.Fatalf("expected 2 users, got %d", len(snapshot))
		}
		if !snapshot["42"]["BTC"].Threshold.Equal(decimal.NewFromFloat(0.05)) {
			t.Errorf("user 42 threshold wrong: %s", snapshot["42"]["BTC"].Threshold)
		}
		if !snapshot["43"]["BTC"].Threshold.Equal(decimal.NewFromFloat(0.02)) {
			t.Errorf("user 43 threshold wrong: %s", snapshot["43"]["BTC"].Threshold)
		}
	})

	t.Run("upsert replaces existing entry", func(t *testing.T) {
		if err := store.UpsertWatch(ctx, "42", testAsset(t, "BTC", "0.1")); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		snapshot, _ := store.LoadConfig(ctx)
		if !snapshot["42"]["BTC"].Threshold.Equal(decimal.NewFromFloat(0.1)) {
			t.Errorf("expected replaced threshold 0.1, got %s", snapshot["42"]["BTC"].Threshold)
		}
	})

	t.Run("remove drops watch and its state", func(t *testing.T) {
		if err := store.PutState(ctx, "42", "BTC", domain.NotificationState{
			LastPrice:      decimal.NewFromInt(50000),
			LastNotifiedAt: time.Now(),
		}); err != nil {
			t.Fatalf("put state failed: %v", err)
		}

		if err := store.RemoveWatch(ctx, "42", "BTC"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		snapshot, _ := store.LoadConfig(ctx)
		if _, ok := snapshot["42"]; ok {
			t.Error("expected user 42 gone from config")
		}
		state, _ := store.LoadState(ctx)
		if _, ok := state.Get("42", "BTC"); ok {
			t.Error("expected state gone with the watch")
		}
	})
}

func TestSQLiteStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.PutState(ctx, "42", "ETH", domain.NotificationState{
		LastPrice:      decimal.RequireFromString("3000.55"),
		LastNotifiedAt: at,
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	snapshot, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	st, ok := snapshot.Get("42", "ETH")
	if !ok {
		t.Fatal("expected state present")
	}
	if !st.LastPrice.Equal(decimal.RequireFromString("3000.55")) {
		t.Errorf("price mismatch: %s", st.LastPrice)
	}
	if !st.LastNotifiedAt.Equal(at) {
		t.Errorf("timestamp mismatch: %s", st.LastNotifiedAt)
	}
}

func TestSQLiteSaveReplacesTable(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.UpsertWatch(ctx, "42", testAsset(t, "BTC", "0.05")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	replacement := domain.ConfigSnapshot{}
	replacement.Upsert("99", testAsset(t, "ETH", "0.03"))
	if err := store.SaveConfig(ctx, replacement); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	snapshot, _ := store.LoadConfig(ctx)
	if _, ok := snapshot["42"]; ok {
		t.Error("expected old rows replaced")
	}
	if _, ok := snapshot["99"]["ETH"]; !ok {
		t.Error("expected replacement rows present")
	}
}

func TestSQLiteSchemaVersion(t *testing.T) {
	store := newTestSQLiteStore(t)
	version, err := store.Meta(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("meta read failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected schema version %s, got %s", SchemaVersion, version)
	}
}
