package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AssetType tells the resolver which source family answered for a symbol.
type AssetType string

const (
	AssetCrypto AssetType = "crypto"
	AssetStock  AssetType = "stock"
)

// TrackedAsset is one watched symbol inside a user's configuration.
// Threshold is a fraction (0.05 = 5%) and must be positive.
type TrackedAsset struct {
	Symbol      string          `json:"symbol"`
	DisplayName string          `json:"display_name"`
	AssetType   AssetType       `json:"asset_type"`
	Threshold   decimal.Decimal `json:"threshold"`
}

// NewTrackedAsset validates and builds a TrackedAsset.
// The symbol is normalized, the display name falls back to the symbol itself.
func NewTrackedAsset(symbol, displayName string, assetType AssetType, threshold decimal.Decimal) (TrackedAsset, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return TrackedAsset{}, ErrInvalidSymbol
	}
	if !threshold.IsPositive() {
		return TrackedAsset{}, ErrInvalidThreshold
	}
	if displayName == "" {
		displayName = sym
	}
	return TrackedAsset{
		Symbol:      sym,
		DisplayName: displayName,
		AssetType:   assetType,
		Threshold:   threshold,
	}, nil
}

// NormalizeSymbol uppercases a ticker and strips surrounding whitespace.
// Returns "" when the result is not a plausible ticker.
func NormalizeSymbol(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if len(sym) == 0 || len(sym) > 12 {
		return ""
	}
	for _, r := range sym {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return ""
		}
	}
	return sym
}

// ParseThresholdPercent parses a user-supplied percentage ("5", "5%", "0.5")
// into a fraction. The result must be positive.
func ParseThresholdPercent(arg string) (decimal.Decimal, error) {
	arg = strings.TrimSuffix(strings.TrimSpace(arg), "%")
	pct, err := decimal.NewFromString(arg)
	if err != nil {
		return decimal.Zero, ErrInvalidThreshold
	}
	threshold := pct.Div(decimal.NewFromInt(100))
	if !threshold.IsPositive() {
		return decimal.Zero, ErrInvalidThreshold
	}
	return threshold, nil
}

// WatchList maps symbol -> TrackedAsset for one user.
type WatchList map[string]TrackedAsset

// ConfigSnapshot maps user ID (numeric chat ID or @handle) -> WatchList.
type ConfigSnapshot map[string]WatchList

// Upsert inserts or replaces an asset in a user's watch list.
func (c ConfigSnapshot) Upsert(userID string, asset TrackedAsset) {
	wl, ok := c[userID]
	if !ok {
		wl = make(WatchList)
		c[userID] = wl
	}
	wl[asset.Symbol] = asset
}

// Remove deletes a symbol from a user's watch list.
// Returns false when the user does not track the symbol.
func (c ConfigSnapshot) Remove(userID, symbol string) bool {
	wl, ok := c[userID]
	if !ok {
		return false
	}
	if _, ok := wl[symbol]; !ok {
		return false
	}
	delete(wl, symbol)
	if len(wl) == 0 {
		delete(c, userID)
	}
	return true
}

// SymbolUnion returns the deduplicated set of symbols tracked by any user,
// each paired with the asset type cached at add time. Multiple users tracking
// the same symbol cost one resolution per cycle.
func (c ConfigSnapshot) SymbolUnion() map[string]AssetType {
	union := make(map[string]AssetType)
	for _, wl := range c {
		for sym, asset := range wl {
			if _, ok := union[sym]; !ok {
				union[sym] = asset.AssetType
			}
		}
	}
	return union
}

// Clone returns a deep copy so the owner can hand snapshots out for reads.
func (c ConfigSnapshot) Clone() ConfigSnapshot {
	out := make(ConfigSnapshot, len(c))
	for user, wl := range c {
		cp := make(WatchList, len(wl))
		for sym, asset := range wl {
			cp[sym] = asset
		}
		out[user] = cp
	}
	return out
}
