// Package service holds the price resolver and the scheduler that owns the
// polling cycle.
package service

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	// attemptTimeout bounds one adapter call inside a resolution.
	attemptTimeout = 10 * time.Second

	// retryPassDelay separates the two passes over the source list.
	retryPassDelay = 2 * time.Second
)

// Resolver answers "what is SYMBOL worth right now" by querying the crypto
// sources in random order and falling back to the stock source. Shuffling
// spreads load across the free APIs and keeps no single one authoritative.
type Resolver struct {
	cryptoSources []domain.PriceSource
	stockSource   domain.PriceSource
	cryptoNames   domain.NameSource
	stockNames    domain.NameSource

	// typeCache remembers which family answered for a symbol so later
	// cycles and re-validations probe the right side first.
	typeCache   map[string]domain.AssetType
	typeCacheMu sync.RWMutex

	shuffle func(n int, swap func(i, j int))
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewResolver builds a resolver over the given adapters. stockSource and the
// name sources may be nil; the matching lookups then just fail over.
func NewResolver(cryptoSources []domain.PriceSource, stockSource domain.PriceSource, cryptoNames, stockNames domain.NameSource) *Resolver {
	return &Resolver{
		cryptoSources: cryptoSources,
		stockSource:   stockSource,
		cryptoNames:   cryptoNames,
		stockNames:    stockNames,
		typeCache:     make(map[string]domain.AssetType),
		shuffle:       rand.Shuffle,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Resolve returns the first price any source yields for the symbol. One full
// pass runs over the shuffled crypto sources then the stock source; if every
// source declines, a second identical pass runs after a short delay. No
// price after both passes is ErrNoPrice.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (domain.Quote, error) {
	hint := r.cachedType(symbol)

	for pass := 0; pass < 2; pass++ {
		if pass == 1 {
			if err := r.sleep(ctx, retryPassDelay); err != nil {
				return domain.Quote{}, err
			}
		}
		quote, err := r.resolveOnce(ctx, symbol, hint)
		if err == nil {
			r.rememberType(symbol, quote.AssetType)
			infra.GlobalMetrics.RecordPriceResolved()
			return quote, nil
		}
		if ctx.Err() != nil {
			return domain.Quote{}, ctx.Err()
		}
	}

	infra.GlobalMetrics.RecordResolveFailure()
	return domain.Quote{}, domain.ErrNoPrice
}

// resolveOnce runs one pass over the source families. A cached stock type
// probes the stock source first so known equities skip the crypto round.
func (r *Resolver) resolveOnce(ctx context.Context, symbol string, hint domain.AssetType) (domain.Quote, error) {
	if hint == domain.AssetStock {
		if quote, err := r.tryStock(ctx, symbol); err == nil {
			return quote, nil
		}
	}

	order := make([]int, len(r.cryptoSources))
	for i := range order {
		order[i] = i
	}
	r.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for _, idx := range order {
		src := r.cryptoSources[idx]
		price, err := r.fetchWithTimeout(ctx, src, symbol)
		if err != nil {
			slog.Debug("source declined",
				slog.String("source", src.Name()),
				slog.String("symbol", symbol),
				slog.Any("error", err))
			continue
		}
		if !price.IsPositive() {
			continue
		}
		return domain.Quote{Price: price, AssetType: domain.AssetCrypto, Source: src.Name()}, nil
	}

	if hint != domain.AssetStock {
		if quote, err := r.tryStock(ctx, symbol); err == nil {
			return quote, nil
		}
	}
	return domain.Quote{}, domain.ErrNoPrice
}

func (r *Resolver) tryStock(ctx context.Context, symbol string) (domain.Quote, error) {
	if r.stockSource == nil {
		return domain.Quote{}, domain.ErrNoPrice
	}
	price, err := r.fetchWithTimeout(ctx, r.stockSource, symbol)
	if err != nil {
		slog.Debug("stock source declined",
			slog.String("symbol", symbol),
			slog.Any("error", err))
		return domain.Quote{}, err
	}
	if !price.IsPositive() {
		return domain.Quote{}, domain.ErrNoPrice
	}
	return domain.Quote{Price: price, AssetType: domain.AssetStock, Source: r.stockSource.Name()}, nil
}

func (r *Resolver) fetchWithTimeout(ctx context.Context, src domain.PriceSource, symbol string) (decimal.Decimal, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return src.FetchPrice(attemptCtx, symbol)
}

// ValidateSymbol checks a symbol can be priced before it enters a watch
// list, returning the resolved quote and a display name. The display name
// comes from the matching name source and falls back to the symbol itself.
func (r *Resolver) ValidateSymbol(ctx context.Context, symbol string) (domain.Quote, string, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return domain.Quote{}, "", domain.ErrInvalidSymbol
	}

	quote, err := r.resolveOnce(ctx, sym, r.cachedType(sym))
	if err != nil {
		if ctx.Err() != nil {
			return domain.Quote{}, "", ctx.Err()
		}
		return domain.Quote{}, "", domain.ErrInvalidSymbol
	}
	r.rememberType(sym, quote.AssetType)

	name := sym
	names := r.cryptoNames
	if quote.AssetType == domain.AssetStock {
		names = r.stockNames
	}
	if names != nil {
		if n, err := names.FetchName(ctx, sym); err == nil && n != "" {
			name = n
		}
	}
	return quote, name, nil
}

func (r *Resolver) cachedType(symbol string) domain.AssetType {
	r.typeCacheMu.RLock()
	defer r.typeCacheMu.RUnlock()
	return r.typeCache[symbol]
}

func (r *Resolver) rememberType(symbol string, t domain.AssetType) {
	r.typeCacheMu.Lock()
	defer r.typeCacheMu.Unlock()
	r.typeCache[symbol] = t
}

