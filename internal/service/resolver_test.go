package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pricealert_go/internal/domain"

	"github.com/shopspring/decimal"
)

type scriptedSource struct {
	name  string
	price decimal.Decimal
	err   error

	mu    sync.Mutex
	calls int
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) FetchPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.price, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type scriptedNames struct {
	name string
	err  error
}

func (s scriptedNames) FetchName(context.Context, string) (string, error) {
	return s.name, s.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func priceSource(name string, price float64) *scriptedSource {
	return &scriptedSource{name: name, price: decimal.NewFromFloat(price)}
}

func failingSource(name string) *scriptedSource {
	return &scriptedSource{name: name, err: fmt.Errorf("%s: down", name)}
}

func TestResolverFallback(t *testing.T) {
	t.Run("first answering source wins", func(t *testing.T) {
		dead := failingSource("dead")
		alive := priceSource("alive", 50000)
		r := NewResolver([]domain.PriceSource{dead, alive}, nil, nil, nil)
		r.sleep = noSleep

		quote, err := r.Resolve(context.Background(), "BTC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Source != "alive" || !quote.Price.Equal(decimal.NewFromInt(50000)) {
			t.Errorf("unexpected quote: %+v", quote)
		}
		if quote.AssetType != domain.AssetCrypto {
			t.Errorf("expected crypto, got %s", quote.AssetType)
		}
	})

	t.Run("falls back to stock when crypto declines", func(t *testing.T) {
		crypto := failingSource("crypto")
		stock := priceSource("stock", 189.95)
		r := NewResolver([]domain.PriceSource{crypto}, stock, nil, nil)
		r.sleep = noSleep

		quote, err := r.Resolve(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.AssetType != domain.AssetStock {
			t.Errorf("expected stock, got %s", quote.AssetType)
		}
	})

	t.Run("zero prices are declined", func(t *testing.T) {
		zero := priceSource("zero", 0)
		good := priceSource("good", 1.5)
		r := NewResolver([]domain.PriceSource{zero, good}, nil, nil, nil)
		r.sleep = noSleep
		r.shuffle = func(int, func(int, int)) {} // keep declared order

		quote, err := r.Resolve(context.Background(), "X")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.Source != "good" {
			t.Errorf("expected zero price skipped, got %s", quote.Source)
		}
	})

	t.Run("no source is ErrNoPrice", func(t *testing.T) {
		r := NewResolver([]domain.PriceSource{failingSource("a"), failingSource("b")}, failingSource("s"), nil, nil)
		r.sleep = noSleep

		_, err := r.Resolve(context.Background(), "NOPE")
		if !errors.Is(err, domain.ErrNoPrice) {
			t.Fatalf("expected ErrNoPrice, got %v", err)
		}
	})
}

func TestResolverRetryPass(t *testing.T) {
	// The source fails on the first pass and answers on the second.
	flaky := &scriptedSource{name: "flaky", err: fmt.Errorf("temporarily down")}
	r := NewResolver([]domain.PriceSource{flaky}, nil, nil, nil)
	slept := 0
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept++
		flaky.mu.Lock()
		flaky.err = nil
		flaky.price = decimal.NewFromInt(42)
		flaky.mu.Unlock()
		return nil
	}

	quote, err := r.Resolve(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(42)) {
		t.Errorf("expected second-pass price, got %s", quote.Price)
	}
	if slept != 1 {
		t.Errorf("expected one retry delay, got %d", slept)
	}
	if flaky.callCount() != 2 {
		t.Errorf("expected two attempts, got %d", flaky.callCount())
	}
}

func TestResolverShuffles(t *testing.T) {
	// With the real shuffle, repeated resolutions should not always start
	// with the same source. Both sources answer, so the winner reveals who
	// was probed first.
	a := priceSource("a", 1)
	b := priceSource("b", 2)
	r := NewResolver([]domain.PriceSource{a, b}, nil, nil, nil)
	r.sleep = noSleep

	winners := make(map[string]bool)
	for i := 0; i < 200 && len(winners) < 2; i++ {
		quote, err := r.Resolve(context.Background(), "X")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		winners[quote.Source] = true
	}
	if len(winners) != 2 {
		t.Errorf("expected both sources to win at least once, got %v", winners)
	}
}

func TestResolverStockTypeCache(t *testing.T) {
	crypto := failingSource("crypto")
	stock := priceSource("stock", 189.95)
	r := NewResolver([]domain.PriceSource{crypto}, stock, nil, nil)
	r.sleep = noSleep

	if _, err := r.Resolve(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	cryptoCallsAfterFirst := crypto.callCount()

	// The cached stock hint probes the stock source first, so the crypto
	// side is not touched again.
	if _, err := r.Resolve(context.Background(), "AAPL"); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if crypto.callCount() != cryptoCallsAfterFirst {
		t.Errorf("expected crypto sources skipped for cached stock, got %d extra calls",
			crypto.callCount()-cryptoCallsAfterFirst)
	}
}

func TestValidateSymbol(t *testing.T) {
	t.Run("returns crypto name from name source", func(t *testing.T) {
		src := priceSource("src", 50000)
		r := NewResolver([]domain.PriceSource{src}, nil, scriptedNames{name: "Bitcoin"}, nil)
		r.sleep = noSleep

		quote, name, err := r.ValidateSymbol(context.Background(), "btc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.AssetType != domain.AssetCrypto || name != "Bitcoin" {
			t.Errorf("unexpected result: %s %q", quote.AssetType, name)
		}
		if !quote.Price.Equal(decimal.NewFromInt(50000)) {
			t.Errorf("expected the resolved quote returned, got %s", quote.Price)
		}
	})

	t.Run("falls back to symbol when name lookup fails", func(t *testing.T) {
		src := priceSource("src", 50000)
		r := NewResolver([]domain.PriceSource{src}, nil, scriptedNames{err: fmt.Errorf("down")}, nil)
		r.sleep = noSleep

		_, name, err := r.ValidateSymbol(context.Background(), "btc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "BTC" {
			t.Errorf("expected fallback to symbol, got %q", name)
		}
	})

	t.Run("stock symbols use the stock name source", func(t *testing.T) {
		crypto := failingSource("crypto")
		stock := priceSource("stock", 189.95)
		r := NewResolver([]domain.PriceSource{crypto}, stock, scriptedNames{name: "wrong"}, scriptedNames{name: "Apple Inc."})
		r.sleep = noSleep

		quote, name, err := r.ValidateSymbol(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.AssetType != domain.AssetStock || name != "Apple Inc." {
			t.Errorf("unexpected result: %s %q", quote.AssetType, name)
		}
	})

	t.Run("unpriceable symbol is ErrInvalidSymbol", func(t *testing.T) {
		r := NewResolver([]domain.PriceSource{failingSource("a")}, nil, nil, nil)
		r.sleep = noSleep

		_, _, err := r.ValidateSymbol(context.Background(), "NOPE")
		if !errors.Is(err, domain.ErrInvalidSymbol) {
			t.Fatalf("expected ErrInvalidSymbol, got %v", err)
		}
	})

	t.Run("malformed ticker rejected before any fetch", func(t *testing.T) {
		src := priceSource("src", 1)
		r := NewResolver([]domain.PriceSource{src}, nil, nil, nil)
		r.sleep = noSleep

		if _, _, err := r.ValidateSymbol(context.Background(), "no way"); !errors.Is(err, domain.ErrInvalidSymbol) {
			t.Fatalf("expected ErrInvalidSymbol, got %v", err)
		}
		if src.callCount() != 0 {
			t.Errorf("expected no fetches for malformed ticker, got %d", src.callCount())
		}
	})
}
