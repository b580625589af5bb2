package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCryptoCompareFetchPrice(t *testing.T) {
	t.Run("returns price from USD field", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"USD": 50123.45}`))
		}))
		t.Cleanup(server.Close)

		src := NewCryptoCompare(server.URL, "test-key")
		price, err := src.FetchPrice(context.Background(), "BTC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if price.String() != "50123.45" {
			t.Errorf("expected 50123.45, got %s", price)
		}
		for _, want := range []string{"fsym=BTC", "tsyms=USD", "api_key=test-key"} {
			if !strings.Contains(gotQuery, want) {
				t.Errorf("query missing %q: %s", want, gotQuery)
			}
		}
	})

	t.Run("omits api_key when key is empty", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"USD": 1}`))
		}))
		t.Cleanup(server.Close)

		src := NewCryptoCompare(server.URL, "")
		if _, err := src.FetchPrice(context.Background(), "ETH"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(gotQuery, "api_key") {
			t.Errorf("expected no api_key in query, got %s", gotQuery)
		}
	})

	t.Run("surfaces API error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Response":"Error","Message":"market does not exist"}`))
		}))
		t.Cleanup(server.Close)

		src := NewCryptoCompare(server.URL, "")
		if _, err := src.FetchPrice(context.Background(), "NOPE"); err == nil {
			t.Fatal("expected error for API error payload")
		}
	})

	t.Run("errors on missing USD field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"EUR": 47000}`))
		}))
		t.Cleanup(server.Close)

		src := NewCryptoCompare(server.URL, "")
		if _, err := src.FetchPrice(context.Background(), "BTC"); err == nil {
			t.Fatal("expected error for missing USD field")
		}
	})

	t.Run("errors on non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		t.Cleanup(server.Close)

		src := NewCryptoCompare(server.URL, "")
		if _, err := src.FetchPrice(context.Background(), "BTC"); err == nil {
			t.Fatal("expected error for 429 status")
		}
	})
}

func TestCoinbaseFetchPrice(t *testing.T) {
	t.Run("returns spot amount", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`{"data":{"base":"BTC","currency":"USD","amount":"50250.10"}}`))
		}))
		t.Cleanup(server.Close)

		src := NewCoinbase(server.URL)
		price, err := src.FetchPrice(context.Background(), "BTC")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if price.String() != "50250.1" {
			t.Errorf("expected 50250.1, got %s", price)
		}
		if gotPath != "/v2/prices/BTC-USD/spot" {
			t.Errorf("unexpected path: %s", gotPath)
		}
	})

	t.Run("surfaces errors array", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"errors":[{"id":"not_found","message":"Invalid base currency"}]}`))
		}))
		t.Cleanup(server.Close)

		src := NewCoinbase(server.URL)
		if _, err := src.FetchPrice(context.Background(), "NOPE"); err == nil {
			t.Fatal("expected error for errors payload")
		}
	})

	t.Run("errors on empty amount", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"base":"BTC","currency":"USD"}}`))
		}))
		t.Cleanup(server.Close)

		src := NewCoinbase(server.URL)
		if _, err := src.FetchPrice(context.Background(), "BTC"); err == nil {
			t.Fatal("expected error for missing amount")
		}
	})
}

func TestBinanceRestFetchPrice(t *testing.T) {
	t.Run("quotes symbol against USDT", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"symbol":"ETHUSDT","price":"3010.55000000"}`))
		}))
		t.Cleanup(server.Close)

		src := NewBinanceRest(server.URL)
		price, err := src.FetchPrice(context.Background(), "ETH")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !price.Equal(mustDecimal(t, "3010.55")) {
			t.Errorf("expected 3010.55, got %s", price)
		}
		if gotQuery != "symbol=ETHUSDT" {
			t.Errorf("unexpected query: %s", gotQuery)
		}
	})

	t.Run("surfaces error code payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}))
		t.Cleanup(server.Close)

		src := NewBinanceRest(server.URL)
		if _, err := src.FetchPrice(context.Background(), "NOPE"); err == nil {
			t.Fatal("expected error for error code payload")
		}
	})
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}
