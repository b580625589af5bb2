package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

const defaultBinanceRestURL = "https://api.binance.com"

// binanceTickerResponse is the /api/v3/ticker/price shape. Error payloads
// carry code and msg instead.
type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

// BinanceRest fetches crypto prices from the Binance spot ticker endpoint,
// quoting against USDT.
type BinanceRest struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinanceRest creates a Binance REST adapter. An empty baseURL uses the
// public endpoint.
func NewBinanceRest(baseURL string) *BinanceRest {
	if baseURL == "" {
		baseURL = defaultBinanceRestURL
	}
	return &BinanceRest{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (b *BinanceRest) Name() string { return "binance" }

// FetchPrice returns the USDT price for a crypto symbol.
func (b *BinanceRest) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", symbol+"USDT")

	body, err := getJSON(ctx, b.httpClient, b.baseURL+"/api/v3/ticker/price?"+q.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance %s: %w", symbol, err)
	}

	var resp binanceTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance %s: %w", symbol, err)
	}
	if resp.Code != 0 {
		return decimal.Zero, fmt.Errorf("binance %s: %s", symbol, resp.Msg)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("binance %s: price field missing", symbol)
	}

	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance %s: %w", symbol, err)
	}
	return price, nil
}
