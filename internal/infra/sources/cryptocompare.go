package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

const defaultCryptoCompareURL = "https://min-api.cryptocompare.com"

// cryptoCompareResponse covers both the success shape {"USD": 123.45} and
// the error shape {"Response":"Error","Message":"..."}.
type cryptoCompareResponse struct {
	USD      *json.Number `json:"USD"`
	Response string       `json:"Response"`
	Message  string       `json:"Message"`
}

// CryptoCompare fetches crypto prices from the CryptoCompare single-price
// endpoint. The API key is optional for low request volumes.
type CryptoCompare struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCryptoCompare creates a CryptoCompare adapter. An empty baseURL uses
// the public endpoint.
func NewCryptoCompare(baseURL, apiKey string) *CryptoCompare {
	if baseURL == "" {
		baseURL = defaultCryptoCompareURL
	}
	return &CryptoCompare{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
	}
}

func (c *CryptoCompare) Name() string { return "cryptocompare" }

// FetchPrice returns the USD price for a crypto symbol.
func (c *CryptoCompare) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("fsym", symbol)
	q.Set("tsyms", "USD")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/data/price?"+q.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("cryptocompare %s: %w", symbol, err)
	}

	var resp cryptoCompareResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("cryptocompare %s: %w", symbol, err)
	}
	if resp.Response == "Error" {
		return decimal.Zero, fmt.Errorf("cryptocompare %s: %s", symbol, resp.Message)
	}
	if resp.USD == nil {
		return decimal.Zero, fmt.Errorf("cryptocompare %s: USD field missing", symbol)
	}

	price, err := decimal.NewFromString(resp.USD.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("cryptocompare %s: %w", symbol, err)
	}
	return price, nil
}
