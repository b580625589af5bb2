package sources

import (
	"context"
	"fmt"
	"net/http"

	"encoding/json"

	"github.com/shopspring/decimal"
)

const defaultCoinbaseURL = "https://api.coinbase.com"

// coinbaseSpotResponse is the /v2/prices/{pair}/spot shape.
type coinbaseSpotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Coinbase fetches crypto spot prices from the public Coinbase data API.
type Coinbase struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinbase creates a Coinbase adapter. An empty baseURL uses the public
// endpoint.
func NewCoinbase(baseURL string) *Coinbase {
	if baseURL == "" {
		baseURL = defaultCoinbaseURL
	}
	return &Coinbase{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (c *Coinbase) Name() string { return "coinbase" }

// FetchPrice returns the USD spot price for a crypto symbol.
func (c *Coinbase) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	body, err := getJSON(ctx, c.httpClient, fmt.Sprintf("%s/v2/prices/%s-USD/spot", c.baseURL, symbol))
	if err != nil {
		return decimal.Zero, fmt.Errorf("coinbase %s: %w", symbol, err)
	}

	var resp coinbaseSpotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("coinbase %s: %w", symbol, err)
	}
	if len(resp.Errors) > 0 {
		return decimal.Zero, fmt.Errorf("coinbase %s: %s", symbol, resp.Errors[0].Message)
	}
	if resp.Data.Amount == "" {
		return decimal.Zero, fmt.Errorf("coinbase %s: amount field missing", symbol)
	}

	price, err := decimal.NewFromString(resp.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coinbase %s: %w", symbol, err)
	}
	return price, nil
}
