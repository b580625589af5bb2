package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultCoinGeckoURL = "https://api.coingecko.com"

// coinGeckoSearchResponse is the /api/v3/search shape, trimmed to the coin
// fields we read.
type coinGeckoSearchResponse struct {
	Coins []struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"coins"`
}

// CoinGecko resolves crypto display names via the public search endpoint.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGecko creates a CoinGecko adapter. An empty baseURL uses the public
// endpoint.
func NewCoinGecko(baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	return &CoinGecko{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// FetchName returns the display name of the coin whose ticker symbol matches
// exactly. Partial matches on other coins in the result are ignored.
func (c *CoinGecko) FetchName(ctx context.Context, symbol string) (string, error) {
	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/api/v3/search?query="+url.QueryEscape(symbol))
	if err != nil {
		return "", fmt.Errorf("coingecko name %s: %w", symbol, err)
	}

	var resp coinGeckoSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("coingecko name %s: %w", symbol, err)
	}

	for _, coin := range resp.Coins {
		if strings.EqualFold(coin.Symbol, symbol) && coin.Name != "" {
			return coin.Name, nil
		}
	}
	return "", fmt.Errorf("coingecko name %s: no exact symbol match", symbol)
}
