package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

const defaultYahooURL = "https://query1.finance.yahoo.com"

// yahooChartResponse is the v8 chart endpoint shape. Only the meta block is
// read; the candle arrays are ignored.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *json.Number `json:"regularMarketPrice"`
				ChartPreviousClose *json.Number `json:"chartPreviousClose"`
				Symbol             string       `json:"symbol"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooQuoteSummaryResponse is the v10 quoteSummary endpoint shape with the
// price module requested.
type yahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice struct {
					Raw *json.Number `json:"raw"`
				} `json:"regularMarketPrice"`
				ShortName string `json:"shortName"`
				LongName  string `json:"longName"`
			} `json:"price"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// yahooQuoteResponse is the v7 quote endpoint shape.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			RegularMarketPrice *json.Number `json:"regularMarketPrice"`
			ShortName          string       `json:"shortName"`
			LongName           string       `json:"longName"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

func extractChartPrice(body []byte) (decimal.Decimal, error) {
	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("empty result")
	}
	meta := resp.Chart.Result[0].Meta
	for _, n := range []*json.Number{meta.RegularMarketPrice, meta.ChartPreviousClose} {
		if n != nil {
			return decimal.NewFromString(n.String())
		}
	}
	return decimal.Zero, fmt.Errorf("no price field in meta")
}

func extractQuoteSummaryPrice(body []byte) (decimal.Decimal, error) {
	var resp yahooQuoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.QuoteSummary.Error != nil {
		return decimal.Zero, fmt.Errorf("%s: %s", resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return decimal.Zero, fmt.Errorf("empty result")
	}
	raw := resp.QuoteSummary.Result[0].Price.RegularMarketPrice.Raw
	if raw == nil {
		return decimal.Zero, fmt.Errorf("no price field")
	}
	return decimal.NewFromString(raw.String())
}

func extractQuotePrice(body []byte) (decimal.Decimal, error) {
	var resp yahooQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.QuoteResponse.Error != nil {
		return decimal.Zero, fmt.Errorf("%s: %s", resp.QuoteResponse.Error.Code, resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return decimal.Zero, fmt.Errorf("empty result")
	}
	n := resp.QuoteResponse.Result[0].RegularMarketPrice
	if n == nil {
		return decimal.Zero, fmt.Errorf("no price field")
	}
	return decimal.NewFromString(n.String())
}

// yahooEndpoint pairs a URL builder with the extractor for its payload shape.
type yahooEndpoint struct {
	name    string
	path    func(symbol string) string
	extract func(body []byte) (decimal.Decimal, error)
}

// Yahoo fetches stock quotes from the public Yahoo Finance endpoints. The
// three endpoints return differently shaped payloads, so each has its own
// extractor; they are tried in order until one yields a price.
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
	endpoints  []yahooEndpoint
}

// NewYahoo creates a Yahoo Finance adapter. An empty baseURL uses the public
// endpoint.
func NewYahoo(baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	y := &Yahoo{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
	y.endpoints = []yahooEndpoint{
		{
			name: "chart",
			path: func(symbol string) string {
				return "/v8/finance/chart/" + url.PathEscape(symbol) + "?interval=1d&range=1d"
			},
			extract: extractChartPrice,
		},
		{
			name: "quoteSummary",
			path: func(symbol string) string {
				return "/v10/finance/quoteSummary/" + url.PathEscape(symbol) + "?modules=price"
			},
			extract: extractQuoteSummaryPrice,
		},
		{
			name: "quote",
			path: func(symbol string) string {
				return "/v7/finance/quote?symbols=" + url.QueryEscape(symbol)
			},
			extract: extractQuotePrice,
		},
	}
	return y
}

func (y *Yahoo) Name() string { return "yahoo" }

// FetchPrice returns the regular-market price for a stock symbol, trying
// each endpoint in turn.
func (y *Yahoo) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var lastErr error
	for _, ep := range y.endpoints {
		body, err := getJSON(ctx, y.httpClient, y.baseURL+ep.path(symbol))
		if err != nil {
			lastErr = fmt.Errorf("yahoo %s %s: %w", ep.name, symbol, err)
			continue
		}
		price, err := ep.extract(body)
		if err != nil {
			lastErr = fmt.Errorf("yahoo %s %s: %w", ep.name, symbol, err)
			continue
		}
		return price, nil
	}
	return decimal.Zero, lastErr
}

// FetchName returns a display name for a stock symbol from the quote
// endpoint, preferring the short name.
func (y *Yahoo) FetchName(ctx context.Context, symbol string) (string, error) {
	body, err := getJSON(ctx, y.httpClient, y.baseURL+"/v7/finance/quote?symbols="+url.QueryEscape(symbol))
	if err != nil {
		return "", fmt.Errorf("yahoo name %s: %w", symbol, err)
	}

	var resp yahooQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("yahoo name %s: %w", symbol, err)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return "", fmt.Errorf("yahoo name %s: empty result", symbol)
	}
	r := resp.QuoteResponse.Result[0]
	if r.ShortName != "" {
		return r.ShortName, nil
	}
	if r.LongName != "" {
		return r.LongName, nil
	}
	return "", fmt.Errorf("yahoo name %s: no name fields", symbol)
}
