// Package sources contains the price source adapters. Each adapter wraps
// one external API; any failure (network error, non-200 status, malformed
// payload, missing field) surfaces as an error the resolver treats as
// "no price" before moving on to the next adapter.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricealert_go/internal/infra"
)

const (
	// fetchTimeout bounds a single adapter attempt.
	fetchTimeout = 10 * time.Second

	// maxBodySize caps how much of an upstream response is read.
	maxBodySize = 1 << 20
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: fetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}
}

// getJSON performs a GET with the shared browser-like User-Agent and
// returns the response body on a 200, an error otherwise.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}
