// Package telegram is a thin client for the Telegram Bot API plus the
// command handling the bot exposes. Only the two methods the bot needs
// (sendMessage, getUpdates) are wrapped.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pricealert_go/internal/domain"
)

const apiBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bot API client for the given token. An empty apiURL
// uses the public endpoint.
func NewClient(token, apiURL string) *Client {
	if apiURL == "" {
		apiURL = apiBaseURL
	}
	return &Client{
		baseURL: fmt.Sprintf("%s/bot%s", apiURL, token),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// NormalizeChatID turns a bare channel handle into the @-prefixed form the
// Bot API expects. Numeric IDs and already-prefixed handles pass through.
func NormalizeChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" || strings.HasPrefix(chatID, "@") {
		return chatID
	}
	for _, r := range chatID {
		if (r < '0' || r > '9') && r != '-' {
			return "@" + chatID
		}
	}
	return chatID
}

// Send delivers an HTML-formatted message to a chat.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	payload := sendMessageRequest{
		ChatID:                NormalizeChatID(chatID),
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	_, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return fmt.Errorf("sendMessage to %s: %w", chatID, err)
	}
	return nil
}

// GetUpdates long-polls for updates past the given offset. timeoutSec is the
// server-side hold; the HTTP client timeout must exceed it.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message"},
	}
	result, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates decode: %w", err)
	}
	return updates, nil
}

// call posts one Bot API method and unwraps the response envelope. A 409
// means another getUpdates consumer holds the token; that maps to the
// conflict sentinel so callers can back off instead of failing hard.
func (c *Client) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError(method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewNetworkError(method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	if !envelope.OK {
		if resp.StatusCode == http.StatusConflict || envelope.ErrorCode == http.StatusConflict {
			return nil, fmt.Errorf("%s: %w", envelope.Description, domain.ErrConflict)
		}
		apiErr := fmt.Errorf("api error %d: %s", envelope.ErrorCode, envelope.Description)
		// 401 means the token is wrong; retrying will never help.
		if envelope.ErrorCode == http.StatusUnauthorized {
			return nil, domain.NewFatalNetworkError(method, apiErr)
		}
		return nil, apiErr
	}
	return envelope.Result, nil
}
