// Package swapapi implements the swap-execution collaborator against the
// routing service's HTTP API. Signing and submission happen inside the
// service; this client only describes the swap.
package swapapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// Client submits swaps to the execution service. It implements
// domain.SwapExecutor.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a Client for the given service base URL. The API key may be
// empty when the service runs unauthenticated (dev setups).
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type swapRequest struct {
	FromToken string  `json:"from_token"`
	ToToken   string  `json:"to_token"`
	Amount    float64 `json:"amount"`
	Venue     string  `json:"venue"`
}

type swapResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Swap executes a single swap leg. The call is at-most-once: any error or
// rejection is returned to the caller and never retried here.
func (c *Client) Swap(ctx context.Context, fromToken, toToken string, amount float64, venue string) (domain.SwapResult, error) {
	body, err := json.Marshal(swapRequest{
		FromToken: fromToken,
		ToToken:   toToken,
		Amount:    amount,
		Venue:     venue,
	})
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("swapapi: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/swap", bytes.NewReader(body))
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("swapapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.SwapResult{}, fmt.Errorf("swapapi: swap %s->%s@%s: %w", fromToken, toToken, venue, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.SwapResult{}, fmt.Errorf("swapapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var sr swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return domain.SwapResult{}, fmt.Errorf("swapapi: decode response: %w", err)
	}
	if !sr.Success {
		return domain.SwapResult{}, fmt.Errorf("swapapi: swap rejected: %s", sr.Error)
	}
	return domain.SwapResult{Success: true, Signature: sr.Signature}, nil
}

// Compile-time interface check.
var _ domain.SwapExecutor = (*Client)(nil)
