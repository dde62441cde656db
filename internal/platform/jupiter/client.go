// Package jupiter implements the price-quoting collaborator against a
// Jupiter-style HTTP quote API.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// Client queries quote prices over HTTP. It implements domain.PriceQuoter.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the given API base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// priceResponse is the quote API response body.
type priceResponse struct {
	Token     string  `json:"token"`
	BaseToken string  `json:"base_token"`
	Venue     string  `json:"venue"`
	Price     float64 `json:"price"`
}

// Price fetches the current price of token quoted in baseToken on the venue.
func (c *Client) Price(ctx context.Context, token, baseToken, venue string) (float64, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("base", baseToken)
	q.Set("venue", venue)
	endpoint := fmt.Sprintf("%s/v1/price?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("jupiter: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("jupiter: price %s/%s@%s: %w", token, baseToken, venue, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("jupiter: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("jupiter: decode response: %w", err)
	}
	if pr.Price <= 0 {
		return 0, fmt.Errorf("jupiter: non-positive price %f for %s/%s@%s", pr.Price, token, baseToken, venue)
	}
	return pr.Price, nil
}

// Compile-time interface check.
var _ domain.PriceQuoter = (*Client)(nil)
