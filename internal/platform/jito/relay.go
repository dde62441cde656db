// Package jito implements the bundle-relay collaborator against a Jito-style
// block-engine HTTP endpoint.
package jito

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// Relay submits bundles to the block engine. It implements
// domain.BundleRelay.
type Relay struct {
	endpoint string
	client   *http.Client
}

// NewRelay creates a Relay for the given block-engine endpoint.
func NewRelay(endpoint string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// wireTx is one transaction slot in the relay payload. The program is sent
// base58-encoded; the payload base64.
type wireTx struct {
	Role    string `json:"role"`
	Program string `json:"program"`
	Venue   string `json:"venue,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type submitRequest struct {
	BundleID     string   `json:"bundle_id"`
	Kind         string   `json:"kind"`
	Transactions []wireTx `json:"transactions"`
}

type submitResponse struct {
	Accepted      bool   `json:"accepted"`
	RelayBundleID string `json:"relay_bundle_id"`
	Error         string `json:"error"`
}

// Submit posts the bundle to the relay and returns the relay-assigned bundle
// ID on acceptance. The caller treats any error as terminal for the bundle.
func (r *Relay) Submit(ctx context.Context, b domain.Bundle) (string, error) {
	req := submitRequest{
		BundleID:     b.ID,
		Kind:         string(b.Kind),
		Transactions: make([]wireTx, 0, len(b.Transactions)),
	}
	for _, tx := range b.Transactions {
		wt := wireTx{
			Role:    string(tx.Role),
			Program: tx.Program.String(),
			Venue:   tx.Venue,
		}
		if len(tx.Payload) > 0 {
			wt.Payload = base64.StdEncoding.EncodeToString(tx.Payload)
		}
		req.Transactions = append(req.Transactions, wt)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("jito: marshal bundle %s: %w", b.ID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/api/v1/bundles", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("jito: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("jito: submit bundle %s: %w", b.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("jito: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("jito: decode response: %w", err)
	}
	if !sr.Accepted {
		return "", fmt.Errorf("jito: bundle %s rejected: %s", b.ID, sr.Error)
	}
	return sr.RelayBundleID, nil
}

// Compile-time interface check.
var _ domain.BundleRelay = (*Relay)(nil)
