// Package hsm reads issuer entropy from the hardware entropy source.
package hsm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	ErrNoEntropy     = errors.New("no entropy available")
	ErrNotConfigured = errors.New("entropy source not configured")
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an entropy source URL was configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Entropy fetches the latest value published by the device.
func (c *Client) Entropy(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/entropy", nil)
	if err != nil {
		return "", fmt.Errorf("hsm: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("hsm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", ErrNoEntropy
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("hsm: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Entropy string `json:"entropy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("hsm: decode: %w", err)
	}

	if strings.TrimSpace(body.Entropy) == "" {
		return "", ErrNoEntropy
	}
	return body.Entropy, nil
}
