// Package rincon talks to the El Rincón de Lola reservation API over plain
// request/response HTTP. The streaming endpoint is handled separately by
// internal/stream; this client only pulls snapshots.
package rincon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrAuthInvalid indicates the API rejected the bearer token (HTTP 401).
// Token refresh happens out of band, so callers treat this as a retryable
// skip rather than a fatal condition.
var ErrAuthInvalid = errors.New("authentication invalid")

// StatusError is returned for non-200 responses other than 401.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d", e.Endpoint, e.Code)
}

// Client issues authenticated snapshot requests against the reservation API.
type Client struct {
	host   string
	token  string
	httpc  *http.Client
	logger *zap.Logger
}

// NewClient creates a snapshot client for the given base host URL. A trailing
// slash on host is tolerated.
func NewClient(host, token string, logger *zap.Logger) *Client {
	return &Client{
		host:  strings.TrimRight(host, "/"),
		token: token,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.Named("rincon"),
	}
}

// Host returns the normalized base URL of the API.
func (c *Client) Host() string {
	return c.host
}

// Fetch issues GET {host}{endpoint} with bearer auth and decodes the JSON
// body into a Snapshot. The snapshot is fully decoded before being returned:
// on any failure the caller receives nil and its prior state stays intact.
func (c *Client) Fetch(ctx context.Context, endpoint string) (*Snapshot, error) {
	url := c.host + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrAuthInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	c.logger.Debug("Fetched snapshot",
		zap.String("endpoint", endpoint),
		zap.Bool("has_reservation", snap.HasReservation))

	return &snap, nil
}
