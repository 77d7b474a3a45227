/**
 * @description
 * This file implements the HTTP client for the site's market API. The gas station
 * only needs three facts about a market: its on-chain address, its lifecycle status
 * and whether gas sponsorship is enabled for it.
 *
 * Key features:
 * - Market lookup by ID.
 * - Not-found responses map to ErrMarketNotFound; every other failure is returned
 *   as an error so the caller can fail closed.
 */

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is a market's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// ErrMarketNotFound is returned when the market API has no such market.
var ErrMarketNotFound = errors.New("market not found")

// Market is the subset of market data the gas station reads.
type Market struct {
	ID                    string `json:"id"`
	Address               string `json:"address"`
	Status                Status `json:"status"`
	GasSponsorshipEnabled bool   `json:"gasSponsorshipEnabled"`
	Question              string `json:"question,omitempty"`
}

// Active reports whether trading, and therefore sponsorship, is open.
func (m Market) Active() bool {
	return m.Status == StatusActive
}

// Provider looks up markets.
type Provider interface {
	GetMarket(ctx context.Context, marketID string) (Market, error)
}

// APIClient handles interactions with the market API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a new market API client.
func NewAPIClient(baseURL string, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// GetMarket fetches a market by its ID.
func (c *APIClient) GetMarket(ctx context.Context, marketID string) (Market, error) {
	apiURL := fmt.Sprintf("%s/markets/%s", c.baseURL, url.PathEscape(marketID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Market{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gas-station/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("failed to fetch market", zap.Error(err), zap.String("market_id", marketID))
		return Market{}, fmt.Errorf("failed to fetch market: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Market{}, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Market{}, fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	case resp.StatusCode != http.StatusOK:
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Error != "" || apiErr.Message != "") {
			return Market{}, fmt.Errorf("market API error: %s%s", apiErr.Error, apiErr.Message)
		}
		return Market{}, fmt.Errorf("market API returned status %d", resp.StatusCode)
	}

	var m Market
	if err := json.Unmarshal(body, &m); err != nil {
		return Market{}, fmt.Errorf("failed to parse market response: %w", err)
	}
	if m.ID == "" {
		m.ID = marketID
	}
	return m, nil
}

var _ Provider = (*APIClient)(nil)
