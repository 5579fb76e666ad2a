// Package wix reads DAO treasury parameters from the Wix Data API. The daily
// market-making and buyback budgets are data items edited by the DAO's
// operations team; this client is the only component that fetches them.
package wix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// DefaultBaseURL is the Wix Data API v2 items root.
const DefaultBaseURL = "https://www.wixapis.com/wix-data/v2/items"

// Config holds the credentials and item identifiers for the Wix client.
type Config struct {
	BaseURL      string
	APIKey       string
	AccountID    string
	SiteID       string
	CollectionID string // e.g. "ExchangeRate"
	BudgetItemID string // data item holding the daily budget
}

// Client fetches data items from the Wix Data API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// itemResponse is the payload of GET /items/{id}.
type itemResponse struct {
	DataItem struct {
		ID   string         `json:"id"`
		Data map[string]any `json:"data"`
	} `json:"dataItem"`
}

// NewClient creates a Wix Data client. An empty BaseURL selects production.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("wix: api key is required")
	}
	if cfg.AccountID == "" && cfg.SiteID == "" {
		return nil, fmt.Errorf("wix: either account id or site id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// DailyBudget fetches the configured budget item and returns its
// "exchangeRate" field as a decimal USD amount. It implements
// domain.BudgetSource.
func (c *Client) DailyBudget(ctx context.Context) (decimal.Decimal, error) {
	item, err := c.GetItem(ctx, c.cfg.BudgetItemID)
	if err != nil {
		return decimal.Zero, err
	}

	raw, ok := item["exchangeRate"]
	if !ok {
		return decimal.Zero, fmt.Errorf("wix: item %s has no exchangeRate field: %w", c.cfg.BudgetItemID, domain.ErrNotFound)
	}

	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("wix: parse budget %q: %w", v, err)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("wix: parse budget %q: %w", v, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("wix: budget field has unexpected type %T", raw)
	}
}

// GetItem fetches a single data item by ID from the configured collection and
// returns its data map.
func (c *Client) GetItem(ctx context.Context, itemID string) (map[string]any, error) {
	if itemID == "" {
		return nil, fmt.Errorf("wix: item id is required")
	}

	u := fmt.Sprintf("%s/%s?dataCollectionId=%s",
		c.cfg.BaseURL, url.PathEscape(itemID), url.QueryEscape(c.cfg.CollectionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("wix: create request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AccountID != "" {
		req.Header.Set("wix-account-id", c.cfg.AccountID)
	}
	if c.cfg.SiteID != "" {
		req.Header.Set("wix-site-id", c.cfg.SiteID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wix: get item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wix: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("wix: item %s: %w", itemID, domain.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("wix: item %s: %w", itemID, domain.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("wix: item %s: status %d: %s", itemID, resp.StatusCode, body)
	}

	var parsed itemResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("wix: decode item %s: %w", itemID, err)
	}
	return parsed.DataItem.Data, nil
}
