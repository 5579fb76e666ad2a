// Package latoken is the REST client for the LATOKEN exchange API. Public
// endpoints (order book) need no authentication; private endpoints are signed
// with the HMAC scheme in internal/crypto.
package latoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/domain"
)

// DefaultBaseURL is the production LATOKEN API root.
const DefaultBaseURL = "https://api.latoken.com"

// Outbound request pacing, shared across replicas via the distributed
// limiter. LATOKEN rejects clients that exceed roughly 10 req/s.
const (
	apiRateKey    = "latoken:api"
	apiRateLimit  = 10
	apiRateWindow = time.Second
)

// Config holds the connection parameters for the LATOKEN client.
type Config struct {
	BaseURL string
	// CurrencyID and QuoteID are LATOKEN asset UUIDs for the traded pair
	// (e.g. TDG and USDT).
	CurrencyID string
	QuoteID    string
	Auth       crypto.LatokenAuth
	// Limiter paces outbound requests when set.
	Limiter domain.RateLimiter
}

// Client is the LATOKEN REST client for a single trading pair.
type Client struct {
	baseURL    string
	currencyID string
	quoteID    string
	auth       crypto.LatokenAuth
	limiter    domain.RateLimiter
	httpClient *http.Client
}

// NewClient creates a LATOKEN client. An empty BaseURL selects production.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:    base,
		currencyID: cfg.CurrencyID,
		quoteID:    cfg.QuoteID,
		auth:       cfg.Auth,
		limiter:    cfg.Limiter,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetBook fetches the order book for the configured pair, up to limit levels
// per side. Asks come back sorted ascending by price, bids descending, as
// the exchange returns them.
func (c *Client) GetBook(ctx context.Context, limit int) (domain.OrderBook, error) {
	path := fmt.Sprintf("/v2/book/%s/%s", url.PathEscape(c.currencyID), url.PathEscape(c.quoteID))
	query := ""
	if limit > 0 {
		query = "limit=" + strconv.Itoa(limit)
	}

	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil, false)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("latoken: get book: %w", err)
	}

	var resp BookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("latoken: decode book: %w", err)
	}

	asks, err := resp.askLevels()
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("latoken: decode book asks: %w", err)
	}
	bids, err := resp.bidLevels()
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("latoken: decode book bids: %w", err)
	}

	return domain.OrderBook{
		Pair:      c.currencyID + "/" + c.quoteID,
		Asks:      asks,
		Bids:      bids,
		FetchedAt: time.Now(),
	}, nil
}

// PlaceLimitBuy submits a limit buy order for the configured pair. Price and
// quantity are passed as already-formatted decimal strings so the caller
// controls precision. It returns the exchange order ID.
func (c *Client) PlaceLimitBuy(ctx context.Context, price, quantity string) (string, error) {
	order := OrderRequest{
		BaseCurrency:  c.currencyID,
		QuoteCurrency: c.quoteID,
		Side:          "BUY",
		Condition:     "GOOD_TILL_CANCELLED",
		Type:          "LIMIT",
		ClientOrderID: uuid.New().String(),
		Price:         price,
		Quantity:      quantity,
		Timestamp:     time.Now().UnixMilli(),
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v2/auth/order/place", "", order, true)
	if err != nil {
		return "", fmt.Errorf("latoken: place order: %w", err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("latoken: decode order response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("latoken: order rejected: %s", resp.Error)
	}

	return resp.ID, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, optionally signs, sends, and reads an HTTP request
// against the LATOKEN API. Requests wait on the shared limiter first so
// replicas stay inside the exchange's request budget.
func (c *Client) doRequest(ctx context.Context, method, path, query string, reqBody any, signed bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, apiRateKey, apiRateLimit, apiRateWindow); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if signed {
		for k, v := range c.auth.Headers(method, path, query) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("status %d: %w", statusCode, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", statusCode, domain.ErrRateLimited)
	case http.StatusNotFound:
		return fmt.Errorf("status %d: %w", statusCode, domain.ErrNotFound)
	default:
		return fmt.Errorf("status %d: %s", statusCode, truncate(body, 512))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
