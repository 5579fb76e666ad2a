package latoken

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// --------------------------------------------------------------------------
// LATOKEN API DTOs
// --------------------------------------------------------------------------

// BookLevel is one price level as returned by /v2/book. LATOKEN transports
// prices and quantities as JSON strings.
type BookLevel struct {
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Cost        string `json:"cost"`
	Accumulated string `json:"accumulated"`
}

// BookResponse is the payload of GET /v2/book/{currency}/{quote}. Depending
// on API version the sides are named "ask"/"bid" or "asks"/"bids"; both are
// decoded.
type BookResponse struct {
	Ask      []BookLevel `json:"ask"`
	Bid      []BookLevel `json:"bid"`
	Asks     []BookLevel `json:"asks"`
	Bids     []BookLevel `json:"bids"`
	TotalAsk string      `json:"totalAsk"`
	TotalBid string      `json:"totalBid"`
}

// OrderRequest is the payload for POST /v2/auth/order/place.
type OrderRequest struct {
	BaseCurrency  string `json:"baseCurrency"`
	QuoteCurrency string `json:"quoteCurrency"`
	Side          string `json:"side"`      // "BUY" or "SELL"
	Condition     string `json:"condition"` // "GOOD_TILL_CANCELLED", "IMMEDIATE_OR_CANCEL"
	Type          string `json:"type"`      // "LIMIT" or "MARKET"
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	Timestamp     int64  `json:"timestamp"`
}

// OrderResponse is the acknowledgement returned by the order endpoints.
type OrderResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// askLevels normalizes the ask side of a book response into domain levels,
// preferring the "ask" key and falling back to "asks".
func (b *BookResponse) askLevels() ([]domain.AskLevel, error) {
	raw := b.Ask
	if len(raw) == 0 {
		raw = b.Asks
	}
	return toDomainLevels(raw)
}

func (b *BookResponse) bidLevels() ([]domain.AskLevel, error) {
	raw := b.Bid
	if len(raw) == 0 {
		raw = b.Bids
	}
	return toDomainLevels(raw)
}

func toDomainLevels(raw []BookLevel) ([]domain.AskLevel, error) {
	out := make([]domain.AskLevel, 0, len(raw))
	for i, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, fmt.Errorf("level %d price %q: %w", i, lvl.Price, err)
		}
		qty, err := decimal.NewFromString(lvl.Quantity)
		if err != nil {
			return nil, fmt.Errorf("level %d quantity %q: %w", i, lvl.Quantity, err)
		}
		out = append(out, domain.AskLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
