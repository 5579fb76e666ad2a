package latoken

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/domain"
)

func TestGetBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/book/tdg-id/usdt-id" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Fatalf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ask": [{"price":"0.01","quantity":"10"},{"price":"0.02","quantity":"10"}],
			"bid": [{"price":"0.009","quantity":"4"}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, CurrencyID: "tdg-id", QuoteID: "usdt-id"})
	book, err := c.GetBook(context.Background(), 50)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if len(book.Asks) != 2 || len(book.Bids) != 1 {
		t.Fatalf("unexpected book %+v", book)
	}
	if !book.Asks[0].Price.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("ask price = %s", book.Asks[0].Price)
	}
}

func TestGetBookAsksAlias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asks":[{"price":"1.5","quantity":"2"}],"bids":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, CurrencyID: "a", QuoteID: "b"})
	book, err := c.GetBook(context.Background(), 0)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if len(book.Asks) != 1 {
		t.Fatalf("alias key not decoded: %+v", book)
	}
}

func TestPlaceLimitBuySignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/auth/order/place" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-LA-APIKEY") != "key" {
			t.Fatalf("missing api key header")
		}
		if len(r.Header.Get("X-LA-SIGNATURE")) != 128 {
			t.Fatalf("missing signature header")
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if req.Side != "BUY" || req.Price != "0.0125" || req.Quantity != "800" {
			t.Fatalf("unexpected order %+v", req)
		}
		if req.ClientOrderID == "" {
			t.Fatalf("client order id not set")
		}

		w.Write([]byte(`{"id":"ord-1","status":"PLACED"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:    srv.URL,
		CurrencyID: "tdg-id",
		QuoteID:    "usdt-id",
		Auth:       crypto.LatokenAuth{Key: "key", Secret: "secret"},
	})
	id, err := c.PlaceLimitBuy(context.Background(), "0.0125", "800")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if id != "ord-1" {
		t.Fatalf("order id = %q", id)
	}
}

type recordingLimiter struct {
	keys []string
	err  error
}

func (l *recordingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *recordingLimiter) Wait(_ context.Context, key string, _ int, _ time.Duration) error {
	l.keys = append(l.keys, key)
	return l.err
}

func TestRequestsPaceThroughLimiter(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"ask":[],"bid":[]}`))
	}))
	defer srv.Close()

	limiter := &recordingLimiter{}
	c := NewClient(Config{BaseURL: srv.URL, CurrencyID: "a", QuoteID: "b", Limiter: limiter})

	if _, err := c.GetBook(context.Background(), 10); err != nil {
		t.Fatalf("get book: %v", err)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != apiRateKey {
		t.Fatalf("limiter keys = %v", limiter.keys)
	}

	// A limiter error must stop the request before it reaches the wire.
	limiter.err = errors.New("window closed")
	if _, err := c.GetBook(context.Background(), 10); err == nil {
		t.Fatal("expected limiter error")
	}
	if hits != 1 {
		t.Fatalf("request sent despite limiter refusal, hits = %d", hits)
	}
}

func TestStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, CurrencyID: "a", QuoteID: "b"})
	_, err := c.GetBook(context.Background(), 10)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
