package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetSource yields the DAO-approved daily budget in USD.
type BudgetSource interface {
	DailyBudget(ctx context.Context) (decimal.Decimal, error)
}

// BudgetCache stores the fetched daily budget so repeated cycles within the
// same window do not hit the upstream data store.
type BudgetCache interface {
	Set(ctx context.Context, key string, budget decimal.Decimal, ttl time.Duration) error
	Get(ctx context.Context, key string) (decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting. Allow answers immediately
// for request admission; Wait blocks until a slot frees, for pacing outbound
// calls to upstream APIs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking so only one trading cycle runs at
// a time across replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of operational events (verifications,
// cycle results) to interested consumers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, error)
}
