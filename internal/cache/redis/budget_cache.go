package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// BudgetCache implements domain.BudgetCache. The daily budget is stored as a
// decimal string under "budget:{key}" with the fetch window's TTL, so a
// restart mid-window reuses the upstream value instead of re-fetching it.
type BudgetCache struct {
	rdb *redis.Client
}

// NewBudgetCache creates a BudgetCache backed by the given Client.
func NewBudgetCache(c *Client) *BudgetCache {
	return &BudgetCache{rdb: c.Underlying()}
}

func budgetKey(key string) string {
	return "budget:" + key
}

// Set stores the budget under the key with the given TTL.
func (bc *BudgetCache) Set(ctx context.Context, key string, budget decimal.Decimal, ttl time.Duration) error {
	if err := bc.rdb.Set(ctx, budgetKey(key), budget.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set budget %s: %w", key, err)
	}
	return nil
}

// Get retrieves a cached budget. It returns domain.ErrNotFound when the key
// does not exist or has expired.
func (bc *BudgetCache) Get(ctx context.Context, key string) (decimal.Decimal, error) {
	val, err := bc.rdb.Get(ctx, budgetKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("redis: get budget %s: %w", key, err)
	}

	budget, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: parse budget %s: %w", key, err)
	}
	return budget, nil
}

var _ domain.BudgetCache = (*BudgetCache)(nil)
