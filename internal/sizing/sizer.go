// Package sizing computes how much base currency a USD budget can buy from a
// sorted ask ladder. The walk is greedy from the cheapest level up and stops
// the moment the budget is exhausted.
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// Plan walks askLevels (ascending by price, caller's responsibility) and
// returns the largest purchase that keeps total cost within budget. Levels
// past the point of exhaustion are not inspected.
//
// A zero budget or an empty ladder yields an empty plan. A negative budget or
// a level with non-positive price or negative quantity is rejected with an
// error wrapping domain.ErrInput; no partial plan is returned on that path.
//
// All arithmetic is decimal, so fills concatenated reconstruct the totals
// exactly and TotalCost never exceeds budget.
func Plan(budget decimal.Decimal, askLevels []domain.AskLevel) (domain.PurchasePlan, error) {
	if budget.IsNegative() {
		return domain.PurchasePlan{}, fmt.Errorf("sizing: negative budget %s: %w", budget, domain.ErrInput)
	}
	for i, lvl := range askLevels {
		if lvl.Price.Sign() <= 0 {
			return domain.PurchasePlan{}, fmt.Errorf("sizing: level %d has non-positive price %s: %w", i, lvl.Price, domain.ErrInput)
		}
		if lvl.Quantity.IsNegative() {
			return domain.PurchasePlan{}, fmt.Errorf("sizing: level %d has negative quantity %s: %w", i, lvl.Quantity, domain.ErrInput)
		}
	}

	plan := domain.PurchasePlan{
		TotalQuantity: decimal.Zero,
		TotalCost:     decimal.Zero,
		AveragePrice:  decimal.Zero,
	}
	if budget.IsZero() || len(askLevels) == 0 {
		return plan, nil
	}

	remaining := budget
	for _, lvl := range askLevels {
		if remaining.Sign() <= 0 {
			break
		}

		levelCost := lvl.Price.Mul(lvl.Quantity)

		var fill domain.Fill
		if levelCost.Cmp(remaining) <= 0 {
			// Take the whole level.
			fill = domain.Fill{Price: lvl.Price, Quantity: lvl.Quantity, Cost: levelCost}
		} else {
			// Partial fill exhausts the budget exactly.
			takeQty := remaining.Div(lvl.Price)
			fill = domain.Fill{Price: lvl.Price, Quantity: takeQty, Cost: remaining}
		}

		if fill.Quantity.Sign() <= 0 {
			continue
		}

		plan.Fills = append(plan.Fills, fill)
		plan.TotalQuantity = plan.TotalQuantity.Add(fill.Quantity)
		plan.TotalCost = plan.TotalCost.Add(fill.Cost)
		remaining = remaining.Sub(fill.Cost)
	}

	if plan.TotalQuantity.Sign() > 0 {
		plan.AveragePrice = plan.TotalCost.Div(plan.TotalQuantity)
	}
	return plan, nil
}
