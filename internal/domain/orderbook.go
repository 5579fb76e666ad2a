package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AskLevel is one entry of the sell side of an order book: quantity units of
// base currency offered at price quote units each.
type AskLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a depth snapshot as returned by an exchange's public book
// endpoint. Asks are sorted ascending by price, bids descending.
type OrderBook struct {
	Pair      string
	Asks      []AskLevel
	Bids      []AskLevel
	FetchedAt time.Time
}

// Fill is one consumed ask level of a purchase plan.
type Fill struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// PurchasePlan is the output of the budget-constrained sizer. TotalCost never
// exceeds the budget it was computed from; Fills concatenated reconstruct
// TotalQuantity and TotalCost exactly.
type PurchasePlan struct {
	TotalQuantity decimal.Decimal
	TotalCost     decimal.Decimal
	AveragePrice  decimal.Decimal // zero when TotalQuantity is zero
	Fills         []Fill
}

// PlanRecord is a persisted purchase plan together with its execution
// context (which cycle produced it and whether an order was placed).
type PlanRecord struct {
	ID        string
	Pair      string
	BudgetUSD decimal.Decimal
	Plan      PurchasePlan
	Executed  bool
	OrderID   string
	CreatedAt time.Time
}
