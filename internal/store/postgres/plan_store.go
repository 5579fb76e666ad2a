package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL. Monetary columns
// are NUMERIC and scanned through strings to keep decimal precision exact.
type PlanStore struct {
	pool *pgxpool.Pool
}

// NewPlanStore creates a PlanStore backed by the given pool.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

type fillRow struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Cost     string `json:"cost"`
}

// Insert persists a purchase plan record.
func (s *PlanStore) Insert(ctx context.Context, rec domain.PlanRecord) error {
	fills := make([]fillRow, len(rec.Plan.Fills))
	for i, f := range rec.Plan.Fills {
		fills[i] = fillRow{
			Price:    f.Price.String(),
			Quantity: f.Quantity.String(),
			Cost:     f.Cost.String(),
		}
	}
	fillsJSON, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("postgres: marshal plan fills: %w", err)
	}

	const query = `
		INSERT INTO purchase_plans (id, pair, budget_usd, total_quantity, total_cost, average_price, fills, executed, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.Pair, rec.BudgetUSD.String(),
		rec.Plan.TotalQuantity.String(), rec.Plan.TotalCost.String(), rec.Plan.AveragePrice.String(),
		fillsJSON, rec.Executed, rec.OrderID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert plan %s: %w", rec.ID, err)
	}
	return nil
}

// MarkExecuted flags a plan as executed and records the exchange order ID.
// It returns domain.ErrNotFound when the plan does not exist.
func (s *PlanStore) MarkExecuted(ctx context.Context, id, orderID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE purchase_plans SET executed = TRUE, order_id = $2 WHERE id = $1`,
		id, orderID,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark plan %s executed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns the most recent plans, newest first.
func (s *PlanStore) ListRecent(ctx context.Context, limit int) ([]domain.PlanRecord, error) {
	const query = `
		SELECT id, pair, budget_usd, total_quantity, total_cost, average_price, fills, executed, order_id, created_at
		FROM purchase_plans ORDER BY created_at DESC LIMIT $1`
	return s.queryRecords(ctx, query, limit)
}

// ListBefore returns up to limit plans created before the cutoff, oldest
// first, for archival.
func (s *PlanStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.PlanRecord, error) {
	const query = `
		SELECT id, pair, budget_usd, total_quantity, total_cost, average_price, fills, executed, order_id, created_at
		FROM purchase_plans WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`
	return s.queryRecords(ctx, query, cutoff, limit)
}

// DeleteIDs removes the plans with the given IDs and returns the number of
// rows deleted.
func (s *PlanStore) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM purchase_plans WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d plans: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

func (s *PlanStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.PlanRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query plans: %w", err)
	}
	defer rows.Close()

	var out []domain.PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: plans rows: %w", err)
	}
	return out, nil
}

func scanPlan(row pgx.Row) (domain.PlanRecord, error) {
	var (
		rec                                   domain.PlanRecord
		budget, totalQty, totalCost, avgPrice string
		fillsJSON                             []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.Pair, &budget, &totalQty, &totalCost, &avgPrice,
		&fillsJSON, &rec.Executed, &rec.OrderID, &rec.CreatedAt,
	); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("postgres: scan plan: %w", err)
	}

	var err error
	if rec.BudgetUSD, err = decimal.NewFromString(budget); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("postgres: parse plan budget: %w", err)
	}
	if rec.Plan.TotalQuantity, err = decimal.NewFromString(totalQty); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("postgres: parse plan quantity: %w", err)
	}
	if rec.Plan.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("postgres: parse plan cost: %w", err)
	}
	if rec.Plan.AveragePrice, err = decimal.NewFromString(avgPrice); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("postgres: parse plan average price: %w", err)
	}

	var fills []fillRow
	if fillsJSON != nil {
		if err := json.Unmarshal(fillsJSON, &fills); err != nil {
			return domain.PlanRecord{}, fmt.Errorf("postgres: unmarshal plan fills: %w", err)
		}
	}
	rec.Plan.Fills = make([]domain.Fill, len(fills))
	for i, f := range fills {
		var df domain.Fill
		if df.Price, err = decimal.NewFromString(f.Price); err != nil {
			return domain.PlanRecord{}, fmt.Errorf("postgres: parse fill price: %w", err)
		}
		if df.Quantity, err = decimal.NewFromString(f.Quantity); err != nil {
			return domain.PlanRecord{}, fmt.Errorf("postgres: parse fill quantity: %w", err)
		}
		if df.Cost, err = decimal.NewFromString(f.Cost); err != nil {
			return domain.PlanRecord{}, fmt.Errorf("postgres: parse fill cost: %w", err)
		}
		rec.Plan.Fills[i] = df
	}

	return rec, nil
}

var _ domain.PlanStore = (*PlanStore)(nil)
