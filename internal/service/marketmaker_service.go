package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/metrics"
	"github.com/truesightdao/tokenops/internal/sizing"
)

// CycleChannel is the signal bus channel cycle summaries are published on.
const CycleChannel = "tokenops.cycles"

// Exchange is the slice of the exchange client the market maker needs.
type Exchange interface {
	GetBook(ctx context.Context, limit int) (domain.OrderBook, error)
	PlaceLimitBuy(ctx context.Context, price, quantity string) (string, error)
}

// PlanReporter delivers plan notifications. Implemented by notify.Notifier.
type PlanReporter interface {
	PlanExecuted(ctx context.Context, pair string, budget decimal.Decimal, plan domain.PurchasePlan, orderID string) error
}

// MarketMakerConfig holds the tunables for the daily buy cycle.
type MarketMakerConfig struct {
	Pair         string
	BookDepth    int
	BudgetKey    string
	BudgetTTL    time.Duration
	LockTTL      time.Duration
	MaxBudgetUSD decimal.Decimal // zero disables the cap
	DryRun       bool
}

// MarketMakerService runs the budget-constrained buy cycle: fetch the
// DAO-approved daily budget, size a purchase plan against the current ask
// ladder, and place the order.
type MarketMakerService struct {
	exchange Exchange
	source   domain.BudgetSource
	cache    domain.BudgetCache
	locks    domain.LockManager
	plans    domain.PlanStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	reporter PlanReporter
	cfg      MarketMakerConfig
	logger   *slog.Logger
}

// NewMarketMakerService creates a MarketMakerService.
func NewMarketMakerService(
	exchange Exchange,
	source domain.BudgetSource,
	cache domain.BudgetCache,
	locks domain.LockManager,
	plans domain.PlanStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	reporter PlanReporter,
	cfg MarketMakerConfig,
	logger *slog.Logger,
) *MarketMakerService {
	return &MarketMakerService{
		exchange: exchange,
		source:   source,
		cache:    cache,
		locks:    locks,
		plans:    plans,
		audit:    audit,
		bus:      bus,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "marketmaker_service")),
	}
}

// RunCycle executes one buy cycle and returns the persisted plan record. It
// returns domain.ErrLockHeld when another replica is already running one.
func (s *MarketMakerService) RunCycle(ctx context.Context) (domain.PlanRecord, error) {
	unlock, err := s.locks.Acquire(ctx, "marketmaker", s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "cycle already running elsewhere")
			return domain.PlanRecord{}, domain.ErrLockHeld
		}
		return domain.PlanRecord{}, fmt.Errorf("marketmaker_service: acquire lock: %w", err)
	}
	defer unlock()

	budget, err := s.dailyBudget(ctx)
	if err != nil {
		metrics.MarketMakerCycles.WithLabelValues("error").Inc()
		return domain.PlanRecord{}, fmt.Errorf("marketmaker_service: fetch budget: %w", err)
	}

	book, err := s.exchange.GetBook(ctx, s.cfg.BookDepth)
	if err != nil {
		metrics.MarketMakerCycles.WithLabelValues("error").Inc()
		return domain.PlanRecord{}, fmt.Errorf("marketmaker_service: fetch book: %w", err)
	}

	plan, err := sizing.Plan(budget, book.Asks)
	if err != nil {
		metrics.MarketMakerCycles.WithLabelValues("error").Inc()
		return domain.PlanRecord{}, fmt.Errorf("marketmaker_service: size plan: %w", err)
	}

	rec := domain.PlanRecord{
		ID:        uuid.New().String(),
		Pair:      s.cfg.Pair,
		BudgetUSD: budget,
		Plan:      plan,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.plans.Insert(ctx, rec); err != nil {
		metrics.MarketMakerCycles.WithLabelValues("error").Inc()
		return domain.PlanRecord{}, fmt.Errorf("marketmaker_service: store plan: %w", err)
	}

	if plan.TotalQuantity.IsZero() {
		s.logger.InfoContext(ctx, "nothing to buy",
			slog.String("budget", budget.String()),
			slog.Int("asks", len(book.Asks)),
		)
		metrics.MarketMakerCycles.WithLabelValues("empty").Inc()
		s.finishCycle(ctx, &rec, budget)
		return rec, nil
	}

	if !s.cfg.DryRun {
		// A single limit buy at the plan's worst fill price covers every
		// level the sizer consumed.
		limitPrice := plan.Fills[len(plan.Fills)-1].Price
		orderID, err := s.exchange.PlaceLimitBuy(ctx, limitPrice.String(), plan.TotalQuantity.String())
		if err != nil {
			metrics.MarketMakerCycles.WithLabelValues("error").Inc()
			return rec, fmt.Errorf("marketmaker_service: place order: %w", err)
		}
		rec.Executed = true
		rec.OrderID = orderID

		if err := s.plans.MarkExecuted(ctx, rec.ID, orderID); err != nil {
			return rec, fmt.Errorf("marketmaker_service: mark executed: %w", err)
		}
	}

	cost, _ := plan.TotalCost.Float64()
	metrics.PlanCostUSD.Observe(cost)
	metrics.MarketMakerCycles.WithLabelValues("ok").Inc()

	s.finishCycle(ctx, &rec, budget)

	s.logger.InfoContext(ctx, "cycle complete",
		slog.String("plan_id", rec.ID),
		slog.String("budget", budget.String()),
		slog.String("quantity", plan.TotalQuantity.String()),
		slog.String("cost", plan.TotalCost.String()),
		slog.Bool("executed", rec.Executed),
	)

	return rec, nil
}

// dailyBudget returns the cached budget for today's window, fetching from
// the upstream source on a miss.
func (s *MarketMakerService) dailyBudget(ctx context.Context) (decimal.Decimal, error) {
	if budget, err := s.cache.Get(ctx, s.cfg.BudgetKey); err == nil {
		return s.clamp(budget), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "budget cache read failed", slog.String("error", err.Error()))
	}

	budget, err := s.source.DailyBudget(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.cache.Set(ctx, s.cfg.BudgetKey, budget, s.cfg.BudgetTTL); err != nil {
		s.logger.WarnContext(ctx, "budget cache write failed", slog.String("error", err.Error()))
	}

	return s.clamp(budget), nil
}

func (s *MarketMakerService) clamp(budget decimal.Decimal) decimal.Decimal {
	if s.cfg.MaxBudgetUSD.IsPositive() && budget.GreaterThan(s.cfg.MaxBudgetUSD) {
		return s.cfg.MaxBudgetUSD
	}
	return budget
}

func (s *MarketMakerService) finishCycle(ctx context.Context, rec *domain.PlanRecord, budget decimal.Decimal) {
	if err := s.audit.Log(ctx, "marketmaker.cycle", map[string]any{
		"plan_id":  rec.ID,
		"pair":     rec.Pair,
		"budget":   budget.String(),
		"quantity": rec.Plan.TotalQuantity.String(),
		"cost":     rec.Plan.TotalCost.String(),
		"executed": rec.Executed,
		"order_id": rec.OrderID,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":    "marketmaker_cycle",
			"plan_id":  rec.ID,
			"pair":     rec.Pair,
			"cost":     rec.Plan.TotalCost.String(),
			"executed": rec.Executed,
		})
		if err := s.bus.Publish(ctx, CycleChannel, evt); err != nil {
			s.logger.WarnContext(ctx, "bus publish failed", slog.String("error", err.Error()))
		}
	}

	if s.reporter != nil && !rec.Plan.TotalQuantity.IsZero() {
		if err := s.reporter.PlanExecuted(ctx, rec.Pair, budget, rec.Plan, rec.OrderID); err != nil {
			s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
}
