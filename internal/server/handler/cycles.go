package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/service"
)

// CycleHandler serves the trading cycle endpoints: plan history and the
// manual market-maker and buyback triggers.
type CycleHandler struct {
	marketMaker *service.MarketMakerService
	buyback     *service.BuybackService
	plans       domain.PlanStore
	logger      *slog.Logger
}

// NewCycleHandler creates a CycleHandler. marketMaker and buyback may be nil
// when the corresponding cycle is not configured; their triggers then return
// 503.
func NewCycleHandler(
	marketMaker *service.MarketMakerService,
	buyback *service.BuybackService,
	plans domain.PlanStore,
	logger *slog.Logger,
) *CycleHandler {
	return &CycleHandler{
		marketMaker: marketMaker,
		buyback:     buyback,
		plans:       plans,
		logger:      logger,
	}
}

// ListRecentPlans returns the latest purchase plans.
// GET /api/plans/recent
func (h *CycleHandler) ListRecentPlans(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	recs, err := h.plans.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list plans failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list plans failed")
		return
	}

	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		fills := make([]map[string]string, len(rec.Plan.Fills))
		for j, f := range rec.Plan.Fills {
			fills[j] = map[string]string{
				"price":    f.Price.String(),
				"quantity": f.Quantity.String(),
				"cost":     f.Cost.String(),
			}
		}
		out[i] = map[string]any{
			"id":             rec.ID,
			"pair":           rec.Pair,
			"budget_usd":     rec.BudgetUSD.String(),
			"total_quantity": rec.Plan.TotalQuantity.String(),
			"total_cost":     rec.Plan.TotalCost.String(),
			"average_price":  rec.Plan.AveragePrice.String(),
			"fills":          fills,
			"executed":       rec.Executed,
			"order_id":       rec.OrderID,
			"created_at":     rec.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

// RunMarketMaker triggers one market-maker cycle.
// POST /api/marketmaker/run
func (h *CycleHandler) RunMarketMaker(w http.ResponseWriter, r *http.Request) {
	if h.marketMaker == nil {
		writeError(w, http.StatusServiceUnavailable, "market maker not configured")
		return
	}

	rec, err := h.marketMaker.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "cycle already running")
			return
		}
		h.logger.ErrorContext(r.Context(), "market maker cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cycle failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan_id":        rec.ID,
		"pair":           rec.Pair,
		"budget_usd":     rec.BudgetUSD.String(),
		"total_quantity": rec.Plan.TotalQuantity.String(),
		"total_cost":     rec.Plan.TotalCost.String(),
		"executed":       rec.Executed,
		"order_id":       rec.OrderID,
	})
}

// RunBuyback triggers one buyback cycle.
// POST /api/buyback/run
func (h *CycleHandler) RunBuyback(w http.ResponseWriter, r *http.Request) {
	if h.buyback == nil {
		writeError(w, http.StatusServiceUnavailable, "buyback not configured")
		return
	}

	res, err := h.buyback.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "cycle already running")
			return
		}
		h.logger.ErrorContext(r.Context(), "buyback cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cycle failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"spent_usdc": res.SpentUSDC.String(),
		"out_amount": res.OutAmount,
		"signature":  res.Signature,
		"dry_run":    res.DryRun,
	})
}
