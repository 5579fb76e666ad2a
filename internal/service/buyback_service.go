package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solsdk "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/dex/solana"
	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/metrics"
)

// usdcUnitFactor converts whole USDC to the mint's smallest units.
var usdcUnitFactor = decimal.New(1, 6)

// Swapper is the slice of the DEX client the buyback needs.
type Swapper interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*solana.Quote, error)
	ExecuteSwap(ctx context.Context, quote *solana.Quote) (solsdk.Signature, error)
}

// BuybackReporter delivers buyback notifications. Implemented by
// notify.Notifier.
type BuybackReporter interface {
	BuybackExecuted(ctx context.Context, usdcAmount decimal.Decimal, outAmount, signature string) error
}

// BuybackConfig holds the tunables for the on-chain buyback cycle.
type BuybackConfig struct {
	TokenMint   string
	InputMint   string // defaults to mainnet USDC
	SlippageBps int
	BudgetKey   string
	BudgetTTL   time.Duration
	LockTTL     time.Duration
	DryRun      bool
}

// BuybackService swaps the DAO's allocated USDC for its own token on Solana.
type BuybackService struct {
	swapper  Swapper
	source   domain.BudgetSource
	cache    domain.BudgetCache
	locks    domain.LockManager
	audit    domain.AuditStore
	bus      domain.SignalBus
	reporter BuybackReporter
	cfg      BuybackConfig
	logger   *slog.Logger
}

// NewBuybackService creates a BuybackService.
func NewBuybackService(
	swapper Swapper,
	source domain.BudgetSource,
	cache domain.BudgetCache,
	locks domain.LockManager,
	audit domain.AuditStore,
	bus domain.SignalBus,
	reporter BuybackReporter,
	cfg BuybackConfig,
	logger *slog.Logger,
) *BuybackService {
	if cfg.InputMint == "" {
		cfg.InputMint = solana.USDCMint
	}
	return &BuybackService{
		swapper:  swapper,
		source:   source,
		cache:    cache,
		locks:    locks,
		audit:    audit,
		bus:      bus,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "buyback_service")),
	}
}

// BuybackResult summarises one buyback cycle.
type BuybackResult struct {
	SpentUSDC decimal.Decimal
	OutAmount string
	Signature string
	DryRun    bool
}

// RunCycle executes one buyback: fetch the budget, quote the swap, and
// submit the signed transaction. It returns domain.ErrLockHeld when another
// replica holds the cycle lock.
func (s *BuybackService) RunCycle(ctx context.Context) (BuybackResult, error) {
	unlock, err := s.locks.Acquire(ctx, "buyback", s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "cycle already running elsewhere")
			return BuybackResult{}, domain.ErrLockHeld
		}
		return BuybackResult{}, fmt.Errorf("buyback_service: acquire lock: %w", err)
	}
	defer unlock()

	budget, err := s.dailyBudget(ctx)
	if err != nil {
		metrics.BuybacksTotal.WithLabelValues("error").Inc()
		return BuybackResult{}, fmt.Errorf("buyback_service: fetch budget: %w", err)
	}

	units := budget.Mul(usdcUnitFactor).Truncate(0)
	if !units.IsPositive() {
		s.logger.InfoContext(ctx, "no budget for buyback", slog.String("budget", budget.String()))
		metrics.BuybacksTotal.WithLabelValues("empty").Inc()
		return BuybackResult{SpentUSDC: decimal.Zero, DryRun: s.cfg.DryRun}, nil
	}

	quote, err := s.swapper.GetQuote(ctx, s.cfg.InputMint, s.cfg.TokenMint, uint64(units.IntPart()), s.cfg.SlippageBps)
	if err != nil {
		metrics.BuybacksTotal.WithLabelValues("error").Inc()
		return BuybackResult{}, fmt.Errorf("buyback_service: quote: %w", err)
	}

	result := BuybackResult{
		SpentUSDC: budget,
		OutAmount: quote.OutAmount,
		DryRun:    s.cfg.DryRun,
	}

	if !s.cfg.DryRun {
		sig, err := s.swapper.ExecuteSwap(ctx, quote)
		if err != nil {
			metrics.BuybacksTotal.WithLabelValues("error").Inc()
			return BuybackResult{}, fmt.Errorf("buyback_service: execute swap: %w", err)
		}
		result.Signature = sig.String()
	}

	metrics.BuybacksTotal.WithLabelValues("ok").Inc()

	if err := s.audit.Log(ctx, "buyback.cycle", map[string]any{
		"spent_usdc": budget.String(),
		"out_amount": quote.OutAmount,
		"signature":  result.Signature,
		"dry_run":    s.cfg.DryRun,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":      "buyback",
			"spent_usdc": budget.String(),
			"out_amount": quote.OutAmount,
			"signature":  result.Signature,
		})
		if err := s.bus.Publish(ctx, CycleChannel, evt); err != nil {
			s.logger.WarnContext(ctx, "bus publish failed", slog.String("error", err.Error()))
		}
	}

	if s.reporter != nil {
		if err := s.reporter.BuybackExecuted(ctx, budget, quote.OutAmount, result.Signature); err != nil {
			s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "buyback complete",
		slog.String("spent_usdc", budget.String()),
		slog.String("out_amount", quote.OutAmount),
		slog.String("signature", result.Signature),
		slog.Bool("dry_run", s.cfg.DryRun),
	)

	return result, nil
}

func (s *BuybackService) dailyBudget(ctx context.Context) (decimal.Decimal, error) {
	if budget, err := s.cache.Get(ctx, s.cfg.BudgetKey); err == nil {
		return budget, nil
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

	return budget, nil
}
