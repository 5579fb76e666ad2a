package service

import (
	"context"
	"errors"
	"testing"
	"time"

	solsdk "github.com/gagliardetto/solana-go"

	"github.com/truesightdao/tokenops/internal/dex/solana"
	"github.com/truesightdao/tokenops/internal/domain"
)

type stubSwapper struct {
	quote     *solana.Quote
	quoteErr  error
	swapErr   error
	quotedAmt uint64
	swapsRun  int
}

func (s *stubSwapper) GetQuote(_ context.Context, _, _ string, amount uint64, _ int) (*solana.Quote, error) {
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	s.quotedAmt = amount
	return s.quote, nil
}

func (s *stubSwapper) ExecuteSwap(context.Context, *solana.Quote) (solsdk.Signature, error) {
	if s.swapErr != nil {
		return solsdk.Signature{}, s.swapErr
	}
	s.swapsRun++
	return solsdk.Signature{1, 2, 3}, nil
}

func bbConfig() BuybackConfig {
	return BuybackConfig{
		TokenMint:   "TokenMint1111111111111111111111111111111111",
		SlippageBps: 50,
		BudgetKey:   "buyback",
		BudgetTTL:   time.Hour,
		LockTTL:     5 * time.Minute,
	}
}

func TestBuybackRunCycle(t *testing.T) {
	sw := &stubSwapper{quote: &solana.Quote{OutAmount: "123456"}}
	audit := &memAuditStore{}

	svc := NewBuybackService(sw, &stubBudgetSource{budget: dec("2.5")}, &memBudgetCache{},
		&stubLockManager{}, audit, &memBus{}, nil, bbConfig(), discardLogger())

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// 2.5 USDC = 2,500,000 base units.
	if sw.quotedAmt != 2_500_000 {
		t.Errorf("quoted amount = %d, want 2500000", sw.quotedAmt)
	}
	if sw.swapsRun != 1 {
		t.Errorf("swaps run = %d, want 1", sw.swapsRun)
	}
	if res.OutAmount != "123456" {
		t.Errorf("OutAmount = %q", res.OutAmount)
	}
	if res.Signature == "" {
		t.Error("Signature empty after executed swap")
	}
	if len(audit.events) != 1 || audit.events[0] != "buyback.cycle" {
		t.Errorf("audit events = %v", audit.events)
	}
}

func TestBuybackDryRun(t *testing.T) {
	sw := &stubSwapper{quote: &solana.Quote{OutAmount: "99"}}
	cfg := bbConfig()
	cfg.DryRun = true

	svc := NewBuybackService(sw, &stubBudgetSource{budget: dec("1")}, &memBudgetCache{},
		&stubLockManager{}, &memAuditStore{}, &memBus{}, nil, cfg, discardLogger())

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if sw.swapsRun != 0 {
		t.Error("swap executed in dry run")
	}
	if res.Signature != "" {
		t.Errorf("Signature = %q, want empty", res.Signature)
	}
	if !res.DryRun {
		t.Error("DryRun flag not set on result")
	}
}

func TestBuybackZeroBudget(t *testing.T) {
	sw := &stubSwapper{quote: &solana.Quote{OutAmount: "1"}}

	svc := NewBuybackService(sw, &stubBudgetSource{budget: dec("0")}, &memBudgetCache{},
		&stubLockManager{}, &memAuditStore{}, &memBus{}, nil, bbConfig(), discardLogger())

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if sw.quotedAmt != 0 || sw.swapsRun != 0 {
		t.Error("swap attempted with zero budget")
	}
	if !res.SpentUSDC.IsZero() {
		t.Errorf("SpentUSDC = %s, want 0", res.SpentUSDC)
	}
}

func TestBuybackLockHeld(t *testing.T) {
	svc := NewBuybackService(&stubSwapper{}, &stubBudgetSource{budget: dec("1")}, &memBudgetCache{},
		&stubLockManager{held: true}, &memAuditStore{}, &memBus{}, nil, bbConfig(), discardLogger())

	_, err := svc.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
}

func TestBuybackQuoteError(t *testing.T) {
	svc := NewBuybackService(&stubSwapper{quoteErr: errors.New("no route")},
		&stubBudgetSource{budget: dec("1")}, &memBudgetCache{}, &stubLockManager{}, &memAuditStore{},
		&memBus{}, nil, bbConfig(), discardLogger())

	if _, err := svc.RunCycle(context.Background()); err == nil {
		t.Fatal("expected quote error")
	}
}
