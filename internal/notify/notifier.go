// Package notify delivers operational alerts for the token automation suite.
// Events cover signature verification outcomes, market-maker purchase plans
// and buyback executions; each event is fanned out to every configured
// channel (Telegram, Discord) that passed the event filter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

// Event types understood by the filter.
const (
	EventVerification = "verification"
	EventPlanExecuted = "plan_executed"
	EventBuyback      = "buyback"
	EventArchive      = "archive"
	EventError        = "error"
)

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans events out to all senders. Only events whose type is in the
// configured allow-list are delivered; an empty list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification if the event type passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// VerificationProcessed reports the outcome of a signed-request verification.
func (n *Notifier) VerificationProcessed(ctx context.Context, res domain.VerificationResult) error {
	status := "REJECTED"
	if res.Valid {
		status = "verified"
	}
	title := fmt.Sprintf("Signature %s", status)
	msg := fmt.Sprintf("type: %s\nfingerprint: %s\ndigest: %s",
		res.TransactionType, res.KeyFingerprint, res.MessageDigestHex)
	return n.Notify(ctx, EventVerification, title, msg)
}

// PlanExecuted reports a purchase plan that was (or would be) placed on the
// exchange. orderID is empty in dry-run mode.
func (n *Notifier) PlanExecuted(ctx context.Context, pair string, budget decimal.Decimal, plan domain.PurchasePlan, orderID string) error {
	title := fmt.Sprintf("Market-maker plan for %s", pair)
	msg := fmt.Sprintf("budget: %s USD\nquantity: %s\ncost: %s\navg price: %s\nlevels: %d",
		budget.String(), plan.TotalQuantity.String(), plan.TotalCost.String(),
		plan.AveragePrice.String(), len(plan.Fills))
	if orderID != "" {
		msg += "\norder: " + orderID
	} else {
		msg += "\norder: dry-run"
	}
	return n.Notify(ctx, EventPlanExecuted, title, msg)
}

// BuybackExecuted reports a completed on-chain buyback swap.
func (n *Notifier) BuybackExecuted(ctx context.Context, usdcAmount decimal.Decimal, outAmount, signature string) error {
	msg := fmt.Sprintf("spent: %s USDC\nreceived: %s\ntx: %s", usdcAmount.String(), outAmount, signature)
	return n.Notify(ctx, EventBuyback, "Buyback executed", msg)
}

// Error reports an operational failure regardless of the event filter.
func (n *Notifier) Error(ctx context.Context, component string, err error) error {
	return n.dispatch(ctx, "Error in "+component, err.Error())
}

// dispatch iterates over all senders. Individual failures are collected so
// one broken channel does not block the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
