package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memVerificationStore struct {
	mu   sync.Mutex
	recs []domain.VerificationRecord
}

func (m *memVerificationStore) Insert(_ context.Context, rec domain.VerificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memVerificationStore) ListRecent(_ context.Context, limit int) ([]domain.VerificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.recs) {
		limit = len(m.recs)
	}
	out := make([]domain.VerificationRecord, limit)
	copy(out, m.recs[len(m.recs)-limit:])
	return out, nil
}

func (m *memVerificationStore) ListBefore(context.Context, time.Time, int) ([]domain.VerificationRecord, error) {
	return nil, nil
}

func (m *memVerificationStore) DeleteIDs(context.Context, []string) (int64, error) {
	return 0, nil
}

type memContributorStore struct {
	byFingerprint map[string]domain.Contributor
}

func (m *memContributorStore) Upsert(_ context.Context, c domain.Contributor) error {
	if m.byFingerprint == nil {
		m.byFingerprint = map[string]domain.Contributor{}
	}
	m.byFingerprint[c.KeyFingerprint] = c
	return nil
}

func (m *memContributorStore) GetByFingerprint(_ context.Context, fp string) (domain.Contributor, error) {
	c, ok := m.byFingerprint[fp]
	if !ok {
		return domain.Contributor{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memContributorStore) List(context.Context, domain.ListOpts) ([]domain.Contributor, error) {
	return nil, nil
}

type memPlanStore struct {
	mu       sync.Mutex
	recs     []domain.PlanRecord
	executed map[string]string
}

func (m *memPlanStore) Insert(_ context.Context, rec domain.PlanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memPlanStore) MarkExecuted(_ context.Context, id, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.executed == nil {
		m.executed = map[string]string{}
	}
	m.executed[id] = orderID
	return nil
}

func (m *memPlanStore) ListRecent(_ context.Context, limit int) ([]domain.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.recs) {
		limit = len(m.recs)
	}
	out := make([]domain.PlanRecord, limit)
	copy(out, m.recs[len(m.recs)-limit:])
	return out, nil
}

func (m *memPlanStore) ListBefore(context.Context, time.Time, int) ([]domain.PlanRecord, error) {
	return nil, nil
}

func (m *memPlanStore) DeleteIDs(context.Context, []string) (int64, error) { return 0, nil }

type memAuditStore struct {
	mu     sync.Mutex
	events []string
}

func (m *memAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages == nil {
		m.messages = map[string][][]byte{}
	}
	m.messages[channel] = append(m.messages[channel], payload)
	return nil
}

func (m *memBus) Subscribe(context.Context, ...string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

type memBudgetCache struct {
	mu     sync.Mutex
	values map[string]decimal.Decimal
}

func (m *memBudgetCache) Set(_ context.Context, key string, budget decimal.Decimal, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]decimal.Decimal{}
	}
	m.values[key] = budget
	return nil
}

func (m *memBudgetCache) Get(_ context.Context, key string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	return v, nil
}

type stubBudgetSource struct {
	budget decimal.Decimal
	calls  int
	err    error
}

func (s *stubBudgetSource) DailyBudget(context.Context) (decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.budget, nil
}

type stubLockManager struct {
	held     bool
	acquired int
	released int
}

func (s *stubLockManager) Acquire(context.Context, string, time.Duration) (func(), error) {
	if s.held {
		return nil, domain.ErrLockHeld
	}
	s.acquired++
	return func() { s.released++ }, nil
}

type stubExchange struct {
	book     domain.OrderBook
	bookErr  error
	orderID  string
	orderErr error
	placed   []struct{ Price, Quantity string }
}

func (s *stubExchange) GetBook(context.Context, int) (domain.OrderBook, error) {
	if s.bookErr != nil {
		return domain.OrderBook{}, s.bookErr
	}
	return s.book, nil
}

func (s *stubExchange) PlaceLimitBuy(_ context.Context, price, quantity string) (string, error) {
	if s.orderErr != nil {
		return "", s.orderErr
	}
	s.placed = append(s.placed, struct{ Price, Quantity string }{price, quantity})
	return s.orderID, nil
}
