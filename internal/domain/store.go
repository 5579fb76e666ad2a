package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ContributorStore persists registered DAO contributors.
type ContributorStore interface {
	Upsert(ctx context.Context, c Contributor) error
	GetByFingerprint(ctx context.Context, fingerprint string) (Contributor, error)
	List(ctx context.Context, opts ListOpts) ([]Contributor, error)
}

// VerificationStore persists verification attempts. Archival deletes rows by
// ID so only rows already copied to cold storage are ever removed.
type VerificationStore interface {
	Insert(ctx context.Context, rec VerificationRecord) error
	ListRecent(ctx context.Context, limit int) ([]VerificationRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]VerificationRecord, error)
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
}

// PlanStore persists purchase plans produced by the market-making and
// buyback cycles.
type PlanStore interface {
	Insert(ctx context.Context, rec PlanRecord) error
	MarkExecuted(ctx context.Context, id, orderID string) error
	ListRecent(ctx context.Context, limit int) ([]PlanRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]PlanRecord, error)
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
