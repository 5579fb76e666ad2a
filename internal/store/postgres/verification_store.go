package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truesightdao/tokenops/internal/domain"
)

// VerificationStore implements domain.VerificationStore using PostgreSQL.
// Request fields are stored as JSONB.
type VerificationStore struct {
	pool *pgxpool.Pool
}

// NewVerificationStore creates a VerificationStore backed by the given pool.
func NewVerificationStore(pool *pgxpool.Pool) *VerificationStore {
	return &VerificationStore{pool: pool}
}

// Insert persists a verification attempt.
func (s *VerificationStore) Insert(ctx context.Context, rec domain.VerificationRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("postgres: marshal verification fields: %w", err)
	}

	var contributorID any
	if rec.ContributorID != "" {
		contributorID = rec.ContributorID
	}

	const query = `
		INSERT INTO verifications (id, valid, digest_hex, key_fingerprint, transaction_type, fields, contributor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.Valid, rec.DigestHex, rec.KeyFingerprint,
		rec.TransactionType, fieldsJSON, contributorID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert verification %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent verification attempts, newest first.
func (s *VerificationStore) ListRecent(ctx context.Context, limit int) ([]domain.VerificationRecord, error) {
	const query = `
		SELECT id, valid, digest_hex, key_fingerprint, transaction_type, fields, contributor_id, created_at
		FROM verifications ORDER BY created_at DESC LIMIT $1`
	return s.queryRecords(ctx, query, limit)
}

// ListBefore returns up to limit verifications created before the cutoff,
// oldest first, for archival.
func (s *VerificationStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.VerificationRecord, error) {
	const query = `
		SELECT id, valid, digest_hex, key_fingerprint, transaction_type, fields, contributor_id, created_at
		FROM verifications WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`
	return s.queryRecords(ctx, query, cutoff, limit)
}

// DeleteIDs removes the verifications with the given IDs and returns the
// number of rows deleted.
func (s *VerificationStore) DeleteIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM verifications WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d verifications: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

func (s *VerificationStore) queryRecords(ctx context.Context, query string, args ...any) ([]domain.VerificationRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query verifications: %w", err)
	}
	defer rows.Close()

	var out []domain.VerificationRecord
	for rows.Next() {
		rec, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: verifications rows: %w", err)
	}
	return out, nil
}

func scanVerification(row pgx.Row) (domain.VerificationRecord, error) {
	var (
		rec           domain.VerificationRecord
		fieldsJSON    []byte
		contributorID *string
	)
	if err := row.Scan(
		&rec.ID, &rec.Valid, &rec.DigestHex, &rec.KeyFingerprint,
		&rec.TransactionType, &fieldsJSON, &contributorID, &rec.CreatedAt,
	); err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("postgres: scan verification: %w", err)
	}
	if fieldsJSON != nil {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return domain.VerificationRecord{}, fmt.Errorf("postgres: unmarshal verification fields: %w", err)
		}
	}
	if contributorID != nil {
		rec.ContributorID = *contributorID
	}
	return rec, nil
}

var _ domain.VerificationStore = (*VerificationStore)(nil)
