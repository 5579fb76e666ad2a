package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truesightdao/tokenops/internal/domain"
)

// ContributorStore implements domain.ContributorStore using PostgreSQL.
type ContributorStore struct {
	pool *pgxpool.Pool
}

// NewContributorStore creates a ContributorStore backed by the given pool.
func NewContributorStore(pool *pgxpool.Pool) *ContributorStore {
	return &ContributorStore{pool: pool}
}

// Upsert inserts or updates a contributor keyed by public key fingerprint.
func (s *ContributorStore) Upsert(ctx context.Context, c domain.Contributor) error {
	const query = `
		INSERT INTO contributors (id, name, email, key_fingerprint, voting_rights)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_fingerprint) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			voting_rights = EXCLUDED.voting_rights`
	_, err := s.pool.Exec(ctx, query, c.ID, c.Name, c.Email, c.KeyFingerprint, c.VotingRights)
	if err != nil {
		return fmt.Errorf("postgres: upsert contributor %s: %w", c.KeyFingerprint, err)
	}
	return nil
}

// GetByFingerprint looks up a contributor by public key fingerprint. It
// returns domain.ErrNotFound when no contributor is registered under it.
func (s *ContributorStore) GetByFingerprint(ctx context.Context, fingerprint string) (domain.Contributor, error) {
	const query = `
		SELECT id, name, email, key_fingerprint, voting_rights, created_at
		FROM contributors WHERE key_fingerprint = $1`

	var c domain.Contributor
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&c.ID, &c.Name, &c.Email, &c.KeyFingerprint, &c.VotingRights, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contributor{}, domain.ErrNotFound
		}
		return domain.Contributor{}, fmt.Errorf("postgres: get contributor %s: %w", fingerprint, err)
	}
	return c, nil
}

// List returns contributors ordered by registration time, newest first.
func (s *ContributorStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Contributor, error) {
	query := `SELECT id, name, email, key_fingerprint, voting_rights, created_at FROM contributors`
	args := []any{}
	argIdx := 1

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contributors: %w", err)
	}
	defer rows.Close()

	var out []domain.Contributor
	for rows.Next() {
		var c domain.Contributor
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.KeyFingerprint, &c.VotingRights, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan contributor: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list contributors rows: %w", err)
	}
	return out, nil
}

var _ domain.ContributorStore = (*ContributorStore)(nil)
