package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelar-dev/solarb/internal/domain"
)

// BundleStore implements domain.BundleStore using PostgreSQL. Only terminal
// outcomes are written; pending bundles live in the in-memory table.
type BundleStore struct {
	pool *pgxpool.Pool
}

var _ domain.BundleStore = (*BundleStore)(nil)

// NewBundleStore creates a new BundleStore backed by the given connection pool.
func NewBundleStore(pool *pgxpool.Pool) *BundleStore {
	return &BundleStore{pool: pool}
}

const bundleCols = `bundle_id, kind, status, tx_count, relay_id, detail,
	created_at, resolved_at`

// Create stores a resolved bundle outcome.
func (s *BundleStore) Create(ctx context.Context, outcome domain.BundleOutcome) error {
	const query = `
		INSERT INTO bundle_outcomes (
			bundle_id, kind, status, tx_count, relay_id, detail,
			created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		outcome.BundleID, string(outcome.Kind), string(outcome.Status),
		outcome.TxCount, outcome.RelayID, outcome.Detail,
		outcome.CreatedAt, outcome.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bundle outcome %s: %w", outcome.BundleID, err)
	}
	return nil
}

// ListBefore returns outcomes resolved strictly before the given time,
// oldest first.
func (s *BundleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BundleOutcome, error) {
	query := `SELECT ` + bundleCols + `
		FROM bundle_outcomes
		WHERE resolved_at < $1
		ORDER BY resolved_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bundle outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.BundleOutcome
	for rows.Next() {
		var (
			outcome domain.BundleOutcome
			kind    string
			status  string
		)
		if err := rows.Scan(
			&outcome.BundleID, &kind, &status, &outcome.TxCount,
			&outcome.RelayID, &outcome.Detail,
			&outcome.CreatedAt, &outcome.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan bundle outcome: %w", err)
		}
		outcome.Kind = domain.BundleKind(kind)
		outcome.Status = domain.BundleStatus(status)
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bundle outcomes: %w", err)
	}
	return outcomes, nil
}

// DeleteBefore removes outcomes resolved strictly before the given time and
// returns the number of rows deleted.
func (s *BundleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM bundle_outcomes WHERE resolved_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete bundle outcomes: %w", err)
	}
	return tag.RowsAffected(), nil
}
