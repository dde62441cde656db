package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelar-dev/solarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, token, base_token, buy_venue, sell_venue,
	buy_price, sell_price, spread_pct, est_profit_pct, detected_at`

// Create stores a detected opportunity.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, token, base_token, buy_venue, sell_venue,
			buy_price, sell_price, spread_pct, est_profit_pct, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Token, opp.BaseToken, opp.BuyVenue, opp.SellVenue,
		opp.BuyPrice, opp.SellPrice, opp.SpreadPct, opp.EstProfitPct, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListBefore returns opportunities detected strictly before the given time,
// oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunityCols + `
		FROM opportunities
		WHERE detected_at < $1
		ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		if err := rows.Scan(
			&opp.ID, &opp.Token, &opp.BaseToken, &opp.BuyVenue, &opp.SellVenue,
			&opp.BuyPrice, &opp.SellPrice, &opp.SpreadPct, &opp.EstProfitPct, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	return opps, nil
}

// DeleteBefore removes opportunities detected strictly before the given time
// and returns the number of rows deleted.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}
