package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/store"
)

// PickRepository handles pick data access
type PickRepository struct {
	q store.Querier
}

// NewPickRepository creates a pick repository
func NewPickRepository(q store.Querier) *PickRepository {
	return &PickRepository{q: q}
}

// Create inserts a pick. A second pick for the same user, game and market
// returns *ErrDuplicate.
func (r *PickRepository) Create(ctx context.Context, pick *store.Pick) error {
	query := `
		INSERT INTO picks (user_id, game_id, market_picked, outcome_picked, odds_at_pick)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING pick_id, created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		pick.UserID, pick.GameID, pick.MarketPicked, pick.OutcomePicked, pick.OddsAtPick,
	).Scan(&pick.PickID, &pick.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating pick: %w", asDuplicate(err))
	}

	return nil
}

// ListByUser returns a user's picks, newest first
func (r *PickRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*store.Pick, error) {
	query := `
		SELECT pick_id, user_id, game_id, market_picked, outcome_picked, odds_at_pick,
			result_units, created_at
		FROM picks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying picks: %w", err)
	}
	defer rows.Close()

	var picks []*store.Pick
	for rows.Next() {
		p := &store.Pick{}
		if err := rows.Scan(
			&p.PickID, &p.UserID, &p.GameID, &p.MarketPicked, &p.OutcomePicked, &p.OddsAtPick,
			&p.ResultUnits, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning pick: %w", err)
		}
		picks = append(picks, p)
	}

	return picks, rows.Err()
}
