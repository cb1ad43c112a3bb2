package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fortuna/pickvs/internal/store"
)

// oddsColumns is the width of one odds tuple in a multi-row upsert.
const oddsColumns = 5

// MaxOddsBatch keeps a single statement under the 65535 bind parameter limit.
const MaxOddsBatch = 65535 / oddsColumns

// OddsRow is an odds record whose game has been resolved to its surrogate key.
type OddsRow struct {
	GameID     uuid.UUID
	MarketType store.MarketType
	HomeOdds   float64
	AwayOdds   float64
	LineValue  *float64
}

// OddsRepository handles odds data access
type OddsRepository struct {
	q store.Querier
}

// NewOddsRepository creates an odds repository on a pool or a transaction
func NewOddsRepository(q store.Querier) *OddsRepository {
	return &OddsRepository{q: q}
}

// UpsertOdds writes all rows in one multi-row statement keyed by
// (game_id, market_type). Rows must not repeat a key.
func (r *OddsRepository) UpsertOdds(ctx context.Context, rows []OddsRow) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > MaxOddsBatch {
		return fmt.Errorf("upserting odds: batch of %d exceeds %d", len(rows), MaxOddsBatch)
	}

	query := `
		INSERT INTO odds (game_id, market_type, home_odds, away_odds, line_value)
		VALUES ` + valuesClause(len(rows), oddsColumns) + `
		ON CONFLICT (game_id, market_type) DO UPDATE SET
			home_odds = EXCLUDED.home_odds,
			away_odds = EXCLUDED.away_odds,
			line_value = EXCLUDED.line_value
	`

	args := make([]interface{}, 0, len(rows)*oddsColumns)
	for _, o := range rows {
		rowArgs, err := oddsArgs(o)
		if err != nil {
			return fmt.Errorf("upserting odds: %w", err)
		}
		args = append(args, rowArgs...)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting %d odds: %w", len(rows), err)
	}

	return nil
}

// UpsertOdd writes a single odds row. The loader never calls this; it is
// the row-at-a-time baseline.
func (r *OddsRepository) UpsertOdd(ctx context.Context, o OddsRow) error {
	query := `
		INSERT INTO odds (game_id, market_type, home_odds, away_odds, line_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, market_type) DO UPDATE SET
			home_odds = EXCLUDED.home_odds,
			away_odds = EXCLUDED.away_odds,
			line_value = EXCLUDED.line_value
	`

	args, err := oddsArgs(o)
	if err != nil {
		return fmt.Errorf("upserting odds: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting %s odds for game %s: %w", o.MarketType, o.GameID, err)
	}

	return nil
}

// GetByGameIDs returns the odds of every listed game in one query, grouped
// by game and ordered by market.
func (r *OddsRepository) GetByGameIDs(ctx context.Context, gameIDs []uuid.UUID) (map[uuid.UUID][]store.Odds, error) {
	result := make(map[uuid.UUID][]store.Odds, len(gameIDs))
	if len(gameIDs) == 0 {
		return result, nil
	}

	ids := make([]string, len(gameIDs))
	for i, id := range gameIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT game_id, market_type, home_odds, away_odds, line_value
		FROM odds
		WHERE game_id = ANY($1::uuid[])
		ORDER BY game_id, CASE market_type
			WHEN 'moneyline' THEN 1
			WHEN 'spread' THEN 2
			ELSE 3
		END
	`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying odds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o store.Odds
		var market string
		if err := rows.Scan(&o.GameID, &market, &o.HomeOdds, &o.AwayOdds, &o.LineValue); err != nil {
			return nil, fmt.Errorf("scanning odds: %w", err)
		}
		if o.MarketType, err = store.ParseMarketType(market); err != nil {
			return nil, fmt.Errorf("odds for game %s: %w", o.GameID, err)
		}
		result[o.GameID] = append(result[o.GameID], o)
	}

	return result, rows.Err()
}

// ErrNonFinite rejects NaN and infinite prices or lines, which NUMERIC
// columns cannot hold and decimal.NewFromFloat panics on.
var ErrNonFinite = errors.New("non-finite odds value")

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// oddsArgs renders one row as bind parameters, rounding to the column scale.
func oddsArgs(o OddsRow) ([]interface{}, error) {
	if !finite(o.HomeOdds) || !finite(o.AwayOdds) || (o.LineValue != nil && !finite(*o.LineValue)) {
		return nil, fmt.Errorf("%s odds for game %s: %w", o.MarketType, o.GameID, ErrNonFinite)
	}

	line := decimal.NullDecimal{}
	if o.LineValue != nil {
		line = decimal.NewNullDecimal(decimal.NewFromFloat(*o.LineValue).Round(2))
	}

	return []interface{}{
		o.GameID,
		o.MarketType.String(),
		decimal.NewFromFloat(o.HomeOdds).Round(4),
		decimal.NewFromFloat(o.AwayOdds).Round(4),
		line,
	}, nil
}
