package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fortuna/pickvs/internal/ingest/oddsdata"
	"github.com/fortuna/pickvs/internal/store"
)

// gameColumns is the width of one games tuple in a multi-row upsert.
const gameColumns = 7

// MaxGameBatch keeps a single statement under the 65535 bind parameter limit.
const MaxGameBatch = 65535 / gameColumns

// GameRepository handles game data access
type GameRepository struct {
	q store.Querier
}

// NewGameRepository creates a game repository on a pool or a transaction
func NewGameRepository(q store.Querier) *GameRepository {
	return &GameRepository{q: q}
}

// UpsertGames writes all records in one multi-row statement keyed by
// api_game_id. On conflict the status, scores and fetched_at are updated.
// Records must not repeat an api_game_id.
func (r *GameRepository) UpsertGames(ctx context.Context, games []oddsdata.GameRecord) error {
	if len(games) == 0 {
		return nil
	}
	if len(games) > MaxGameBatch {
		return fmt.Errorf("upserting games: batch of %d exceeds %d", len(games), MaxGameBatch)
	}

	query := `
		INSERT INTO games (api_game_id, home_team, away_team, game_timestamp, status, home_score, away_score)
		VALUES ` + valuesClause(len(games), gameColumns) + `
		ON CONFLICT (api_game_id) DO UPDATE SET
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			fetched_at = NOW()
	`

	args := make([]interface{}, 0, len(games)*gameColumns)
	for _, g := range games {
		args = append(args,
			g.APIGameID, g.HomeTeam, g.AwayTeam, g.GameTimestamp, g.Status.String(),
			nullableInt(g.HomeScore), nullableInt(g.AwayScore),
		)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting %d games: %w", len(games), err)
	}

	return nil
}

// ResolveGameKeys returns the surrogate game_id for every api_game_id that
// exists. Unknown ids are absent from the result.
func (r *GameRepository) ResolveGameKeys(ctx context.Context, apiGameIDs []string) (map[string]uuid.UUID, error) {
	keys := make(map[string]uuid.UUID, len(apiGameIDs))
	if len(apiGameIDs) == 0 {
		return keys, nil
	}

	query := `SELECT api_game_id, game_id FROM games WHERE api_game_id = ANY($1)`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(apiGameIDs))
	if err != nil {
		return nil, fmt.Errorf("resolving game keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var apiGameID string
		var gameID uuid.UUID
		if err := rows.Scan(&apiGameID, &gameID); err != nil {
			return nil, fmt.Errorf("scanning game key: %w", err)
		}
		keys[apiGameID] = gameID
	}

	return keys, rows.Err()
}

// UpsertGame writes a single game and returns its surrogate key.
// The loader never calls this; it is the row-at-a-time baseline.
func (r *GameRepository) UpsertGame(ctx context.Context, g oddsdata.GameRecord) (uuid.UUID, error) {
	query := `
		INSERT INTO games (api_game_id, home_team, away_team, game_timestamp, status, home_score, away_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (api_game_id) DO UPDATE SET
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			fetched_at = NOW()
		RETURNING game_id
	`

	var gameID uuid.UUID
	err := r.q.QueryRowContext(ctx, query,
		g.APIGameID, g.HomeTeam, g.AwayTeam, g.GameTimestamp, g.Status.String(),
		nullableInt(g.HomeScore), nullableInt(g.AwayScore),
	).Scan(&gameID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting game %s: %w", g.APIGameID, err)
	}

	return gameID, nil
}

// GetByID finds a game by its surrogate key
func (r *GameRepository) GetByID(ctx context.Context, gameID uuid.UUID) (*store.Game, error) {
	query := `
		SELECT game_id, api_game_id, home_team, away_team, game_timestamp, status,
			home_score, away_score, fetched_at
		FROM games
		WHERE game_id = $1
	`

	game, err := scanGame(r.q.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}

	return game, nil
}

// GetUpcoming returns scheduled games starting after now, soonest first
func (r *GameRepository) GetUpcoming(ctx context.Context, now time.Time, limit int) ([]*store.Game, error) {
	query := `
		SELECT game_id, api_game_id, home_team, away_team, game_timestamp, status,
			home_score, away_score, fetched_at
		FROM games
		WHERE status = $1 AND game_timestamp > $2
		ORDER BY game_timestamp
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, store.GameStatusScheduled.String(), now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying upcoming games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*store.Game, error) {
	game := &store.Game{}
	var status string
	err := row.Scan(
		&game.GameID, &game.APIGameID, &game.HomeTeam, &game.AwayTeam, &game.GameTimestamp,
		&status, &game.HomeScore, &game.AwayScore, &game.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	game.Status, err = store.ParseGameStatus(status)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", game.GameID, err)
	}

	return game, nil
}

// scanGames scans multiple game rows
func scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}

func nullableInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
