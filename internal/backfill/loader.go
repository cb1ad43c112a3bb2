package backfill

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/ingest/oddsdata"
	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

// Default chunk sizes for the two load phases.
const (
	DefaultGameBatchSize = 500
	DefaultOddsBatchSize = 1000
)

// GameStore is the storage side of the games phase: one bulk upsert per
// chunk, then one bulk lookup of the surrogate keys.
type GameStore interface {
	UpsertGames(ctx context.Context, games []oddsdata.GameRecord) error
	ResolveGameKeys(ctx context.Context, apiGameIDs []string) (map[string]uuid.UUID, error)
}

// OddsStore is the storage side of the odds phase.
type OddsStore interface {
	UpsertOdds(ctx context.Context, rows []repository.OddsRow) error
}

// GameKeyMap maps api_game_id to game_id for games written by LoadGames.
// Only LoadGames produces a populated map, so LoadOdds cannot run before it.
type GameKeyMap struct {
	keys map[string]uuid.UUID
}

// Lookup returns the surrogate key for an api_game_id.
func (m GameKeyMap) Lookup(apiGameID string) (uuid.UUID, bool) {
	id, ok := m.keys[apiGameID]
	return id, ok
}

// Len returns the number of resolved games.
func (m GameKeyMap) Len() int {
	return len(m.keys)
}

// OddsStats reports what LoadOdds wrote and what it dropped.
type OddsStats struct {
	Written int
	// Skipped counts records whose game had no resolved key.
	Skipped int
}

// progressFunc is called after each chunk with the records processed so far.
type progressFunc func(done, total int)

// LoadGames upserts games in chunks of batchSize and returns the key mapping
// for every game it wrote. Each chunk costs one upsert and one key lookup.
func LoadGames(ctx context.Context, s GameStore, records []oddsdata.GameRecord, batchSize int) (GameKeyMap, error) {
	return loadGames(ctx, s, records, batchSize, nil)
}

// LoadOdds upserts odds in chunks of batchSize, resolving each record's game
// through keys. Records for unknown games are skipped and counted.
func LoadOdds(ctx context.Context, s OddsStore, records []oddsdata.OddsRecord, keys GameKeyMap, batchSize int) (OddsStats, error) {
	return loadOdds(ctx, s, records, keys, batchSize, nil)
}

func loadGames(ctx context.Context, s GameStore, records []oddsdata.GameRecord, batchSize int, progress progressFunc) (GameKeyMap, error) {
	batchSize = clampBatch(batchSize, DefaultGameBatchSize, repository.MaxGameBatch)
	keys := GameKeyMap{keys: make(map[string]uuid.UUID, len(records)/2+1)}

	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return GameKeyMap{}, err
		}

		end := min(start+batchSize, len(records))
		chunk := dedupeGames(records[start:end])

		if err := s.UpsertGames(ctx, chunk); err != nil {
			return GameKeyMap{}, fmt.Errorf("games chunk %d-%d: %w", start, end, err)
		}

		ids := make([]string, len(chunk))
		for i, g := range chunk {
			ids[i] = g.APIGameID
		}

		resolved, err := s.ResolveGameKeys(ctx, ids)
		if err != nil {
			return GameKeyMap{}, fmt.Errorf("games chunk %d-%d: %w", start, end, err)
		}
		for apiGameID, gameID := range resolved {
			keys.keys[apiGameID] = gameID
		}

		if progress != nil {
			progress(end, len(records))
		}
	}

	return keys, nil
}

func loadOdds(ctx context.Context, s OddsStore, records []oddsdata.OddsRecord, keys GameKeyMap, batchSize int, progress progressFunc) (OddsStats, error) {
	batchSize = clampBatch(batchSize, DefaultOddsBatchSize, repository.MaxOddsBatch)
	var stats OddsStats

	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(start+batchSize, len(records))

		rows := make([]repository.OddsRow, 0, end-start)
		for _, rec := range records[start:end] {
			gameID, ok := keys.Lookup(rec.APIGameID)
			if !ok {
				stats.Skipped++
				continue
			}
			rows = append(rows, repository.OddsRow{
				GameID:     gameID,
				MarketType: rec.MarketType,
				HomeOdds:   rec.HomeOdds,
				AwayOdds:   rec.AwayOdds,
				LineValue:  rec.LineValue,
			})
		}
		rows = dedupeOdds(rows)

		if len(rows) > 0 {
			if err := s.UpsertOdds(ctx, rows); err != nil {
				return stats, fmt.Errorf("odds chunk %d-%d: %w", start, end, err)
			}
			stats.Written += len(rows)
		}

		if progress != nil {
			progress(end, len(records))
		}
	}

	return stats, nil
}

// dedupeGames collapses repeated api_game_ids, keeping the last record in
// the position of the first. One statement may not touch a row twice.
func dedupeGames(records []oddsdata.GameRecord) []oddsdata.GameRecord {
	out := make([]oddsdata.GameRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		if i, ok := seen[rec.APIGameID]; ok {
			out[i] = rec
			continue
		}
		seen[rec.APIGameID] = len(out)
		out = append(out, rec)
	}
	return out
}

type oddsKey struct {
	gameID uuid.UUID
	market store.MarketType
}

// dedupeOdds collapses repeated (game_id, market_type) pairs, last wins.
func dedupeOdds(rows []repository.OddsRow) []repository.OddsRow {
	out := make([]repository.OddsRow, 0, len(rows))
	seen := make(map[oddsKey]int, len(rows))
	for _, row := range rows {
		key := oddsKey{gameID: row.GameID, market: row.MarketType}
		if i, ok := seen[key]; ok {
			out[i] = row
			continue
		}
		seen[key] = len(out)
		out = append(out, row)
	}
	return out
}

func clampBatch(size, fallback, limit int) int {
	if size <= 0 {
		return fallback
	}
	if size > limit {
		return limit
	}
	return size
}
