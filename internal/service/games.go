package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/cache"
	"github.com/fortuna/pickvs/internal/store"
)

const (
	upcomingCachePrefix = "games:upcoming:"
	upcomingCacheTTL    = 30 * time.Second
)

// GameReader is the game storage used by the services
type GameReader interface {
	GetUpcoming(ctx context.Context, now time.Time, limit int) ([]*store.Game, error)
	GetByID(ctx context.Context, gameID uuid.UUID) (*store.Game, error)
}

// OddsReader loads odds for many games at once
type OddsReader interface {
	GetByGameIDs(ctx context.Context, gameIDs []uuid.UUID) (map[uuid.UUID][]store.Odds, error)
}

// Cache is the subset of cache.RedisCache the game listing uses
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// GameService handles game-related business logic
type GameService struct {
	games GameReader
	odds  OddsReader
	cache Cache
	now   func() time.Time
}

// NewGameService creates a new game service. cache may be nil.
func NewGameService(games GameReader, odds OddsReader, c Cache) *GameService {
	return &GameService{
		games: games,
		odds:  odds,
		cache: c,
		now:   time.Now,
	}
}

// GetUpcomingGames returns scheduled games with their odds, soonest first.
// Odds for all listed games are fetched in a single query.
func (s *GameService) GetUpcomingGames(ctx context.Context, limit int) ([]store.GameWithOdds, error) {
	key := fmt.Sprintf("%s%d", upcomingCachePrefix, limit)

	if s.cache != nil {
		var cached []store.GameWithOdds
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("Warning: upcoming games cache read failed: %v", err)
		}
	}

	games, err := s.games.GetUpcoming(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("fetching upcoming games: %w", err)
	}

	ids := make([]uuid.UUID, len(games))
	for i, g := range games {
		ids[i] = g.GameID
	}

	oddsByGame, err := s.odds.GetByGameIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching odds: %w", err)
	}

	result := make([]store.GameWithOdds, 0, len(games))
	for _, g := range games {
		odds := oddsByGame[g.GameID]
		if odds == nil {
			odds = []store.Odds{}
		}
		result = append(result, store.GameWithOdds{
			GameID:        g.GameID,
			HomeTeam:      g.HomeTeam,
			AwayTeam:      g.AwayTeam,
			GameTimestamp: g.GameTimestamp,
			Status:        g.Status,
			Odds:          odds,
		})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, result, upcomingCacheTTL); err != nil {
			log.Printf("Warning: upcoming games cache write failed: %v", err)
		}
	}

	return result, nil
}

// InvalidateUpcoming drops every cached upcoming games listing
func (s *GameService) InvalidateUpcoming(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePrefix(ctx, upcomingCachePrefix)
}
