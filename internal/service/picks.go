package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

// PickStore persists picks
type PickStore interface {
	Create(ctx context.Context, pick *store.Pick) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*store.Pick, error)
}

// PickRequest is a user's pick on one market of one game
type PickRequest struct {
	GameID        uuid.UUID
	MarketPicked  string
	OutcomePicked string
	OddsAtPick    decimal.Decimal
}

// PickService enforces the pick rules
type PickService struct {
	games GameReader
	picks PickStore
	now   func() time.Time
}

// NewPickService creates a new pick service
func NewPickService(games GameReader, picks PickStore) *PickService {
	return &PickService{
		games: games,
		picks: picks,
		now:   time.Now,
	}
}

// SubmitPick records a pick if the game has not started and the user has
// no pick on that market yet.
func (s *PickService) SubmitPick(ctx context.Context, userID uuid.UUID, req PickRequest) (*store.Pick, error) {
	game, err := s.games.GetByID(ctx, req.GameID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching game: %w", err)
	}

	if game.Status != store.GameStatusScheduled || !s.now().Before(game.GameTimestamp) {
		return nil, ErrGameStarted
	}

	pick := &store.Pick{
		UserID:        userID,
		GameID:        req.GameID,
		MarketPicked:  req.MarketPicked,
		OutcomePicked: req.OutcomePicked,
		OddsAtPick:    req.OddsAtPick.Round(4),
	}

	if err := s.picks.Create(ctx, pick); err != nil {
		var dup *repository.ErrDuplicate
		if errors.As(err, &dup) {
			return nil, ErrDuplicatePick
		}
		return nil, fmt.Errorf("saving pick: %w", err)
	}

	return pick, nil
}

// ListPicks returns the user's most recent picks
func (s *PickService) ListPicks(ctx context.Context, userID uuid.UUID, limit int) ([]*store.Pick, error) {
	picks, err := s.picks.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching picks: %w", err)
	}
	if picks == nil {
		picks = []*store.Pick{}
	}
	return picks, nil
}
