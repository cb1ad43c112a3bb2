package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fortuna/pickvs/internal/auth"
	"github.com/fortuna/pickvs/internal/service"
	"github.com/fortuna/pickvs/internal/store"
)

// PickSubmitter is the pick service as seen by the handlers
type PickSubmitter interface {
	SubmitPick(ctx context.Context, userID uuid.UUID, req service.PickRequest) (*store.Pick, error)
	ListPicks(ctx context.Context, userID uuid.UUID, limit int) ([]*store.Pick, error)
}

// PickHandler serves pick submission
type PickHandler struct {
	picks PickSubmitter
}

// NewPickHandler creates a pick handler
func NewPickHandler(picks PickSubmitter) *PickHandler {
	return &PickHandler{picks: picks}
}

type pickRequest struct {
	GameID        string  `json:"game_id" validate:"required,uuid"`
	MarketPicked  string  `json:"market_picked" validate:"required,oneof=moneyline spread totals"`
	OutcomePicked string  `json:"outcome_picked" validate:"required,max=100"`
	OddsAtPick    float64 `json:"odds_at_pick" validate:"required,gt=1"`
}

// SubmitPick handles POST /api/v1/picks
func (h *PickHandler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
		return
	}

	var req pickRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondInvalid(w, err)
		return
	}

	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game_id", err)
		return
	}

	pick, err := h.picks.SubmitPick(r.Context(), userID, service.PickRequest{
		GameID:        gameID,
		MarketPicked:  req.MarketPicked,
		OutcomePicked: req.OutcomePicked,
		OddsAtPick:    decimal.NewFromFloat(req.OddsAtPick),
	})
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		respondError(w, http.StatusNotFound, "Game not found.", nil)
		return
	case errors.Is(err, service.ErrGameStarted):
		respondError(w, http.StatusBadRequest, "Cannot submit pick for a game after it has started.", nil)
		return
	case errors.Is(err, service.ErrDuplicatePick):
		respondError(w, http.StatusForbidden, "Pick already submitted for this game and market.", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to submit pick", err)
		return
	}

	respondJSON(w, http.StatusCreated, pick)
}

// ListPicks handles GET /api/v1/picks
func (h *PickHandler) ListPicks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
		return
	}

	picks, err := h.picks.ListPicks(r.Context(), userID, queryLimit(r, 50, 200))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch picks", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"picks": picks,
	})
}
