package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/auth"
	"github.com/fortuna/pickvs/internal/service"
	"github.com/fortuna/pickvs/internal/store"
)

// UserAccounts is the user service as seen by the handlers
type UserAccounts interface {
	Register(ctx context.Context, username, email, password string) (*store.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, userID uuid.UUID) (*store.User, error)
}

// AuthHandler serves registration, login and the profile
type AuthHandler struct {
	users UserAccounts
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(users UserAccounts) *AuthHandler {
	return &AuthHandler{users: users}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondInvalid(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "Username already exists", nil)
		return
	case errors.Is(err, service.ErrEmailTaken):
		respondError(w, http.StatusConflict, "Email already registered", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to register user", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": user.UserID,
		"message": "User registered successfully",
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondInvalid(w, err)
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me handles GET /api/v1/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
		return
	}

	user, err := h.users.Profile(r.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		respondError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch profile", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     user.UserID,
		"username":    user.Username,
		"email":       user.Email,
		"total_units": user.TotalUnits,
		"roi":         user.ROI,
		"total_picks": user.TotalPicks,
	})
}
