package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fortuna/pickvs/internal/store"
)

const (
	serviceName    = "pickvs"
	serviceVersion = "1.0.0"
)

// HealthChecker reports whether storage is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GameLister serves the upcoming games listing
type GameLister interface {
	GetUpcomingGames(ctx context.Context, limit int) ([]store.GameWithOdds, error)
}

// Handler contains dependencies for the game and health handlers
type Handler struct {
	health HealthChecker
	games  GameLister
}

// NewHandler creates a new handler
func NewHandler(health HealthChecker, games GameLister) *Handler {
	return &Handler{health: health, games: games}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := h.health.HealthCheck(r.Context()); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]string{
		"status":  status,
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GetUpcomingGames returns scheduled games with their odds
func (h *Handler) GetUpcomingGames(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 100)

	games, err := h.games.GetUpcomingGames(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch upcoming games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
	})
}

// queryLimit reads ?limit=, falling back to def for missing or out of range values
func queryLimit(r *http.Request, def, upper int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= upper {
		return l
	}
	return def
}

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags
func decodeAndValidate(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// validationMessage flattens validator errors into "field: rule" pairs
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Field()+": "+rule)
	}
	return strings.Join(parts, ", ")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}

func respondInvalid(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, "Invalid request body", errors.New(validationMessage(err)))
}
