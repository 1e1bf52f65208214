package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/calloway/gridfax/internal/service"
	"github.com/calloway/gridfax/internal/stats"
	"github.com/calloway/gridfax/internal/store"
)

// LeaderboardReader is the slice of the leaderboard service the REST
// layer consumes.
type LeaderboardReader interface {
	Top(ctx context.Context, c stats.Category, limit int) (*service.Leaderboard, error)
	All(ctx context.Context) (map[string]*service.Leaderboard, error)
	PlayerStats(ctx context.Context, playerID int64) (map[string]*store.SeasonAggregate, error)
}

// DatabaseChecker reports Postgres health.
type DatabaseChecker interface {
	HealthCheck() error
}

// CacheChecker reports Redis health. A nil checker means Redis is
// disabled.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	leaderboards LeaderboardReader
	db           DatabaseChecker
	redis        CacheChecker
}

// NewHandler creates a new handler
func NewHandler(leaderboards LeaderboardReader, db DatabaseChecker, redis CacheChecker) *Handler {
	return &Handler{
		leaderboards: leaderboards,
		db:           db,
		redis:        redis,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	database := "up"
	if err := h.db.HealthCheck(); err != nil {
		database = "down"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	redis := "disabled"
	if h.redis != nil {
		redis = "up"
		if err := h.redis.HealthCheck(r.Context()); err != nil {
			// The service degrades without Redis but stays up.
			redis = "down"
		}
	}

	respondJSON(w, code, map[string]string{
		"status":   status,
		"service":  "gridfax",
		"database": database,
		"redis":    redis,
	})
}

// GetLeaderboards returns every category at its default size
func (h *Handler) GetLeaderboards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.leaderboards.All(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch leaderboards", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboards": boards,
		"count":        len(boards),
	})
}

// GetLeaderboard returns one category's leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	category, err := stats.ParseCategory(vars["category"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown category", err)
		return
	}

	limit := 0 // service substitutes the category default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	board, err := h.leaderboards.Top(r.Context(), category, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch leaderboard", err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// GetPlayerStats returns a player's per-category season totals
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	playerID, err := strconv.ParseInt(vars["playerID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	categories, err := h.leaderboards.PlayerStats(r.Context(), playerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch player stats", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id":  playerID,
		"categories": categories,
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
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
