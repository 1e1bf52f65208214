package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/store"
)

// CompileService is the slice of the compile service the REST layer
// consumes.
type CompileService interface {
	Trigger(ctx context.Context, req compile.Request) (*store.CompileRun, error)
	Status(ctx context.Context) (*store.CompileRun, error)
	History(ctx context.Context, limit int) ([]*store.CompileRun, error)
	Run(ctx context.Context, runID string) (*store.CompileRun, error)
}

// CompileHandler proxies API calls to the compile service.
type CompileHandler struct {
	service      CompileService
	historyLimit int
}

// NewCompileHandler wires the REST layer to the compile service.
func NewCompileHandler(service CompileService, historyLimit int) *CompileHandler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &CompileHandler{service: service, historyLimit: historyLimit}
}

// HandleTrigger handles POST /api/v1/compile
func (h *CompileHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req compile.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	run, err := h.service.Trigger(r.Context(), req)
	if err != nil {
		switch {
		case compile.IsValidationError(err):
			respondError(w, http.StatusBadRequest, "Invalid compile request", err)
		case errors.Is(err, compile.ErrRunActive):
			respondError(w, http.StatusConflict, "A compilation run is already active", err)
		default:
			respondError(w, http.StatusInternalServerError, "Failed to start compilation", err)
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run": run,
	})
}

// HandleListRuns handles GET /api/v1/compile/runs
func (h *CompileHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.History(r.Context(), h.historyLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run history", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/v1/compile/runs/{runID}
func (h *CompileHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["runID"]

	run, err := h.service.Run(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run", err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// HandleStatus handles GET /api/v1/compile/status
func (h *CompileHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	if run == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "idle",
			"message": "No runs recorded",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": run.Status,
		"run":    run,
	})
}
