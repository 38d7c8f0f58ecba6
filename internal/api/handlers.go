package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/results"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// RunStore is the read surface the API needs from the results layer.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]*results.Run, error)
	GetRun(ctx context.Context, id int64) (*results.Run, error)
	GetSteps(ctx context.Context, runID int64) ([]*contracts.StepRecord, error)
}

// RunsHandler serves persisted runs and their step records.
type RunsHandler struct {
	store  RunStore
	logger *logger.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(store RunStore, log *logger.Logger) *RunsHandler {
	return &RunsHandler{store: store, logger: log}
}

// List returns recent runs.
// GET /api/runs?limit=N
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*results.Run{}
	}

	respondJSON(w, http.StatusOK, runs)
}

// Get returns one run.
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Steps returns the step records of one run.
// GET /api/runs/{id}/steps
func (h *RunsHandler) Steps(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	steps, err := h.store.GetSteps(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run steps")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve steps")
		return
	}
	if steps == nil {
		steps = []*contracts.StepRecord{}
	}

	respondJSON(w, http.StatusOK, steps)
}

func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
