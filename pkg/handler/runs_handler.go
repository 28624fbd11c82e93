package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/db"
	"github.com/yumyai/strainmodel/pkg/middle"
)

const (
	DefaultRunLimit = 50
	MaxRunLimit     = 1000
)

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type RunsResponse struct {
	Runs  []db.Run `json:"runs"`
	Limit int      `json:"limit"`
}

type RunResponse struct {
	Run    db.Run     `json:"run"`
	Events []db.Event `json:"events"`
}

type OrthologsResponse struct {
	RunID     string        `json:"run_id"`
	Orthologs []db.Ortholog `json:"orthologs"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middle.LoggerFrom(r.Context(), logger.L()).Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, ErrorResponse{Error: msg, RequestID: middle.RequestID(r.Context())})
}

// storeError maps a ledger error onto a response. Unknown runs are 404, anything
// else is logged and hidden behind a 500.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	middle.LoggerFrom(r.Context(), logger.L()).Error("Ledger query failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return DefaultRunLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(limit, MaxRunLimit), nil
}

// ListRunsHandler returns the most recent runs, newest first.
func (dbctx *DBContext) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := dbctx.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, RunsResponse{Runs: runs, Limit: limit})
}

// RunHandler returns a run together with its stage events.
func (dbctx *DBContext) RunHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, err := dbctx.Runs.GetRun(r.Context(), runID)
	if err != nil {
		storeError(w, r, err)
		return
	}
	events, err := dbctx.Runs.GetEvents(r.Context(), runID)
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, RunResponse{Run: run, Events: events})
}

// OrthologsHandler returns the gene dictionary of a run in resolution order.
func (dbctx *DBContext) OrthologsHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if _, err := dbctx.Runs.GetRun(r.Context(), runID); err != nil {
		storeError(w, r, err)
		return
	}
	orthologs, err := dbctx.Runs.GetOrthologs(r.Context(), runID)
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OrthologsResponse{RunID: runID, Orthologs: orthologs})
}
