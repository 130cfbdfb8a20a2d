package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/pkg/checkpoint"
)

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.deps.Version})
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Registry == nil {
		writeError(w, http.StatusNotImplemented, "NO_REGISTRY", "job registry persistence is disabled")
		return
	}
	records, err := h.deps.Registry.List()
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "REGISTRY_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": records})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Registry == nil {
		writeError(w, http.StatusNotImplemented, "NO_REGISTRY", "job registry persistence is disabled")
		return
	}
	jobID := chi.URLParam(r, "jobID")
	record, err := h.deps.Registry.Get(jobID)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no record for job "+jobID)
			return
		}
		h.logger.Error("failed to read job record", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "REGISTRY_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handlers) latestCheckpoint(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	root, err := checkpoint.ResolveRoot(h.deps.View, h.deps.Base, jobID, h.deps.Layout)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_LAYOUT", err.Error())
		return
	}
	handle, err := h.deps.Locator.FindLatestComplete(r.Context(), root)
	if err != nil {
		h.logger.Error("checkpoint scan failed", zap.String("root", root), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SCAN_ERROR", err.Error())
		return
	}
	if handle == nil {
		writeError(w, http.StatusNotFound, "NO_CHECKPOINT", "no complete checkpoint under "+root)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}
