package extraction

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service      *Service
	materializer *Materializer
}

func NewHTTPHandler(service *Service, materializer *Materializer) *HTTPHandler {
	return &HTTPHandler{service: service, materializer: materializer}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/features", h.handleListFeatures).Methods(http.MethodGet)
	router.HandleFunc("/runs", h.handleEnqueueRun).Methods(http.MethodPost)
	router.HandleFunc("/runs", h.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/windows/estimate", h.handleEstimateWindows).Methods(http.MethodPost)
	router.HandleFunc("/demographics/materialize", h.handleMaterializeDemographics).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	names := h.service.Registry().Names()
	features := make([]interface{}, 0, len(names))
	for _, name := range names {
		if feat, ok := h.service.Registry().Get(name); ok {
			features = append(features, feat)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"features": features})
}

type enqueueRunRequest struct {
	Features    []string `json:"features"`
	RequestedBy string   `json:"requested_by"`
}

func (h *HTTPHandler) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req enqueueRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid run payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.materializer.Enqueue(r.Context(), req.Features, req.RequestedBy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (h *HTTPHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	runs, err := h.materializer.List(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.materializer.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *HTTPHandler) handleEstimateWindows(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.EstimateWindows(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("window estimation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) handleMaterializeDemographics(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RunDemographics(r.Context()); err != nil {
		logger.Log.WithError(err).Error("demographics materialization failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "materialized"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
