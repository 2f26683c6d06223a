package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/common/models"
	"github.com/cohortica-ai/platform/pkg/store"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	stays   *store.StayRepository
}

func NewHTTPHandler(service *Service, stays *store.StayRepository) *HTTPHandler {
	return &HTTPHandler{service: service, stays: stays}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/events", h.handleLoadEvents).Methods(http.MethodPost)
	router.HandleFunc("/stays", h.handleLoadStays).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleLoadEvents(w http.ResponseWriter, r *http.Request) {
	var req models.IngestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid event batch payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Load(r.Context(), req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to load events")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

type loadStaysRequest struct {
	Stays []models.Stay `json:"stays"`
}

func (h *HTTPHandler) handleLoadStays(w http.ResponseWriter, r *http.Request) {
	var req loadStaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid stay batch payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Stays) == 0 {
		http.Error(w, "empty stay batch", http.StatusBadRequest)
		return
	}

	if err := h.stays.Upsert(r.Context(), req.Stays); err != nil {
		logger.Log.WithError(err).Error("failed to load stays")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"accepted": len(req.Stays)})
}
