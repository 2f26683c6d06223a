package serving

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/stays/{id}/features", h.handleGetFeatures).Methods(http.MethodGet)
	router.HandleFunc("/stays/{id}/features/refresh", h.handleRefreshFeatures).Methods(http.MethodPost)
	router.HandleFunc("/cache/warm", h.handleWarmCache).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stayID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	set, err := h.service.GetFeatureSet(r.Context(), stayID)
	if err != nil {
		if errors.Is(err, ErrStayNotFound) {
			http.Error(w, "stay not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to serve feature set")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func (h *HTTPHandler) handleRefreshFeatures(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stayID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	set, err := h.service.RefreshStay(r.Context(), stayID)
	if err != nil {
		if errors.Is(err, ErrStayNotFound) {
			http.Error(w, "stay not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to refresh feature set")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func (h *HTTPHandler) handleWarmCache(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.WarmCache(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("cache warm-up failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"warmed": count})
}
