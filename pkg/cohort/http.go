package cohort

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/registry"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	composer *Composer
	registry *registry.Registry
}

func NewHTTPHandler(composer *Composer, reg *registry.Registry) *HTTPHandler {
	return &HTTPHandler{composer: composer, registry: reg}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/cohort", h.handleCompose).Methods(http.MethodGet)
	router.HandleFunc("/cohort/export", h.handleExport).Methods(http.MethodGet)
}

func (h *HTTPHandler) features(r *http.Request) []string {
	raw := r.URL.Query().Get("features")
	if raw == "" {
		return h.registry.Names()
	}
	var features []string
	for _, name := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			features = append(features, trimmed)
		}
	}
	return features
}

func (h *HTTPHandler) handleCompose(w http.ResponseWriter, r *http.Request) {
	rows, err := h.composer.Compose(r.Context(), h.features(r))
	if err != nil {
		logger.Log.WithError(err).Error("cohort composition failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="cohort.csv"`)

	if err := h.composer.ExportCSV(r.Context(), h.features(r), w); err != nil {
		logger.Log.WithError(err).Error("cohort export failed")
	}
}
