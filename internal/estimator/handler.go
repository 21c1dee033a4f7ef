package estimator

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the estimator's HTTP surface.
func NewRouter(logger *zap.Logger) http.Handler {
	h := &handler{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/api/estimates", h.createEstimate)
	return r
}

type handler struct {
	logger *zap.Logger
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

func (h *handler) createEstimate(w http.ResponseWriter, r *http.Request) {
	var inputs Inputs
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{"malformed request body"}})
		return
	}

	if errs := inputs.Validate(); len(errs) > 0 {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Errors: errs})
		return
	}

	h.writeJSON(w, http.StatusOK, Estimate(&inputs))
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
