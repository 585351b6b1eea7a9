package forecast

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles forecast HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new forecast handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "forecast").Logger(),
	}
}

// HandleForecast handles POST /
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Forecast(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var mf *domain.MissingFieldsError
	var inv *domain.InvalidFieldError
	switch {
	case errors.As(err, &mf), errors.As(err, &inv):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Forecast failed")
		http.Error(w, "Forecast failed", http.StatusInternalServerError)
	}
}
