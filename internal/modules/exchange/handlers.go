package exchange

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles exchange rate HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new exchange handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "exchange").Logger(),
	}
}

// HandleList handles GET /
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list rates")
		http.Error(w, "Failed to list rates", http.StatusInternalServerError)
		return
	}
	if rates == nil {
		rates = []domain.ExchangeRate{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rates)
}
