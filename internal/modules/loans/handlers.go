package loans

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles loan calculation HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new loans handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "loans").Logger(),
	}
}

// HandleCalculate handles POST /
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var params CalculationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Calculate(params)
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
	var calc *domain.CalculationInputError
	switch {
	case errors.As(err, &mf), errors.As(err, &inv), errors.As(err, &calc):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Loan calculation failed")
		http.Error(w, "Loan calculation failed", http.StatusInternalServerError)
	}
}
