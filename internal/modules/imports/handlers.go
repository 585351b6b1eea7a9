package imports

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles import HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new imports handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "imports").Logger(),
	}
}

// HandleImport handles POST /
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Run(req)
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
	case errors.Is(err, domain.ErrExecutionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &mf), errors.As(err, &inv):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Import failed")
		http.Error(w, "Import failed", http.StatusInternalServerError)
	}
}
