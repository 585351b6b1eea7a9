package fetch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles fetch HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new fetch handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "fetch").Logger(),
	}
}

// HandleFetch handles POST / - run a fetch for one entity
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	var opts domain.FetchOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Fetch(r.Context(), opts)
	if err != nil {
		h.writeError(w, err, opts.EntityID.String())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleLogin handles POST /login - connect an entity
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var opts domain.LoginOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.Login(r.Context(), opts)
	if err != nil {
		var mf *domain.MissingFieldsError
		var inv *domain.InvalidFieldError
		if errors.As(err, &mf) || errors.As(err, &inv) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err, opts.EntityID.String())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, entityID string) {
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		http.Error(w, "Entity not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrExecutionConflict):
		http.Error(w, "Fetch already in progress for entity", http.StatusConflict)
	default:
		h.log.Error().Err(err).Str("entity_id", entityID).Msg("Fetch failed")
		http.Error(w, "Fetch failed", http.StatusInternalServerError)
	}
}
