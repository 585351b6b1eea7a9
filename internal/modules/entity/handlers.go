package entity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles entity HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new entity handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "entity").Logger(),
	}
}

// HandleList handles GET / - list entities with connection status
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list entities")
		http.Error(w, "Failed to list entities", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

// HandleGet handles GET /{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid entity id", http.StatusBadRequest)
		return
	}
	status, err := h.service.Get(id)
	if errors.Is(err, domain.ErrEntityNotFound) {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("entity_id", id.String()).Msg("Failed to get entity")
		http.Error(w, "Failed to get entity", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// HandleCreate handles POST / - register a manual entity
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string            `json:"name"`
		Type domain.EntityType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e, err := h.service.CreateManual(req.Name, req.Type)
	if err != nil {
		var mf *domain.MissingFieldsError
		if errors.As(err, &mf) {
			http.Error(w, mf.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to create entity")
		http.Error(w, "Failed to create entity", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(e)
}

// HandleDisconnect handles DELETE /{id}/connection
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid entity id", http.StatusBadRequest)
		return
	}
	if err := h.service.Disconnect(id); err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			http.Error(w, "Entity not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("entity_id", id.String()).Msg("Failed to disconnect entity")
		http.Error(w, "Failed to disconnect entity", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
