package realestate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles real estate HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new real estate handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "real_estate").Logger(),
	}
}

// HandleList handles GET /
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	properties, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list real estate")
		http.Error(w, "Failed to list real estate", http.StatusInternalServerError)
		return
	}
	if properties == nil {
		properties = []domain.RealEstate{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(properties)
}

// HandleCreate handles POST /
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var property domain.RealEstate
	if err := json.NewDecoder(r.Body).Decode(&property); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(property)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleUpdate handles PUT /{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid real estate id", http.StatusBadRequest)
		return
	}
	var property domain.RealEstate
	if err := json.NewDecoder(r.Body).Decode(&property); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	property.ID = id
	removeUnassigned := r.URL.Query().Get("remove_unassigned_flows") == "true"
	if err := h.service.Update(property, removeUnassigned); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid real estate id", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var mf *domain.MissingFieldsError
	var inv *domain.InvalidFieldError
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		http.Error(w, "Real estate not found", http.StatusNotFound)
	case errors.As(err, &mf), errors.As(err, &inv):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Real estate operation failed")
		http.Error(w, "Real estate operation failed", http.StatusInternalServerError)
	}
}
