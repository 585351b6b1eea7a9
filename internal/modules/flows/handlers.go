package flows

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Handler handles flow HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new flows handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "flows").Logger(),
	}
}

// HandleList handles GET /
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	flows, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list flows")
		http.Error(w, "Failed to list flows", http.StatusInternalServerError)
		return
	}
	if flows == nil {
		flows = []domain.PeriodicFlow{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(flows)
}

// HandleCreate handles POST /
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var f domain.PeriodicFlow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(f)
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
		http.Error(w, "Invalid flow id", http.StatusBadRequest)
		return
	}
	var f domain.PeriodicFlow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	f.ID = id
	if err := h.service.Update(f); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid flow id", http.StatusBadRequest)
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
		http.Error(w, "Flow not found", http.StatusNotFound)
	case errors.As(err, &mf), errors.As(err, &inv):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Flow operation failed")
		http.Error(w, "Flow operation failed", http.StatusInternalServerError)
	}
}

// HandleUpcoming handles GET /upcoming?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	from := dates.Today()
	to := from.AddMonths(12)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			http.Error(w, "Invalid from. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := dates.ParseDate(v)
		if err != nil {
			http.Error(w, "Invalid to. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		to = d
	}
	if to.Before(from) {
		http.Error(w, "from must be <= to", http.StatusBadRequest)
		return
	}

	events, err := h.service.Upcoming(from, to)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to expand upcoming flows")
		http.Error(w, "Failed to expand upcoming flows", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []MoneyEvent{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// HandleListPending handles GET /pending
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	flows, err := h.service.GetAllPending()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list pending flows")
		http.Error(w, "Failed to list pending flows", http.StatusInternalServerError)
		return
	}
	if flows == nil {
		flows = []domain.PendingFlow{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(flows)
}

// HandleCreatePending handles POST /pending
func (h *Handler) HandleCreatePending(w http.ResponseWriter, r *http.Request) {
	var f domain.PendingFlow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.service.CreatePending(f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleUpdatePending handles PUT /pending/{id}
func (h *Handler) HandleUpdatePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid flow id", http.StatusBadRequest)
		return
	}
	var f domain.PendingFlow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	f.ID = id
	if err := h.service.UpdatePending(f); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeletePending handles DELETE /pending/{id}
func (h *Handler) HandleDeletePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid flow id", http.StatusBadRequest)
		return
	}
	if err := h.service.DeletePending(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
