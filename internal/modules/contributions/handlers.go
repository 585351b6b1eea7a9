package contributions

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

// Handler handles contribution HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new contributions handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "contributions").Logger(),
	}
}

// HandleGet handles GET / - list contributions
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	contributions, err := h.service.Get(domain.ContributionQuery{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get contributions")
		http.Error(w, "Failed to get contributions", http.StatusInternalServerError)
		return
	}
	if contributions == nil {
		contributions = []domain.PeriodicContribution{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contributions)
}

// HandlePlan handles GET /plan?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
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

	plan, err := h.service.Plan(domain.ContributionQuery{}, from, to)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build contribution plan")
		http.Error(w, "Failed to build contribution plan", http.StatusInternalServerError)
		return
	}
	if plan == nil {
		plan = []ScheduledContribution{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plan)
}

// HandleCreate handles POST / - declare a manual contribution
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var c domain.PeriodicContribution
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	saved, err := h.service.SaveManual(c)
	if err != nil {
		var mf *domain.MissingFieldsError
		var inv *domain.InvalidFieldError
		if errors.As(err, &mf) || errors.As(err, &inv) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to save contribution")
		http.Error(w, "Failed to save contribution", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saved)
}

// HandleDelete handles DELETE /{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid contribution id", http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(id); err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			http.Error(w, "Contribution not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to delete contribution")
		http.Error(w, "Failed to delete contribution", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
