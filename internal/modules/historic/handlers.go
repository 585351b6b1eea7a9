package historic

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles historic HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new historic handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "historic").Logger(),
	}
}

// HandleGet handles GET / - reduced investment history with a summary.
// Query parameters: entities, product_types, from_date, to_date.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	var q domain.HistoricQuery
	values := r.URL.Query()
	for _, v := range values["entities"] {
		id, err := uuid.Parse(v)
		if err != nil {
			http.Error(w, "Invalid entity id: "+v, http.StatusBadRequest)
			return
		}
		q.Entities = append(q.Entities, id)
	}
	for _, pt := range values["product_types"] {
		q.ProductTypes = append(q.ProductTypes, domain.ProductType(pt))
	}
	if v := values.Get("from_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "Invalid from_date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		q.FromDate = &t
	}
	if v := values.Get("to_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "Invalid to_date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		q.ToDate = &end
	}

	entries, err := h.service.Get(q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get historic entries")
		http.Error(w, "Failed to get historic entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.HistoricEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"summary": h.service.Summarize(entries),
	})
}
