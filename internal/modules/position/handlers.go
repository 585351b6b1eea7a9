package position

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles position HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new position handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "position").Logger(),
	}
}

// HandleGet handles GET / - merged positions per entity.
// Query parameters: entities, excluded_entities (comma-separated ids), real.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	merged, err := h.service.Merged(q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	out := map[string]domain.GlobalPosition{}
	for entityID, pos := range merged {
		out[entityID.String()] = pos
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"positions": out})
}

// HandleSaveManual handles POST /manual - store a user-entered snapshot
func (h *Handler) HandleSaveManual(w http.ResponseWriter, r *http.Request) {
	var payload positionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	pos, err := payload.toDomain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.SaveManual(*pos); err != nil {
		var mf *domain.MissingFieldsError
		var inv *domain.InvalidFieldError
		if errors.As(err, &mf) || errors.As(err, &inv) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to save position")
		http.Error(w, "Failed to save position", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type positionPayload struct {
	EntityID string                     `json:"entity_id"`
	Products map[string]json.RawMessage `json:"products"`
}

func (p positionPayload) toDomain() (*domain.GlobalPosition, error) {
	entityID, err := uuid.Parse(p.EntityID)
	if err != nil {
		return nil, &domain.InvalidFieldError{Field: "entity_id", Reason: "not a uuid"}
	}
	products := domain.Products{}
	for productType, raw := range p.Products {
		entries, err := DecodeEntries(domain.ProductType(productType), string(raw))
		if err != nil {
			return nil, &domain.InvalidFieldError{Field: "products." + productType, Reason: err.Error()}
		}
		products[domain.ProductType(productType)] = entries
	}
	return &domain.GlobalPosition{EntityID: entityID, Products: products}, nil
}

func parseQuery(r *http.Request) (domain.PositionQuery, error) {
	var q domain.PositionQuery
	var err error
	if q.Entities, err = parseIDList(r.URL.Query()["entities"]); err != nil {
		return q, err
	}
	if q.ExcludedEntities, err = parseIDList(r.URL.Query()["excluded_entities"]); err != nil {
		return q, err
	}
	if v := r.URL.Query().Get("real"); v != "" {
		real, err := strconv.ParseBool(v)
		if err != nil {
			return q, &domain.InvalidFieldError{Field: "real", Reason: "not a boolean"}
		}
		q.Real = &real
	}
	return q, nil
}

func parseIDList(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, &domain.InvalidFieldError{Field: "entities", Reason: "not a uuid: " + v}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
