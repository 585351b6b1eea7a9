package transactions

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Handler handles transaction HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new transactions handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleGet handles GET / - list transactions with filters.
// Query parameters: entities, excluded_entities, product_types, types,
// from_date, to_date (YYYY-MM-DD), real, limit, offset.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	txs, err := h.service.Get(q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get transactions")
		http.Error(w, "Failed to get transactions", http.StatusInternalServerError)
		return
	}
	if txs.Investment == nil {
		txs.Investment = []domain.InvestmentTx{}
	}
	if txs.Account == nil {
		txs.Account = []domain.AccountTx{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

func parseQuery(r *http.Request) (domain.TransactionQuery, error) {
	var q domain.TransactionQuery
	var err error
	values := r.URL.Query()

	if q.Entities, err = parseIDList(values["entities"]); err != nil {
		return q, err
	}
	if q.ExcludedEntities, err = parseIDList(values["excluded_entities"]); err != nil {
		return q, err
	}
	for _, pt := range values["product_types"] {
		q.ProductTypes = append(q.ProductTypes, domain.ProductType(pt))
	}
	for _, tt := range values["types"] {
		q.Types = append(q.Types, domain.TxType(tt))
	}
	if v := values.Get("from_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return q, &domain.InvalidFieldError{Field: "from_date", Reason: "use YYYY-MM-DD"}
		}
		q.FromDate = &t
	}
	if v := values.Get("to_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return q, &domain.InvalidFieldError{Field: "to_date", Reason: "use YYYY-MM-DD"}
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		q.ToDate = &end
	}
	if v := values.Get("real"); v != "" {
		real, err := strconv.ParseBool(v)
		if err != nil {
			return q, &domain.InvalidFieldError{Field: "real", Reason: "not a boolean"}
		}
		q.Real = &real
	}
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 10000 {
			return q, &domain.InvalidFieldError{Field: "limit", Reason: "must be 1-10000"}
		}
		q.Limit = limit
	}
	if v := values.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return q, &domain.InvalidFieldError{Field: "offset", Reason: "must not be negative"}
		}
		q.Offset = offset
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
