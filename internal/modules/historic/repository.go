package historic

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Repository handles historic entry database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new historic repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "historic").Logger(),
	}
}

// ReplaceForEntity rewrites the reduced ledger of one entity atomically.
// The reducer recomputes every entry on each fetch, so stale rows go first.
func (r *Repository) ReplaceForEntity(entityID uuid.UUID, entries []domain.HistoricEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.ReplaceForEntityTx(tx, entityID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit historic entries: %w", err)
	}
	return nil
}

// ReplaceForEntityTx rewrites the reduced ledger of one entity on an open
// database transaction.
func (r *Repository) ReplaceForEntityTx(tx *sql.Tx, entityID uuid.UUID, entries []domain.HistoricEntry) error {
	if _, err := tx.Exec(`DELETE FROM historic_entries WHERE entity_id = ?`, entityID.String()); err != nil {
		return fmt.Errorf("failed to clear historic entries: %w", err)
	}
	for _, e := range entries {
		if err := insertEntry(tx, e); err != nil {
			return err
		}
	}
	return nil
}

func insertEntry(tx *sql.Tx, e domain.HistoricEntry) error {
	var payload any
	switch {
	case e.RealEstateCF != nil:
		data, err := json.Marshal(e.RealEstateCF)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		payload = string(data)
	case e.Factoring != nil:
		data, err := json.Marshal(e.Factoring)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		payload = string(data)
	}
	var related any
	if len(e.RelatedTxs) > 0 {
		data, err := json.Marshal(e.RelatedTxs)
		if err != nil {
			return fmt.Errorf("failed to encode related txs: %w", err)
		}
		related = string(data)
	}
	var maturity any
	if e.EffectiveMaturity != nil {
		maturity = e.EffectiveMaturity.String()
	}
	_, err := tx.Exec(`
		INSERT INTO historic_entries (
			id, name, invested, returned, currency, product_type, entity_id,
			last_invest_date, last_tx_date, last_return_tx, effective_maturity,
			net_return, fees, retentions, interests, repaid, state, payload, related_txs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID.String(), e.Name, e.Invested.String(), decStr(e.Returned), e.Currency,
		string(e.ProductType), e.EntityID.String(), e.LastInvestDate, e.LastTxDate,
		e.LastReturnTx, maturity, decStr(e.NetReturn), e.Fees.String(),
		e.Retentions.String(), e.Interests.String(), e.Repaid.String(),
		nullStr(e.State), payload, related,
	)
	if err != nil {
		return fmt.Errorf("failed to insert historic entry %s: %w", e.Name, err)
	}
	return nil
}

// GetByQuery returns stored entries, newest activity first
func (r *Repository) GetByQuery(q domain.HistoricQuery) ([]domain.HistoricEntry, error) {
	query := `
		SELECT id, name, invested, returned, currency, product_type, entity_id,
			last_invest_date, last_tx_date, last_return_tx, effective_maturity,
			net_return, fees, retentions, interests, repaid, state, payload, related_txs
		FROM historic_entries
	`
	var (
		conds []string
		args  []any
	)
	if len(q.Entities) > 0 {
		conds = append(conds, "entity_id IN ("+placeholders(len(q.Entities))+")")
		for _, id := range q.Entities {
			args = append(args, id.String())
		}
	}
	if len(q.ProductTypes) > 0 {
		conds = append(conds, "product_type IN ("+placeholders(len(q.ProductTypes))+")")
		for _, pt := range q.ProductTypes {
			args = append(args, string(pt))
		}
	}
	if q.FromDate != nil {
		conds = append(conds, "last_tx_date >= ?")
		args = append(args, *q.FromDate)
	}
	if q.ToDate != nil {
		conds = append(conds, "last_tx_date <= ?")
		args = append(args, *q.ToDate)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY last_tx_date DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query historic entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoricEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (domain.HistoricEntry, error) {
	var (
		e          domain.HistoricEntry
		id         string
		invested   string
		returned   sql.NullString
		entityID   string
		lastReturn sql.NullTime
		maturity   sql.NullString
		netReturn  sql.NullString
		fees       string
		retentions string
		interests  string
		repaid     string
		state      sql.NullString
		payload    sql.NullString
		related    sql.NullString
	)
	if err := rows.Scan(
		&id, &e.Name, &invested, &returned, &e.Currency, &e.ProductType, &entityID,
		&e.LastInvestDate, &e.LastTxDate, &lastReturn, &maturity, &netReturn,
		&fees, &retentions, &interests, &repaid, &state, &payload, &related,
	); err != nil {
		return e, fmt.Errorf("failed to scan historic entry: %w", err)
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return e, fmt.Errorf("bad entry id %q: %w", id, err)
	}
	if e.EntityID, err = uuid.Parse(entityID); err != nil {
		return e, fmt.Errorf("bad entity id %q: %w", entityID, err)
	}
	if e.Invested, err = decimal.NewFromString(invested); err != nil {
		return e, fmt.Errorf("bad invested %q: %w", invested, err)
	}
	if e.Returned, err = optDec(returned); err != nil {
		return e, err
	}
	if e.NetReturn, err = optDec(netReturn); err != nil {
		return e, err
	}
	if e.Fees, err = decimal.NewFromString(fees); err != nil {
		return e, err
	}
	if e.Retentions, err = decimal.NewFromString(retentions); err != nil {
		return e, err
	}
	if e.Interests, err = decimal.NewFromString(interests); err != nil {
		return e, err
	}
	if e.Repaid, err = decimal.NewFromString(repaid); err != nil {
		return e, err
	}
	if lastReturn.Valid {
		t := lastReturn.Time
		e.LastReturnTx = &t
	}
	if maturity.Valid {
		d, err := dates.ParseDate(maturity.String)
		if err != nil {
			return e, fmt.Errorf("bad effective maturity %q: %w", maturity.String, err)
		}
		e.EffectiveMaturity = &d
	}
	e.State = state.String
	if payload.Valid {
		if err := decodePayload(&e, payload.String); err != nil {
			return e, err
		}
	}
	if related.Valid {
		if err := json.Unmarshal([]byte(related.String), &e.RelatedTxs); err != nil {
			return e, fmt.Errorf("bad related txs payload: %w", err)
		}
	}
	return e, nil
}

func decodePayload(e *domain.HistoricEntry, data string) error {
	switch e.ProductType {
	case domain.ProductRealEstateCF:
		e.RealEstateCF = &domain.HistoricRealEstateCF{}
		if err := json.Unmarshal([]byte(data), e.RealEstateCF); err != nil {
			return fmt.Errorf("bad real estate payload: %w", err)
		}
	case domain.ProductFactoring:
		e.Factoring = &domain.HistoricFactoring{}
		if err := json.Unmarshal([]byte(data), e.Factoring); err != nil {
			return fmt.Errorf("bad factoring payload: %w", err)
		}
	}
	return nil
}

func optDec(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("bad decimal %q: %w", v.String, err)
	}
	return &d, nil
}

func decStr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
