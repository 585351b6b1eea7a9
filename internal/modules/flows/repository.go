package flows

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Repository handles periodic flow database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new flows repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "flows").Logger(),
	}
}

// GetAll returns all periodic flows
func (r *Repository) GetAll() ([]domain.PeriodicFlow, error) {
	return r.query(`
		SELECT id, name, amount, currency, flow_type, frequency, category,
			enabled, since, until, icon, linked, max_amount
		FROM periodic_flows ORDER BY since
	`)
}

// GetEnabled returns flows that take part in forecasts
func (r *Repository) GetEnabled() ([]domain.PeriodicFlow, error) {
	return r.query(`
		SELECT id, name, amount, currency, flow_type, frequency, category,
			enabled, since, until, icon, linked, max_amount
		FROM periodic_flows WHERE enabled = 1 ORDER BY since
	`)
}

// GetByID returns one flow or domain.ErrEntityNotFound
func (r *Repository) GetByID(id uuid.UUID) (*domain.PeriodicFlow, error) {
	flows, err := r.query(`
		SELECT id, name, amount, currency, flow_type, frequency, category,
			enabled, since, until, icon, linked, max_amount
		FROM periodic_flows WHERE id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}
	if len(flows) == 0 {
		return nil, domain.ErrEntityNotFound
	}
	return &flows[0], nil
}

// Save inserts or updates a flow
func (r *Repository) Save(f domain.PeriodicFlow) error {
	var until any
	if f.Until != nil {
		until = f.Until.String()
	}
	var maxAmount any
	if f.MaxAmount != nil {
		maxAmount = f.MaxAmount.String()
	}
	_, err := r.db.Exec(`
		INSERT INTO periodic_flows (
			id, name, amount, currency, flow_type, frequency, category,
			enabled, since, until, icon, linked, max_amount
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			currency = excluded.currency,
			flow_type = excluded.flow_type,
			frequency = excluded.frequency,
			category = excluded.category,
			enabled = excluded.enabled,
			since = excluded.since,
			until = excluded.until,
			icon = excluded.icon,
			linked = excluded.linked,
			max_amount = excluded.max_amount
	`,
		f.ID.String(), f.Name, f.Amount.String(), f.Currency, string(f.FlowType),
		string(f.Frequency), f.Category, f.Enabled, f.Since.String(), until,
		f.Icon, f.Linked, maxAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", f.Name, err)
	}
	return nil
}

// Delete removes a flow
func (r *Repository) Delete(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM periodic_flows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *Repository) query(query string, args ...any) ([]domain.PeriodicFlow, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.PeriodicFlow
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

func scan(rows *sql.Rows) (domain.PeriodicFlow, error) {
	var (
		f         domain.PeriodicFlow
		id        string
		amount    string
		category  sql.NullString
		since     string
		until     sql.NullString
		icon      sql.NullString
		maxAmount sql.NullString
	)
	if err := rows.Scan(
		&id, &f.Name, &amount, &f.Currency, &f.FlowType, &f.Frequency,
		&category, &f.Enabled, &since, &until, &icon, &f.Linked, &maxAmount,
	); err != nil {
		return f, fmt.Errorf("failed to scan flow: %w", err)
	}
	var err error
	if f.ID, err = uuid.Parse(id); err != nil {
		return f, fmt.Errorf("bad flow id %q: %w", id, err)
	}
	if f.Amount, err = decimal.NewFromString(amount); err != nil {
		return f, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	f.Category = category.String
	f.Icon = icon.String
	if f.Since, err = dates.ParseDate(since); err != nil {
		return f, fmt.Errorf("bad since %q: %w", since, err)
	}
	if until.Valid {
		d, err := dates.ParseDate(until.String)
		if err != nil {
			return f, fmt.Errorf("bad until %q: %w", until.String, err)
		}
		f.Until = &d
	}
	if maxAmount.Valid {
		d, err := decimal.NewFromString(maxAmount.String)
		if err != nil {
			return f, fmt.Errorf("bad max amount %q: %w", maxAmount.String, err)
		}
		f.MaxAmount = &d
	}
	return f, nil
}

// GetAllPending returns all pending flows
func (r *Repository) GetAllPending() ([]domain.PendingFlow, error) {
	return r.queryPending(`
		SELECT id, name, amount, currency, flow_type, category, enabled, date
		FROM pending_flows ORDER BY date
	`)
}

// GetEnabledPending returns pending flows that take part in forecasts
func (r *Repository) GetEnabledPending() ([]domain.PendingFlow, error) {
	return r.queryPending(`
		SELECT id, name, amount, currency, flow_type, category, enabled, date
		FROM pending_flows WHERE enabled = 1 ORDER BY date
	`)
}

// SavePending inserts or updates a pending flow
func (r *Repository) SavePending(f domain.PendingFlow) error {
	var date any
	if f.Date != nil {
		date = f.Date.String()
	}
	_, err := r.db.Exec(`
		INSERT INTO pending_flows (id, name, amount, currency, flow_type, category, enabled, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			currency = excluded.currency,
			flow_type = excluded.flow_type,
			category = excluded.category,
			enabled = excluded.enabled,
			date = excluded.date
	`,
		f.ID.String(), f.Name, f.Amount.String(), f.Currency, string(f.FlowType),
		f.Category, f.Enabled, date,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending flow %s: %w", f.Name, err)
	}
	return nil
}

// DeletePending removes a pending flow
func (r *Repository) DeletePending(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM pending_flows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete pending flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *Repository) queryPending(query string, args ...any) ([]domain.PendingFlow, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.PendingFlow
	for rows.Next() {
		var (
			f        domain.PendingFlow
			id       string
			amount   string
			category sql.NullString
			date     sql.NullString
		)
		if err := rows.Scan(&id, &f.Name, &amount, &f.Currency, &f.FlowType, &category, &f.Enabled, &date); err != nil {
			return nil, fmt.Errorf("failed to scan pending flow: %w", err)
		}
		if f.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad pending flow id %q: %w", id, err)
		}
		if f.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		f.Category = category.String
		if date.Valid {
			d, err := dates.ParseDate(date.String)
			if err != nil {
				return nil, fmt.Errorf("bad date %q: %w", date.String, err)
			}
			f.Date = &d
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
