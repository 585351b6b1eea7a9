package realestate

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
	"github.com/aristath/moneta/pkg/dec"
)

// Repository handles real estate database operations. The property document
// is stored as JSON; the flow links live in their own table so a flow delete
// cascades into the link.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new real estate repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "real_estate").Logger(),
	}
}

// GetAll returns every property with its flow links.
func (r *Repository) GetAll() ([]domain.RealEstate, error) {
	rows, err := r.db.Query(`
		SELECT id, data, currency, created_at FROM real_estate ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query real estate: %w", err)
	}
	defer rows.Close()

	var properties []domain.RealEstate
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range properties {
		if err := r.loadFlows(&properties[i]); err != nil {
			return nil, err
		}
	}
	return properties, nil
}

// GetByID returns one property or domain.ErrEntityNotFound
func (r *Repository) GetByID(id uuid.UUID) (*domain.RealEstate, error) {
	row := r.db.QueryRow(`
		SELECT id, data, currency, created_at FROM real_estate WHERE id = ?
	`, id.String())
	property, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadFlows(&property); err != nil {
		return nil, err
	}
	return &property, nil
}

// Save upserts the property document and replaces its flow links.
func (r *Repository) Save(property domain.RealEstate) error {
	data, err := json.Marshal(property)
	if err != nil {
		return fmt.Errorf("failed to encode real estate %s: %w", property.ID, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO real_estate (id, data, currency, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, currency = excluded.currency
	`, property.ID.String(), string(data), property.Currency, property.CreatedAt.String()); err != nil {
		return fmt.Errorf("failed to save real estate %s: %w", property.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM real_estate_flows WHERE real_estate_id = ?`,
		property.ID.String()); err != nil {
		return err
	}
	for _, flow := range property.Flows {
		var payload any
		if flow.Payload != nil {
			encoded, err := json.Marshal(flow.Payload)
			if err != nil {
				return fmt.Errorf("failed to encode flow payload: %w", err)
			}
			payload = string(encoded)
		}
		if _, err := tx.Exec(`
			INSERT INTO real_estate_flows
				(real_estate_id, periodic_flow_id, flow_subtype, description, payload)
			VALUES (?, ?, ?, ?, ?)
		`, property.ID.String(), flow.PeriodicFlowID.String(),
			string(flow.FlowSubtype), flow.Description, payload); err != nil {
			return fmt.Errorf("failed to link flow %s: %w", flow.PeriodicFlowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit real estate: %w", err)
	}
	return nil
}

// Delete removes the property; flow links cascade.
func (r *Repository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM real_estate WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete real estate %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *Repository) loadFlows(property *domain.RealEstate) error {
	rows, err := r.db.Query(`
		SELECT rf.periodic_flow_id, rf.flow_subtype, rf.description, rf.payload,
			pf.name, pf.amount, pf.currency, pf.flow_type, pf.frequency,
			pf.category, pf.enabled, pf.since, pf.until, pf.icon, pf.linked, pf.max_amount
		FROM real_estate_flows rf
		JOIN periodic_flows pf ON pf.id = rf.periodic_flow_id
		WHERE rf.real_estate_id = ?
	`, property.ID.String())
	if err != nil {
		return fmt.Errorf("failed to query flows for %s: %w", property.ID, err)
	}
	defer rows.Close()

	property.Flows = nil
	for rows.Next() {
		var (
			link                           domain.RealEstateFlow
			flow                           domain.PeriodicFlow
			flowID, amount, since          string
			flowType, frequency            string
			description, payload, category sql.NullString
			until, icon, maxAmount         sql.NullString
		)
		err := rows.Scan(&flowID, &link.FlowSubtype, &description, &payload,
			&flow.Name, &amount, &flow.Currency, &flowType, &frequency,
			&category, &flow.Enabled, &since, &until, &icon, &flow.Linked, &maxAmount)
		if err != nil {
			return err
		}
		link.PeriodicFlowID, err = uuid.Parse(flowID)
		if err != nil {
			return err
		}
		link.Description = description.String
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &link.Payload); err != nil {
				return fmt.Errorf("failed to decode flow payload: %w", err)
			}
		}

		flow.ID = link.PeriodicFlowID
		flow.FlowType = domain.FlowType(flowType)
		flow.Frequency = domain.FlowFrequency(frequency)
		flow.Category = category.String
		flow.Icon = icon.String
		if flow.Amount, err = dec.Parse(amount); err != nil {
			return err
		}
		if flow.Since, err = dates.ParseDate(since); err != nil {
			return err
		}
		if until.Valid && until.String != "" {
			d, err := dates.ParseDate(until.String)
			if err != nil {
				return err
			}
			flow.Until = &d
		}
		if maxAmount.Valid && maxAmount.String != "" {
			d, err := dec.Parse(maxAmount.String)
			if err != nil {
				return err
			}
			flow.MaxAmount = &d
		}
		link.Flow = &flow
		property.Flows = append(property.Flows, link)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (domain.RealEstate, error) {
	var (
		id, data, currency, createdAt string
		property                      domain.RealEstate
	)
	if err := row.Scan(&id, &data, &currency, &createdAt); err != nil {
		return domain.RealEstate{}, err
	}
	if err := json.Unmarshal([]byte(data), &property); err != nil {
		return domain.RealEstate{}, fmt.Errorf("failed to decode real estate %s: %w", id, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.RealEstate{}, err
	}
	property.ID = parsed
	property.Currency = currency
	if created, err := dates.ParseDate(createdAt); err == nil {
		property.CreatedAt = created
	}
	return property, nil
}
