package fetch

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Repository handles last-fetch bookkeeping. One row per entity and feature
// records when that feature was last fetched successfully.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new fetch repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "fetch").Logger(),
	}
}

// GetLast returns the last fetch record for one feature, nil when the
// feature was never fetched.
func (r *Repository) GetLast(entityID uuid.UUID, feature domain.Feature) (*domain.FetchRecord, error) {
	var date time.Time
	err := r.db.QueryRow(`
		SELECT date FROM last_fetches WHERE entity_id = ? AND feature = ?
	`, entityID.String(), string(feature)).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last fetch: %w", err)
	}
	return &domain.FetchRecord{EntityID: entityID, Feature: feature, Date: date}, nil
}

// Save upserts the last fetch records
func (r *Repository) Save(records []domain.FetchRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.SaveTx(tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit last fetches: %w", err)
	}
	return nil
}

// SaveTx upserts the last fetch records on an open database transaction.
func (r *Repository) SaveTx(tx *sql.Tx, records []domain.FetchRecord) error {
	for _, rec := range records {
		if _, err := tx.Exec(`
			INSERT INTO last_fetches (entity_id, feature, date) VALUES (?, ?, ?)
			ON CONFLICT(entity_id, feature) DO UPDATE SET date = excluded.date
		`, rec.EntityID.String(), string(rec.Feature), rec.Date); err != nil {
			return fmt.Errorf("failed to save last fetch: %w", err)
		}
	}
	return nil
}

// RegisterImport records a virtual data import so later imports supersede it
func (r *Repository) RegisterImport(importID string, entityID uuid.UUID, feature domain.Feature, date time.Time) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO virtual_data_imports (import_id, entity_id, feature, date)
		VALUES (?, ?, ?, ?)
	`, importID, entityID.String(), string(feature), date)
	if err != nil {
		return fmt.Errorf("failed to register import: %w", err)
	}
	return nil
}

// LatestImportRecords returns the entity/feature rows of the most recent
// virtual import, nil when none has been registered.
func (r *Repository) LatestImportRecords() ([]domain.FetchRecord, error) {
	var importID string
	err := r.db.QueryRow(`
		SELECT import_id FROM virtual_data_imports ORDER BY date DESC LIMIT 1
	`).Scan(&importID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest import: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT entity_id, feature, date FROM virtual_data_imports WHERE import_id = ?
	`, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import records: %w", err)
	}
	defer rows.Close()

	var records []domain.FetchRecord
	for rows.Next() {
		var rec domain.FetchRecord
		var entityID string
		if err := rows.Scan(&entityID, &rec.Feature, &rec.Date); err != nil {
			return nil, fmt.Errorf("failed to scan import record: %w", err)
		}
		if rec.EntityID, err = uuid.Parse(entityID); err != nil {
			return nil, fmt.Errorf("failed to parse import entity id: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
