package exchange

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
)

// Repository caches conversion rates, one row per currency pair.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new exchange rate repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "exchange").Logger(),
	}
}

// Save upserts the given rates in one transaction.
func (r *Repository) Save(rates []domain.ExchangeRate) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rate := range rates {
		if _, err := tx.Exec(`
			INSERT INTO exchange_rates (base, quote, rate, date) VALUES (?, ?, ?, ?)
			ON CONFLICT(base, quote) DO UPDATE SET rate = excluded.rate, date = excluded.date
		`, rate.Base, rate.Quote, rate.Rate.String(), rate.Date); err != nil {
			return fmt.Errorf("failed to save rate %s/%s: %w", rate.Base, rate.Quote, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rates: %w", err)
	}
	return nil
}

// GetAll returns every cached rate.
func (r *Repository) GetAll() ([]domain.ExchangeRate, error) {
	rows, err := r.db.Query(`
		SELECT base, quote, rate, date FROM exchange_rates ORDER BY base, quote
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []domain.ExchangeRate
	for rows.Next() {
		var rate domain.ExchangeRate
		var value string
		if err := rows.Scan(&rate.Base, &rate.Quote, &value, &rate.Date); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		if rate.Rate, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("failed to parse rate %s/%s: %w", rate.Base, rate.Quote, err)
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
