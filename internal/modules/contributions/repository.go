package contributions

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Repository handles periodic contribution database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new contributions repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "contributions").Logger(),
	}
}

// ReplaceFetchedTx rewrites the fetched contributions of one entity on an
// open database transaction. Manual rows for the entity are untouched.
func (r *Repository) ReplaceFetchedTx(tx *sql.Tx, entityID uuid.UUID, contributions []domain.PeriodicContribution) error {
	if _, err := tx.Exec(`
		DELETE FROM periodic_contributions WHERE entity_id = ? AND is_real = 1
	`, entityID.String()); err != nil {
		return fmt.Errorf("failed to clear contributions: %w", err)
	}
	for _, c := range contributions {
		c.EntityID = entityID
		c.IsReal = true
		if err := insert(tx, c); err != nil {
			return err
		}
	}
	return nil
}

// SaveManual stores a user-declared contribution
func (r *Repository) SaveManual(c domain.PeriodicContribution) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	c.IsReal = false
	if err := insert(tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func insert(tx *sql.Tx, c domain.PeriodicContribution) error {
	var until any
	if c.Until != nil {
		until = c.Until.String()
	}
	_, err := tx.Exec(`
		INSERT INTO periodic_contributions (
			id, target, target_name, target_type, amount, currency,
			since, until, frequency, active, is_real, entity_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target = excluded.target,
			target_name = excluded.target_name,
			target_type = excluded.target_type,
			amount = excluded.amount,
			currency = excluded.currency,
			since = excluded.since,
			until = excluded.until,
			frequency = excluded.frequency,
			active = excluded.active
	`,
		c.ID.String(), c.Target, c.TargetName, string(c.TargetType), c.Amount.String(),
		c.Currency, c.Since.String(), until, string(c.Frequency), c.Active, c.IsReal,
		c.EntityID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution %s: %w", c.Target, err)
	}
	return nil
}

// Delete removes a manual contribution
func (r *Repository) Delete(id uuid.UUID) error {
	res, err := r.db.Exec(`
		DELETE FROM periodic_contributions WHERE id = ? AND is_real = 0
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

// GetByQuery returns stored contributions matching the filters
func (r *Repository) GetByQuery(q domain.ContributionQuery) ([]domain.PeriodicContribution, error) {
	query := `
		SELECT id, target, target_name, target_type, amount, currency,
			since, until, frequency, active, is_real, entity_id
		FROM periodic_contributions
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
	if len(q.ExcludedEntities) > 0 {
		conds = append(conds, "entity_id NOT IN ("+placeholders(len(q.ExcludedEntities))+")")
		for _, id := range q.ExcludedEntities {
			args = append(args, id.String())
		}
	}
	if q.Real != nil {
		conds = append(conds, "is_real = ?")
		args = append(args, *q.Real)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY since"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var contributions []domain.PeriodicContribution
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func scan(rows *sql.Rows) (domain.PeriodicContribution, error) {
	var (
		c          domain.PeriodicContribution
		id         string
		targetName sql.NullString
		amount     string
		since      string
		until      sql.NullString
		entityID   string
	)
	if err := rows.Scan(
		&id, &c.Target, &targetName, &c.TargetType, &amount, &c.Currency,
		&since, &until, &c.Frequency, &c.Active, &c.IsReal, &entityID,
	); err != nil {
		return c, fmt.Errorf("failed to scan contribution: %w", err)
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return c, fmt.Errorf("bad contribution id %q: %w", id, err)
	}
	if c.EntityID, err = uuid.Parse(entityID); err != nil {
		return c, fmt.Errorf("bad entity id %q: %w", entityID, err)
	}
	c.TargetName = targetName.String
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return c, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if c.Since, err = dates.ParseDate(since); err != nil {
		return c, fmt.Errorf("bad since %q: %w", since, err)
	}
	if until.Valid {
		d, err := dates.ParseDate(until.String)
		if err != nil {
			return c, fmt.Errorf("bad until %q: %w", until.String, err)
		}
		c.Until = &d
	}
	return c, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
