package position

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Repository handles position database operations. Positions are append-only:
// a new fetch writes a new dated snapshot, never updates an old one.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new position repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// Save writes one position snapshot and its product entries atomically.
// importID groups snapshots that arrived in the same file import.
func (r *Repository) Save(pos domain.GlobalPosition, importID *string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.SaveTx(tx, pos, importID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit position: %w", err)
	}
	return nil
}

// SaveTx writes one position snapshot on an open database transaction.
func (r *Repository) SaveTx(tx *sql.Tx, pos domain.GlobalPosition, importID *string) error {
	if _, err := tx.Exec(`
		INSERT INTO global_positions (id, entity_id, date, is_real, source, import_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, pos.ID.String(), pos.EntityID.String(), pos.Date, pos.IsReal, string(pos.Source), importID); err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	for productType, entries := range pos.Products {
		encoded, err := encodeEntries(entries)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO position_products (position_id, product_type, entries)
			VALUES (?, ?, ?)
		`, pos.ID.String(), string(productType), encoded); err != nil {
			return fmt.Errorf("failed to insert %s entries: %w", productType, err)
		}
	}
	return nil
}

// GetLatestReal returns the newest fetched snapshot for an entity, nil when
// the entity has none.
func (r *Repository) GetLatestReal(entityID uuid.UUID) (*domain.GlobalPosition, error) {
	row := r.db.QueryRow(`
		SELECT id, entity_id, date, is_real, source, import_id
		FROM global_positions
		WHERE entity_id = ? AND is_real = 1
		ORDER BY date DESC LIMIT 1
	`, entityID.String())
	pos, err := r.scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// GetLatestVirtual returns the snapshots written by the most recent import,
// plus manual snapshots newer than it.
func (r *Repository) GetLatestVirtual() ([]domain.GlobalPosition, error) {
	var importID sql.NullString
	err := r.db.QueryRow(`
		SELECT import_id FROM global_positions
		WHERE source = ? AND import_id IS NOT NULL
		ORDER BY date DESC LIMIT 1
	`, string(domain.SourceImported)).Scan(&importID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find latest import: %w", err)
	}

	var positions []domain.GlobalPosition
	if importID.Valid {
		imported, err := r.queryPositions(`
			SELECT id, entity_id, date, is_real, source, import_id
			FROM global_positions WHERE import_id = ?
			ORDER BY date DESC
		`, importID.String)
		if err != nil {
			return nil, err
		}
		positions = append(positions, imported...)
	}

	manual, err := r.latestPerEntity(domain.SourceManual)
	if err != nil {
		return nil, err
	}
	return append(positions, manual...), nil
}

func (r *Repository) latestPerEntity(source domain.DataSource) ([]domain.GlobalPosition, error) {
	return r.queryPositions(`
		SELECT p.id, p.entity_id, p.date, p.is_real, p.source, p.import_id
		FROM global_positions p
		JOIN (
			SELECT entity_id, MAX(date) AS max_date
			FROM global_positions WHERE source = ?
			GROUP BY entity_id
		) latest ON latest.entity_id = p.entity_id AND latest.max_date = p.date
		WHERE p.source = ?
	`, string(source), string(source))
}

// GetLatest returns the newest snapshot per entity matching the query.
func (r *Repository) GetLatest(q domain.PositionQuery) ([]domain.GlobalPosition, error) {
	query := `
		SELECT p.id, p.entity_id, p.date, p.is_real, p.source, p.import_id
		FROM global_positions p
		JOIN (
			SELECT entity_id, is_real, MAX(date) AS max_date
			FROM global_positions
			GROUP BY entity_id, is_real
		) latest ON latest.entity_id = p.entity_id
			AND latest.is_real = p.is_real AND latest.max_date = p.date
	`
	var (
		conds []string
		args  []any
	)
	if len(q.Entities) > 0 {
		conds = append(conds, "p.entity_id IN ("+placeholders(len(q.Entities))+")")
		for _, id := range q.Entities {
			args = append(args, id.String())
		}
	}
	if len(q.ExcludedEntities) > 0 {
		conds = append(conds, "p.entity_id NOT IN ("+placeholders(len(q.ExcludedEntities))+")")
		for _, id := range q.ExcludedEntities {
			args = append(args, id.String())
		}
	}
	if q.Real != nil {
		conds = append(conds, "p.is_real = ?")
		args = append(args, *q.Real)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return r.queryPositions(query, args...)
}

func (r *Repository) queryPositions(query string, args ...any) ([]domain.GlobalPosition, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.GlobalPosition
	for rows.Next() {
		pos, err := r.scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanPosition(row rowScanner) (*domain.GlobalPosition, error) {
	var (
		pos      domain.GlobalPosition
		id       string
		entityID string
		date     time.Time
		importID sql.NullString
	)
	if err := row.Scan(&id, &entityID, &date, &pos.IsReal, &pos.Source, &importID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	var err error
	if pos.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad position id %q: %w", id, err)
	}
	if pos.EntityID, err = uuid.Parse(entityID); err != nil {
		return nil, fmt.Errorf("bad entity id %q: %w", entityID, err)
	}
	pos.Date = date

	pos.Products, err = r.loadProducts(pos.ID)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (r *Repository) loadProducts(positionID uuid.UUID) (domain.Products, error) {
	rows, err := r.db.Query(`
		SELECT product_type, entries FROM position_products WHERE position_id = ?
	`, positionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := domain.Products{}
	for rows.Next() {
		var productType, data string
		if err := rows.Scan(&productType, &data); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		entries, err := DecodeEntries(domain.ProductType(productType), data)
		if err != nil {
			return nil, err
		}
		products[domain.ProductType(productType)] = entries
	}
	return products, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
