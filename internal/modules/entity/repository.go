package entity

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
)

// Repository handles entity registry database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "entity").Logger(),
	}
}

// GetAll returns all registered entities
func (r *Repository) GetAll() ([]domain.Entity, error) {
	rows, err := r.db.Query(`
		SELECT id, name, type, origin, natural_id, features, cred_template
		FROM entities ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// GetByID returns one entity or domain.ErrEntityNotFound
func (r *Repository) GetByID(id uuid.UUID) (*domain.Entity, error) {
	row := r.db.QueryRow(`
		SELECT id, name, type, origin, natural_id, features, cred_template
		FROM entities WHERE id = ?
	`, id.String())
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	return &e, nil
}

// Upsert inserts or replaces an entity row
func (r *Repository) Upsert(e domain.Entity) error {
	features, err := json.Marshal(e.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	template, err := json.Marshal(e.CredTemplate)
	if err != nil {
		return fmt.Errorf("failed to encode credential template: %w", err)
	}
	var naturalID any
	if e.NaturalID != "" {
		naturalID = e.NaturalID
	}
	_, err = r.db.Exec(`
		INSERT INTO entities (id, name, type, origin, natural_id, features, cred_template)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			origin = excluded.origin,
			natural_id = excluded.natural_id,
			features = excluded.features,
			cred_template = excluded.cred_template
	`, e.ID.String(), e.Name, string(e.Type), string(e.Origin), naturalID, string(features), string(template))
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// Delete removes an entity and, through cascades, everything stored for it
func (r *Repository) Delete(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM entities WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.Entity, error) {
	var (
		e         domain.Entity
		id        string
		naturalID sql.NullString
		features  string
		template  string
	)
	if err := row.Scan(&id, &e.Name, &e.Type, &e.Origin, &naturalID, &features, &template); err != nil {
		return e, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return e, fmt.Errorf("bad entity id %q: %w", id, err)
	}
	e.ID = parsed
	e.NaturalID = naturalID.String
	if err := json.Unmarshal([]byte(features), &e.Features); err != nil {
		return e, fmt.Errorf("bad features payload: %w", err)
	}
	if err := json.Unmarshal([]byte(template), &e.CredTemplate); err != nil {
		return e, fmt.Errorf("bad credential template payload: %w", err)
	}
	return e, nil
}

// CredentialsRepository stores the opaque per-entity credential maps
type CredentialsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCredentialsRepository creates a new credentials repository
func NewCredentialsRepository(db *sql.DB, log zerolog.Logger) *CredentialsRepository {
	return &CredentialsRepository{
		db:  db,
		log: log.With().Str("repo", "entity_credentials").Logger(),
	}
}

// Get returns stored credentials, nil when the entity is not connected
func (r *CredentialsRepository) Get(entityID uuid.UUID) (*domain.EntityCredentials, error) {
	var (
		fields     string
		expiration sql.NullTime
		lastUsed   sql.NullTime
	)
	err := r.db.QueryRow(`
		SELECT fields, expiration, last_used_at FROM entity_credentials WHERE entity_id = ?
	`, entityID.String()).Scan(&fields, &expiration, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	creds := &domain.EntityCredentials{EntityID: entityID}
	if err := json.Unmarshal([]byte(fields), &creds.Fields); err != nil {
		return nil, fmt.Errorf("bad credentials payload: %w", err)
	}
	if expiration.Valid {
		t := expiration.Time
		creds.Expiration = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		creds.LastUsedAt = &t
	}
	return creds, nil
}

// Save stores credentials, replacing any previous set
func (r *CredentialsRepository) Save(creds domain.EntityCredentials) error {
	fields, err := json.Marshal(creds.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO entity_credentials (entity_id, fields, expiration, last_used_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			fields = excluded.fields,
			expiration = excluded.expiration,
			last_used_at = excluded.last_used_at
	`, creds.EntityID.String(), string(fields), creds.Expiration, creds.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// MarkUsed records a successful use of the credentials
func (r *CredentialsRepository) MarkUsed(entityID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE entity_credentials SET last_used_at = ?, expiration = NULL WHERE entity_id = ?
	`, at, entityID.String())
	if err != nil {
		return fmt.Errorf("failed to mark credentials used: %w", err)
	}
	return nil
}

// Expire flags the credentials as rejected by the institution
func (r *CredentialsRepository) Expire(entityID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE entity_credentials SET expiration = ? WHERE entity_id = ?
	`, at, entityID.String())
	if err != nil {
		return fmt.Errorf("failed to expire credentials: %w", err)
	}
	return nil
}

// Delete removes stored credentials
func (r *CredentialsRepository) Delete(entityID uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM entity_credentials WHERE entity_id = ?`, entityID.String())
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// SessionsRepository stores fetcher session payloads for resumption
type SessionsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSessionsRepository creates a new sessions repository
func NewSessionsRepository(db *sql.DB, log zerolog.Logger) *SessionsRepository {
	return &SessionsRepository{
		db:  db,
		log: log.With().Str("repo", "entity_sessions").Logger(),
	}
}

// Get returns the stored session, nil when none exists
func (r *SessionsRepository) Get(entityID uuid.UUID) (*domain.EntitySession, error) {
	var (
		payload    string
		creation   time.Time
		expiration sql.NullTime
	)
	err := r.db.QueryRow(`
		SELECT payload, creation, expiration FROM entity_sessions WHERE entity_id = ?
	`, entityID.String()).Scan(&payload, &creation, &expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	session := &domain.EntitySession{EntityID: entityID, Creation: creation}
	if err := json.Unmarshal([]byte(payload), &session.Payload); err != nil {
		return nil, fmt.Errorf("bad session payload: %w", err)
	}
	if expiration.Valid {
		t := expiration.Time
		session.Expiration = &t
	}
	return session, nil
}

// Save stores the session, replacing any previous one
func (r *SessionsRepository) Save(session domain.EntitySession) error {
	payload, err := json.Marshal(session.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO entity_sessions (entity_id, payload, creation, expiration)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			payload = excluded.payload,
			creation = excluded.creation,
			expiration = excluded.expiration
	`, session.EntityID.String(), string(payload), session.Creation, session.Expiration)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the stored session
func (r *SessionsRepository) Delete(entityID uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM entity_sessions WHERE entity_id = ?`, entityID.String())
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
