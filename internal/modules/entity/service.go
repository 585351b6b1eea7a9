package entity

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

// EntityStatus is the API view of an entity: the registry row plus its
// connection state.
type EntityStatus struct {
	domain.Entity
	Connected      bool     `json:"connected"`
	CredsExpired   bool     `json:"credentials_expired"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

// Service handles entity registry business logic
type Service struct {
	entities *Repository
	creds    *CredentialsRepository
	sessions *SessionsRepository
	events   *events.Manager
	log      zerolog.Logger
}

// NewService creates a new entity service
func NewService(entities *Repository, creds *CredentialsRepository, sessions *SessionsRepository, ev *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		entities: entities,
		creds:    creds,
		sessions: sessions,
		events:   ev,
		log:      log.With().Str("service", "entity").Logger(),
	}
}

// SeedNatives upserts the built-in entities. Stable ids keep existing
// credentials and positions attached across restarts and upgrades.
func (s *Service) SeedNatives() error {
	for _, e := range domain.NativeEntities() {
		if err := s.entities.Upsert(e); err != nil {
			return fmt.Errorf("failed to seed entity %s: %w", e.Name, err)
		}
	}
	return nil
}

// All returns the raw registry rows.
func (s *Service) All() ([]domain.Entity, error) {
	return s.entities.GetAll()
}

// List returns all entities with their connection status
func (s *Service) List() ([]EntityStatus, error) {
	entities, err := s.entities.GetAll()
	if err != nil {
		return nil, err
	}
	statuses := make([]EntityStatus, 0, len(entities))
	for _, e := range entities {
		status := EntityStatus{Entity: e, RequiredFields: requiredFields(e)}
		creds, err := s.creds.Get(e.ID)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			status.Connected = true
			status.CredsExpired = creds.Expiration != nil
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Get returns one entity with its connection status
func (s *Service) Get(id uuid.UUID) (*EntityStatus, error) {
	e, err := s.entities.GetByID(id)
	if err != nil {
		return nil, err
	}
	status := &EntityStatus{Entity: *e, RequiredFields: requiredFields(*e)}
	creds, err := s.creds.Get(id)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		status.Connected = true
		status.CredsExpired = creds.Expiration != nil
	}
	return status, nil
}

// CreateManual registers a user-defined entity for manually entered data.
func (s *Service) CreateManual(name string, entityType domain.EntityType) (*domain.Entity, error) {
	if name == "" {
		return nil, domain.NewMissingFields("name")
	}
	if entityType == "" {
		entityType = domain.EntityTypeFinancialInstitution
	}
	e := domain.Entity{
		ID:     uuid.New(),
		Name:   name,
		Type:   entityType,
		Origin: domain.EntityOriginManual,
	}
	if err := s.entities.Upsert(e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ValidateCredentials checks a credential map against the entity template.
// INTERNAL fields are fetcher-owned and must not be supplied by the user.
func ValidateCredentials(e domain.Entity, fields map[string]string) error {
	var missing []string
	for name, credType := range e.CredTemplate {
		if credType == domain.CredentialTypeInternal || credType == domain.CredentialTypeInternalTemp {
			continue
		}
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.NewMissingFields(missing...)
	}
	for name := range fields {
		credType, ok := e.CredTemplate[name]
		if !ok {
			return &domain.InvalidFieldError{Field: name, Reason: "not in credential template"}
		}
		if credType == domain.CredentialTypeInternal || credType == domain.CredentialTypeInternalTemp {
			return &domain.InvalidFieldError{Field: name, Reason: "internal field"}
		}
	}
	return nil
}

// Disconnect wipes credentials and session for an entity. Manual entities
// are deleted outright, native ones stay in the registry.
func (s *Service) Disconnect(id uuid.UUID) error {
	e, err := s.entities.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	if err := s.creds.Delete(id); err != nil {
		return err
	}
	if e.Origin != domain.EntityOriginNative {
		if err := s.entities.Delete(id); err != nil {
			return err
		}
	}
	s.events.Emit(events.EntityDisconnected, "entity", map[string]interface{}{
		"entity_id": id.String(),
		"entity":    e.Name,
	})
	return nil
}

func requiredFields(e domain.Entity) []string {
	var fields []string
	for name, credType := range e.CredTemplate {
		if credType == domain.CredentialTypeInternal || credType == domain.CredentialTypeInternalTemp {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}
