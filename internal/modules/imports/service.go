// Package imports reconciles user-supplied typed rows into non-real
// positions and transactions. Each call is one virtual import: the rows are
// grouped per entity name, unknown names create manual entities, and
// everything written shares a single import id so the merge layer can treat
// the batch as the current virtual snapshot.
package imports

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

// EntityDirectory resolves entity names and creates manual entities for
// names seen for the first time.
type EntityDirectory interface {
	All() ([]domain.Entity, error)
	CreateManual(name string, entityType domain.EntityType) (*domain.Entity, error)
}

// PositionWriter persists imported position snapshots.
type PositionWriter interface {
	SaveImported(pos domain.GlobalPosition, importID string) error
}

// TransactionWriter persists imported transactions.
type TransactionWriter interface {
	SaveImported(entityID uuid.UUID, txs domain.Transactions) (int, error)
}

// ImportRegistry records which entities and features each import touched.
type ImportRegistry interface {
	RegisterImport(importID string, entityID uuid.UUID, feature domain.Feature, date time.Time) error
}

// Service runs typed-row imports. One import at a time.
type Service struct {
	entities     EntityDirectory
	positions    PositionWriter
	transactions TransactionWriter
	registry     ImportRegistry
	events       *events.Manager
	log          zerolog.Logger
	now          func() time.Time

	mu sync.Mutex
}

// NewService creates a new imports service
func NewService(entities EntityDirectory, positions PositionWriter, transactions TransactionWriter, registry ImportRegistry, ev *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		entities:     entities,
		positions:    positions,
		transactions: transactions,
		registry:     registry,
		events:       ev,
		log:          log.With().Str("service", "imports").Logger(),
		now:          time.Now,
	}
}

// Result reports what an import produced. Preview runs fill the data but
// leave ImportID empty since nothing was written.
type Result struct {
	ImportID     string                  `json:"import_id,omitempty"`
	Positions    []domain.GlobalPosition `json:"positions,omitempty"`
	Transactions *domain.Transactions    `json:"transactions,omitempty"`
	Created      []domain.Entity         `json:"created_entities,omitempty"`
	Errors       []RowError              `json:"errors,omitempty"`
}

// Run imports one batch of typed rows. Entries that fail validation are
// reported in Result.Errors and skipped; the rest of the batch still lands.
func (s *Service) Run(req Request) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, domain.ErrExecutionConflict
	}
	defer s.mu.Unlock()

	switch req.Feature {
	case domain.FeaturePosition, domain.FeatureTransactions:
	case "":
		return nil, domain.NewMissingFields("feature")
	default:
		return nil, &domain.InvalidFieldError{Field: "feature", Reason: "not importable"}
	}
	if len(req.Entities) == 0 {
		return nil, domain.NewMissingFields("entities")
	}

	existing, err := s.entities.All()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]domain.Entity, len(existing))
	for _, e := range existing {
		byName[e.Name] = e
	}

	importID := uuid.New().String()
	now := s.now().UTC()
	result := &Result{}
	if !req.Preview {
		result.ImportID = importID
	}

	for _, data := range req.Entities {
		if data.Entity == "" {
			result.Errors = append(result.Errors, RowError{Entry: "?", Detail: "missing entity name"})
			continue
		}

		entity, known := byName[data.Entity]
		if !known {
			entity = domain.Entity{
				ID:     uuid.New(),
				Name:   data.Entity,
				Type:   data.EntityType,
				Origin: domain.EntityOriginManual,
			}
		}

		var staged func(entityID uuid.UUID) error
		switch req.Feature {
		case domain.FeaturePosition:
			staged, err = s.stagePosition(data, result)
		case domain.FeatureTransactions:
			staged, err = s.stageTransactions(data, result)
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Entry: data.Entity, Detail: err.Error()})
			continue
		}
		if req.Preview {
			if !known {
				result.Created = append(result.Created, entity)
			}
			continue
		}

		if !known {
			created, err := s.entities.CreateManual(entity.Name, entity.Type)
			if err != nil {
				return nil, err
			}
			entity = *created
			byName[entity.Name] = entity
			result.Created = append(result.Created, entity)
		}
		if err := staged(entity.ID); err != nil {
			return nil, err
		}
		if err := s.registry.RegisterImport(importID, entity.ID, req.Feature, now); err != nil {
			return nil, err
		}
	}

	if !req.Preview {
		s.events.Emit(events.DataImported, "imports", map[string]interface{}{
			"import_id": importID,
			"feature":   string(req.Feature),
			"entities":  len(req.Entities),
		})
		s.log.Info().
			Str("import_id", importID).
			Str("feature", string(req.Feature)).
			Int("entities", len(req.Entities)).
			Int("errors", len(result.Errors)).
			Msg("Import completed")
	}
	return result, nil
}

// stagePosition validates one entity's product rows and returns the deferred
// write. Validation happens up front so preview runs see the same errors.
func (s *Service) stagePosition(data EntityData, result *Result) (func(uuid.UUID) error, error) {
	products, err := decodeProducts(data.Products)
	if err != nil {
		return nil, err
	}
	pos := domain.GlobalPosition{Products: products}
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	result.Positions = append(result.Positions, pos)
	idx := len(result.Positions) - 1
	return func(entityID uuid.UUID) error {
		result.Positions[idx].EntityID = entityID
		return s.positions.SaveImported(result.Positions[idx], result.ImportID)
	}, nil
}

func (s *Service) stageTransactions(data EntityData, result *Result) (func(uuid.UUID) error, error) {
	if data.Transactions == nil {
		return nil, domain.NewMissingFields("transactions")
	}
	txs := *data.Transactions
	if err := validateTransactions(txs); err != nil {
		return nil, err
	}
	if result.Transactions == nil {
		result.Transactions = &domain.Transactions{}
	}
	merged := result.Transactions.Merge(txs)
	result.Transactions = &merged
	return func(entityID uuid.UUID) error {
		_, err := s.transactions.SaveImported(entityID, txs)
		return err
	}, nil
}
