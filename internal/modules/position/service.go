package position

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

// Service handles position business logic
type Service struct {
	repo   *Repository
	assets *AssetRegistry
	events *events.Manager
	log    zerolog.Logger
}

// NewService creates a new position service
func NewService(repo *Repository, assets *AssetRegistry, ev *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		assets: assets,
		events: ev,
		log:    log.With().Str("service", "position").Logger(),
	}
}

// SaveFetched stores a snapshot reported by a fetcher. Portfolio aggregates
// are recomputed before the write.
func (s *Service) SaveFetched(pos domain.GlobalPosition) error {
	if pos.ID == uuid.Nil {
		pos.ID = uuid.New()
	}
	if pos.Date.IsZero() {
		pos.Date = time.Now().UTC()
	}
	pos.IsReal = true
	pos.Source = domain.SourceReal
	return s.save(pos, nil)
}

// SaveFetchedTx stores a fetched snapshot on an open database transaction,
// so the caller can tie it to other writes of the same fetch run. No event
// is emitted; nothing happened until the caller commits.
func (s *Service) SaveFetchedTx(tx *sql.Tx, pos domain.GlobalPosition) error {
	if pos.ID == uuid.Nil {
		pos.ID = uuid.New()
	}
	if pos.Date.IsZero() {
		pos.Date = time.Now().UTC()
	}
	pos.IsReal = true
	pos.Source = domain.SourceReal

	if err := pos.Validate(); err != nil {
		return err
	}
	pos.SyncFundPortfolios()
	if err := s.assets.resolveAssets(tx, &pos); err != nil {
		return err
	}
	return s.repo.SaveTx(tx, pos, nil)
}

// SaveManual stores a user-entered snapshot.
func (s *Service) SaveManual(pos domain.GlobalPosition) error {
	if pos.ID == uuid.Nil {
		pos.ID = uuid.New()
	}
	if pos.Date.IsZero() {
		pos.Date = time.Now().UTC()
	}
	pos.IsReal = false
	pos.Source = domain.SourceManual
	return s.save(pos, nil)
}

// SaveImported stores a snapshot from a file import, grouped by import id.
func (s *Service) SaveImported(pos domain.GlobalPosition, importID string) error {
	if pos.ID == uuid.Nil {
		pos.ID = uuid.New()
	}
	if pos.Date.IsZero() {
		pos.Date = time.Now().UTC()
	}
	pos.IsReal = false
	pos.Source = domain.SourceImported
	return s.save(pos, &importID)
}

func (s *Service) save(pos domain.GlobalPosition, importID *string) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	pos.SyncFundPortfolios()
	if err := s.assets.resolveAssets(s.assets.db, &pos); err != nil {
		return err
	}
	if err := s.repo.Save(pos, importID); err != nil {
		return err
	}
	s.events.Emit(events.PositionSaved, "position", map[string]interface{}{
		"position_id": pos.ID.String(),
		"entity_id":   pos.EntityID.String(),
		"source":      string(pos.Source),
	})
	return nil
}

// Merged returns the consolidated per-entity view: the newest fetched
// snapshot of each entity, with the newest virtual (manual or imported)
// snapshots merged in. A virtual snapshot for an entity that also has a
// fetched one is merged product-by-product; otherwise it stands alone.
func (s *Service) Merged(q domain.PositionQuery) (map[uuid.UUID]domain.GlobalPosition, error) {
	merged := map[uuid.UUID]domain.GlobalPosition{}

	if q.Real == nil || *q.Real {
		real := true
		realQuery := q
		realQuery.Real = &real
		fetched, err := s.repo.GetLatest(realQuery)
		if err != nil {
			return nil, err
		}
		for _, pos := range fetched {
			merged[pos.EntityID] = pos
		}
	}

	if q.Real != nil && *q.Real {
		return merged, nil
	}

	virtual, err := s.repo.GetLatestVirtual()
	if err != nil {
		return nil, err
	}
	for _, pos := range virtual {
		if !matchesQuery(q, pos.EntityID) {
			continue
		}
		if existing, ok := merged[pos.EntityID]; ok {
			merged[pos.EntityID] = domain.MergePosition(existing, pos)
		} else {
			merged[pos.EntityID] = pos
		}
	}
	return merged, nil
}

func matchesQuery(q domain.PositionQuery, entityID uuid.UUID) bool {
	for _, id := range q.ExcludedEntities {
		if id == entityID {
			return false
		}
	}
	if len(q.Entities) == 0 {
		return true
	}
	for _, id := range q.Entities {
		if id == entityID {
			return true
		}
	}
	return false
}
