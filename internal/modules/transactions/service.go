package transactions

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
)

// Service handles transaction business logic
type Service struct {
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
}

// NewService creates a new transactions service
func NewService(repo *Repository, ev *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: ev,
		log:    log.With().Str("service", "transactions").Logger(),
	}
}

// RegisteredRefs returns the refs already stored for an entity, handed to
// fetchers so they can skip known transactions.
func (s *Service) RegisteredRefs(entityID uuid.UUID) (map[string]bool, error) {
	return s.repo.GetRefs(entityID)
}

// SaveFetched stores fetched transactions, stamping source and identity on
// rows the fetcher left blank. Known refs are skipped.
func (s *Service) SaveFetched(entityID uuid.UUID, txs domain.Transactions) (int, error) {
	for i := range txs.Investment {
		prepareBase(&txs.Investment[i].BaseTx, entityID, true, domain.SourceReal)
	}
	for i := range txs.Account {
		prepareBase(&txs.Account[i].BaseTx, entityID, true, domain.SourceReal)
	}
	inserted, err := s.repo.Save(txs)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.events.Emit(events.TransactionsSaved, "transactions", map[string]interface{}{
			"entity_id": entityID.String(),
			"inserted":  inserted,
		})
	}
	return inserted, nil
}

// SaveFetchedTx stores fetched transactions on an open database transaction.
// A deep run drops the previously fetched rows first, so corrected history
// replaces stale duplicates instead of piling up next to them.
func (s *Service) SaveFetchedTx(tx *sql.Tx, entityID uuid.UUID, txs domain.Transactions, deep bool) (int, error) {
	for i := range txs.Investment {
		prepareBase(&txs.Investment[i].BaseTx, entityID, true, domain.SourceReal)
	}
	for i := range txs.Account {
		prepareBase(&txs.Account[i].BaseTx, entityID, true, domain.SourceReal)
	}
	if deep {
		if err := s.repo.DeleteRealForEntityTx(tx, entityID); err != nil {
			return 0, err
		}
	}
	return s.repo.SaveTx(tx, txs)
}

// ForEntityTx returns every stored transaction of an entity on an open
// database transaction.
func (s *Service) ForEntityTx(tx *sql.Tx, entityID uuid.UUID) (domain.Transactions, error) {
	return s.repo.GetForEntityTx(tx, entityID)
}

// SaveImported stores transactions from a file import.
func (s *Service) SaveImported(entityID uuid.UUID, txs domain.Transactions) (int, error) {
	for i := range txs.Investment {
		prepareBase(&txs.Investment[i].BaseTx, entityID, false, domain.SourceImported)
	}
	for i := range txs.Account {
		prepareBase(&txs.Account[i].BaseTx, entityID, false, domain.SourceImported)
	}
	return s.repo.Save(txs)
}

// Get returns stored transactions matching the query
func (s *Service) Get(q domain.TransactionQuery) (domain.Transactions, error) {
	return s.repo.GetByQuery(q)
}

// LastTxDate returns the date of the newest stored transaction for an
// entity, nil when it has none.
func (s *Service) LastTxDate(entityID uuid.UUID) (*time.Time, error) {
	txs, err := s.repo.GetByQuery(domain.TransactionQuery{
		Entities: []uuid.UUID{entityID},
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	var newest *time.Time
	if len(txs.Investment) > 0 {
		newest = &txs.Investment[0].Date
	}
	if len(txs.Account) > 0 && (newest == nil || txs.Account[0].Date.After(*newest)) {
		newest = &txs.Account[0].Date
	}
	return newest, nil
}

func prepareBase(base *domain.BaseTx, entityID uuid.UUID, isReal bool, source domain.DataSource) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.EntityID == uuid.Nil {
		base.EntityID = entityID
	}
	base.IsRealEnt = isReal
	base.Source = source
	if base.Ref == "" {
		base.Ref = base.ID.String()
	}
}
