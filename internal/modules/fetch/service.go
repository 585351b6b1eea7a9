package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
	"github.com/aristath/moneta/internal/modules/entity"
)

// EntityStore resolves entities from the registry.
type EntityStore interface {
	GetByID(id uuid.UUID) (*domain.Entity, error)
}

// CredentialsStore reads and maintains stored credentials.
type CredentialsStore interface {
	Get(entityID uuid.UUID) (*domain.EntityCredentials, error)
	Save(creds domain.EntityCredentials) error
	MarkUsed(entityID uuid.UUID, at time.Time) error
	Expire(entityID uuid.UUID, at time.Time) error
}

// SessionStore reads and maintains fetcher sessions.
type SessionStore interface {
	Get(entityID uuid.UUID) (*domain.EntitySession, error)
	Save(session domain.EntitySession) error
	Delete(entityID uuid.UUID) error
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// PositionSink persists fetched positions.
type PositionSink interface {
	SaveFetchedTx(tx *sql.Tx, pos domain.GlobalPosition) error
}

// TransactionSink persists fetched transactions and reads the stored set back.
type TransactionSink interface {
	RegisteredRefs(entityID uuid.UUID) (map[string]bool, error)
	SaveFetchedTx(tx *sql.Tx, entityID uuid.UUID, txs domain.Transactions, deep bool) (int, error)
	ForEntityTx(tx *sql.Tx, entityID uuid.UUID) (domain.Transactions, error)
}

// ContributionSink persists fetched standing orders.
type ContributionSink interface {
	SaveFetchedTx(tx *sql.Tx, entityID uuid.UUID, auto domain.AutoContributions) error
}

// HistoricSink reduces and persists the investment ledger.
type HistoricSink interface {
	ReduceTx(tx *sql.Tx, entityID uuid.UUID, historical domain.HistoricalPosition, txs domain.Transactions) ([]domain.HistoricEntry, error)
}

// Service orchestrates fetch runs: per-entity locking, cooldown, the login
// handshake and the feature fan-out with atomic persistence.
type Service struct {
	registry      *Registry
	entities      EntityStore
	creds         CredentialsStore
	sessions      SessionStore
	db            TxRunner
	lastFetches   *Repository
	positions     PositionSink
	transactions  TransactionSink
	contributions ContributionSink
	historic      HistoricSink
	events        *events.Manager
	cooldown      time.Duration
	locks         *entityLocks
	now           func() time.Time
	log           zerolog.Logger
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry      *Registry
	Entities      EntityStore
	Credentials   CredentialsStore
	Sessions      SessionStore
	DB            TxRunner
	LastFetches   *Repository
	Positions     PositionSink
	Transactions  TransactionSink
	Contributions ContributionSink
	Historic      HistoricSink
	Events        *events.Manager
	Cooldown      time.Duration
	Log           zerolog.Logger
}

// NewService creates a new fetch orchestrator
func NewService(cfg Config) *Service {
	return &Service{
		registry:      cfg.Registry,
		entities:      cfg.Entities,
		creds:         cfg.Credentials,
		sessions:      cfg.Sessions,
		db:            cfg.DB,
		lastFetches:   cfg.LastFetches,
		positions:     cfg.Positions,
		transactions:  cfg.Transactions,
		contributions: cfg.Contributions,
		historic:      cfg.Historic,
		events:        cfg.Events,
		cooldown:      cfg.Cooldown,
		locks:         newEntityLocks(),
		now:           time.Now,
		log:           cfg.Log.With().Str("service", "fetch").Logger(),
	}
}

// Fetch runs the full pipeline for one entity.
func (s *Service) Fetch(ctx context.Context, opts domain.FetchOptions) (domain.FetchResult, error) {
	e, err := s.entities.GetByID(opts.EntityID)
	if err != nil {
		return domain.FetchResult{}, err
	}
	fetcher := s.registry.Get(e.ID)
	if fetcher == nil {
		return domain.FetchResult{
			Code:    domain.FetchNoCredentials,
			Message: "no fetcher registered for entity",
		}, nil
	}

	features := opts.Features
	if len(features) == 0 {
		features = e.Features
	}
	if !e.SupportsAll(features) {
		return domain.FetchResult{Code: domain.FetchFeatureUnsupported}, nil
	}

	if !s.locks.tryAcquire(e.ID) {
		return domain.FetchResult{}, domain.ErrExecutionConflict
	}
	defer s.locks.release(e.ID)

	if hasFeature(features, domain.FeaturePosition) {
		if res, coolingDown, err := s.checkCooldown(e.ID); err != nil {
			return domain.FetchResult{}, err
		} else if coolingDown {
			return res, nil
		}
	}

	s.events.Emit(events.FetchStarted, "fetch", map[string]interface{}{
		"entity_id": e.ID.String(),
		"entity":    e.Name,
	})

	result, loggedIn, err := s.login(ctx, *e, fetcher, opts)
	if err != nil {
		return domain.FetchResult{}, err
	}
	if !loggedIn {
		return result, nil
	}

	data, err := s.fanOut(ctx, *e, fetcher, features, opts.Deep)
	if err != nil {
		s.events.EmitError("fetch", err, map[string]interface{}{"entity_id": e.ID.String()})
		return domain.FetchResult{Code: domain.FetchUnexpectedError, Message: err.Error()}, nil
	}

	if err := s.persist(ctx, e.ID, features, data, opts.Deep); err != nil {
		return domain.FetchResult{}, err
	}

	s.events.Emit(events.FetchCompleted, "fetch", map[string]interface{}{
		"entity_id": e.ID.String(),
		"entity":    e.Name,
	})
	return domain.FetchResult{Code: domain.FetchCompleted, Data: data}, nil
}

// checkCooldown enforces the minimum gap between position fetches. A gap
// exactly equal to the cooldown passes.
func (s *Service) checkCooldown(entityID uuid.UUID) (domain.FetchResult, bool, error) {
	last, err := s.lastFetches.GetLast(entityID, domain.FeaturePosition)
	if err != nil {
		return domain.FetchResult{}, false, err
	}
	if last == nil {
		return domain.FetchResult{}, false, nil
	}
	elapsed := s.now().Sub(last.Date)
	if elapsed < s.cooldown {
		wait := int((s.cooldown - elapsed).Round(time.Second).Seconds())
		return domain.FetchResult{
			Code: domain.FetchCooldown,
			Details: map[string]any{
				"lastUpdate": last.Date.UTC().Format(time.RFC3339),
				"wait":       wait,
			},
		}, true, nil
	}
	return domain.FetchResult{}, false, nil
}

// login drives the credential and session handshake. The bool reports
// whether the run may proceed to fetching.
func (s *Service) login(ctx context.Context, e domain.Entity, fetcher Fetcher, opts domain.FetchOptions) (domain.FetchResult, bool, error) {
	creds, err := s.creds.Get(e.ID)
	if err != nil {
		return domain.FetchResult{}, false, err
	}
	if creds == nil {
		return domain.FetchResult{Code: domain.FetchNoCredentials}, false, nil
	}
	for name, credType := range e.CredTemplate {
		if credType == domain.CredentialTypeInternal || credType == domain.CredentialTypeInternalTemp {
			continue
		}
		if creds.Fields[name] == "" {
			return domain.FetchResult{Code: domain.FetchInvalidCredentials}, false, nil
		}
	}

	session, err := s.sessions.Get(e.ID)
	if err != nil {
		return domain.FetchResult{}, false, err
	}
	if session != nil && session.Expiration != nil && session.Expiration.Before(s.now()) {
		session = nil
	}

	login, err := fetcher.Login(ctx, LoginParams{
		Credentials:   creds.Fields,
		Code:          opts.Code,
		Session:       session,
		AvoidNewLogin: opts.AvoidNewLogin,
	})
	if err != nil {
		return domain.FetchResult{}, false, fmt.Errorf("login failed: %w", err)
	}

	switch login.Code {
	case domain.LoginCreated:
		// A fresh login means the stored credentials work again.
		if err := s.creds.MarkUsed(e.ID, s.now()); err != nil {
			return domain.FetchResult{}, false, err
		}
		if login.Session != nil {
			if err := s.sessions.Delete(e.ID); err != nil {
				return domain.FetchResult{}, false, err
			}
			sess := *login.Session
			sess.EntityID = e.ID
			if sess.Creation.IsZero() {
				sess.Creation = s.now()
			}
			if err := s.sessions.Save(sess); err != nil {
				return domain.FetchResult{}, false, err
			}
		}
		return domain.FetchResult{}, true, nil
	case domain.LoginResumed:
		// The stored session still works; leave credentials and session as-is.
		return domain.FetchResult{}, true, nil
	case domain.LoginCodeRequested:
		details := map[string]any{}
		if login.ProcessID != "" {
			details["processId"] = login.ProcessID
		}
		if login.Message != "" {
			details["message"] = login.Message
		}
		return domain.FetchResult{Code: domain.FetchCodeRequested, Details: details}, false, nil
	case domain.LoginManual:
		return domain.FetchResult{
			Code:    domain.FetchManualLogin,
			Details: map[string]any{"credentials": login.Details},
		}, false, nil
	case domain.LoginInvalidCode:
		return domain.FetchResult{Code: domain.FetchInvalidCode, Message: login.Message}, false, nil
	case domain.LoginInvalidCreds:
		return domain.FetchResult{Code: domain.FetchInvalidCredentials, Message: login.Message}, false, nil
	case domain.LoginNotLogged:
		if err := s.creds.Expire(e.ID, s.now()); err != nil {
			return domain.FetchResult{}, false, err
		}
		return domain.FetchResult{Code: domain.FetchLoginRequired, Message: login.Message}, false, nil
	default:
		return domain.FetchResult{Code: domain.FetchUnexpectedError, Message: login.Message}, false, nil
	}
}

// fanOut collects every requested feature before anything is persisted, so
// a failing feature aborts the whole run.
func (s *Service) fanOut(ctx context.Context, e domain.Entity, fetcher Fetcher, features []domain.Feature, deep bool) (*domain.FetchedData, error) {
	data := &domain.FetchedData{}
	for _, feature := range features {
		var err error
		switch feature {
		case domain.FeaturePosition:
			data.Position, err = fetcher.Position(ctx)
		case domain.FeatureTransactions:
			// A deep run hides known refs and the incremental window so the
			// fetcher walks the full history again.
			refs := map[string]bool{}
			var since *time.Time
			if !deep {
				refs, err = s.transactions.RegisteredRefs(e.ID)
				if err != nil {
					return nil, fmt.Errorf("transactions: %w", err)
				}
				last, lerr := s.lastFetches.GetLast(e.ID, domain.FeatureTransactions)
				if lerr != nil {
					return nil, lerr
				}
				if last != nil {
					since = &last.Date
				}
			}
			data.Transactions, err = fetcher.Transactions(ctx, refs, since)
		case domain.FeatureAutoContributions:
			data.Contributions, err = fetcher.AutoContributions(ctx)
		case domain.FeatureHistoric:
			data.Historic, err = fetcher.HistoricalPosition(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", feature, err)
		}
	}
	return data, nil
}

// persist writes every fetched feature and the last-fetch records in one
// database transaction, so a failing sink leaves nothing half-written.
func (s *Service) persist(ctx context.Context, entityID uuid.UUID, features []domain.Feature, data *domain.FetchedData, deep bool) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if data.Position != nil {
			pos := *data.Position
			pos.EntityID = entityID
			if err := s.positions.SaveFetchedTx(tx, pos); err != nil {
				return err
			}
		}
		if data.Contributions != nil {
			if err := s.contributions.SaveFetchedTx(tx, entityID, *data.Contributions); err != nil {
				return err
			}
		}
		if data.Transactions != nil {
			if _, err := s.transactions.SaveFetchedTx(tx, entityID, *data.Transactions, deep); err != nil {
				return err
			}
			if data.Historic != nil {
				// The ledger reduces over everything stored for the entity,
				// not just this run's batch.
				stored, err := s.transactions.ForEntityTx(tx, entityID)
				if err != nil {
					return err
				}
				if _, err := s.historic.ReduceTx(tx, entityID, *data.Historic, stored); err != nil {
					return err
				}
			}
		}

		now := s.now()
		records := make([]domain.FetchRecord, 0, len(features))
		for _, feature := range features {
			records = append(records, domain.FetchRecord{EntityID: entityID, Feature: feature, Date: now})
		}
		return s.lastFetches.SaveTx(tx, records)
	})
}

// Login connects an entity: validates the supplied credentials against the
// template, runs the fetcher handshake and stores credentials plus session
// on success.
func (s *Service) Login(ctx context.Context, opts domain.LoginOptions) (domain.EntityLoginResult, error) {
	e, err := s.entities.GetByID(opts.EntityID)
	if err != nil {
		return domain.EntityLoginResult{}, err
	}
	fetcher := s.registry.Get(e.ID)
	if fetcher == nil {
		return domain.EntityLoginResult{Code: domain.LoginNotLogged,
			Message: "no fetcher registered for entity"}, nil
	}

	credentials := opts.Credentials
	if len(credentials) == 0 {
		// re-login with stored credentials (e.g. continuing a 2FA flow)
		stored, err := s.creds.Get(e.ID)
		if err != nil {
			return domain.EntityLoginResult{}, err
		}
		if stored == nil {
			return domain.EntityLoginResult{}, domain.NewMissingFields("credentials")
		}
		credentials = stored.Fields
	} else if err := entity.ValidateCredentials(*e, credentials); err != nil {
		return domain.EntityLoginResult{}, err
	}

	if !s.locks.tryAcquire(e.ID) {
		return domain.EntityLoginResult{}, domain.ErrExecutionConflict
	}
	defer s.locks.release(e.ID)

	login, err := fetcher.Login(ctx, LoginParams{
		Credentials: credentials,
		Code:        opts.Code,
		ProcessID:   opts.ProcessID,
	})
	if err != nil {
		return domain.EntityLoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	if login.Code == domain.LoginCreated || login.Code == domain.LoginResumed {
		now := s.now()
		if err := s.creds.Save(domain.EntityCredentials{
			EntityID:   e.ID,
			Fields:     credentials,
			LastUsedAt: &now,
		}); err != nil {
			return domain.EntityLoginResult{}, err
		}
		if login.Session != nil {
			sess := *login.Session
			sess.EntityID = e.ID
			if sess.Creation.IsZero() {
				sess.Creation = now
			}
			if err := s.sessions.Save(sess); err != nil {
				return domain.EntityLoginResult{}, err
			}
		}
		s.events.Emit(events.EntityConnected, "fetch", map[string]interface{}{
			"entity_id": e.ID.String(),
			"entity":    e.Name,
		})
	}
	return *login, nil
}

func hasFeature(features []domain.Feature, f domain.Feature) bool {
	for _, have := range features {
		if have == f {
			return true
		}
	}
	return false
}
