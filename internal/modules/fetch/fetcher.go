package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/moneta/internal/domain"
)

// LoginParams is everything a fetcher may need to open or resume a session.
type LoginParams struct {
	Credentials   map[string]string
	Code          string
	ProcessID     string
	Session       *domain.EntitySession
	AvoidNewLogin bool
}

// Fetcher talks to one entity. Implementations live per institution and are
// registered at startup.
type Fetcher interface {
	// Login opens or resumes a session. Two-phase flows return
	// CODE_REQUESTED with a process id and expect a second call carrying
	// the code.
	Login(ctx context.Context, params LoginParams) (*domain.EntityLoginResult, error)

	// Position reports current holdings.
	Position(ctx context.Context) (*domain.GlobalPosition, error)

	// Transactions reports movements. registeredRefs lets the fetcher skip
	// known rows; since bounds the window, nil meaning full history.
	Transactions(ctx context.Context, registeredRefs map[string]bool, since *time.Time) (*domain.Transactions, error)

	// AutoContributions reports standing orders.
	AutoContributions(ctx context.Context) (*domain.AutoContributions, error)

	// HistoricalPosition reports every investment ever held.
	HistoricalPosition(ctx context.Context) (*domain.HistoricalPosition, error)
}

// Registry maps entity ids to their fetchers.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[uuid.UUID]Fetcher
}

// NewRegistry creates an empty fetcher registry
func NewRegistry() *Registry {
	return &Registry{fetchers: map[uuid.UUID]Fetcher{}}
}

// Register binds a fetcher to an entity id
func (r *Registry) Register(entityID uuid.UUID, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[entityID] = f
}

// Get returns the fetcher for an entity, nil when none is registered
func (r *Registry) Get(entityID uuid.UUID) Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchers[entityID]
}

// entityLocks hands out one try-lock per entity so concurrent fetches of the
// same entity conflict while different entities proceed in parallel.
type entityLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: map[uuid.UUID]*sync.Mutex{}}
}

func (l *entityLocks) tryAcquire(entityID uuid.UUID) bool {
	l.mu.Lock()
	lock, ok := l.locks[entityID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[entityID] = lock
	}
	l.mu.Unlock()
	return lock.TryLock()
}

func (l *entityLocks) release(entityID uuid.UUID) {
	l.mu.Lock()
	lock := l.locks[entityID]
	l.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}
