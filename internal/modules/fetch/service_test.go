package fetch

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/moneta/internal/database"
	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/internal/events"
	"github.com/aristath/moneta/internal/modules/contributions"
	"github.com/aristath/moneta/internal/modules/entity"
	"github.com/aristath/moneta/internal/modules/historic"
	"github.com/aristath/moneta/internal/modules/position"
	"github.com/aristath/moneta/internal/modules/transactions"
)

// stubFetcher lets each test choose the handshake and payloads.
type stubFetcher struct {
	login        func(LoginParams) (*domain.EntityLoginResult, error)
	position     func() (*domain.GlobalPosition, error)
	transactions func(refs map[string]bool, since *time.Time) (*domain.Transactions, error)
}

func (f *stubFetcher) Login(_ context.Context, p LoginParams) (*domain.EntityLoginResult, error) {
	if f.login != nil {
		return f.login(p)
	}
	return &domain.EntityLoginResult{Code: domain.LoginResumed}, nil
}

func (f *stubFetcher) Position(context.Context) (*domain.GlobalPosition, error) {
	if f.position != nil {
		return f.position()
	}
	return &domain.GlobalPosition{Products: domain.Products{}}, nil
}

func (f *stubFetcher) Transactions(_ context.Context, refs map[string]bool, since *time.Time) (*domain.Transactions, error) {
	if f.transactions != nil {
		return f.transactions(refs, since)
	}
	return &domain.Transactions{}, nil
}

func (f *stubFetcher) AutoContributions(context.Context) (*domain.AutoContributions, error) {
	return &domain.AutoContributions{}, nil
}

func (f *stubFetcher) HistoricalPosition(context.Context) (*domain.HistoricalPosition, error) {
	return &domain.HistoricalPosition{Products: domain.Products{}}, nil
}

type fixture struct {
	service   *Service
	config    Config
	creds     *entity.CredentialsRepository
	sessions  *entity.SessionsRepository
	positions *position.Repository
	txs       *transactions.Service
	entity    domain.Entity
	fetcher   *stubFetcher
	clock     *time.Time
}

func newFixture(t *testing.T, features ...domain.Feature) *fixture {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	ev := events.NewManager(log)

	if len(features) == 0 {
		features = []domain.Feature{domain.FeaturePosition, domain.FeatureTransactions}
	}
	e := domain.Entity{
		ID:       uuid.New(),
		Name:     "Test Bank",
		Type:     domain.EntityTypeFinancialInstitution,
		Origin:   domain.EntityOriginNative,
		Features: features,
		CredTemplate: map[string]domain.CredentialType{
			"user":     domain.CredentialTypeID,
			"password": domain.CredentialTypePassword,
		},
	}
	entities := entity.NewRepository(db.Conn(), log)
	require.NoError(t, entities.Upsert(e))

	creds := entity.NewCredentialsRepository(db.Conn(), log)
	sessions := entity.NewSessionsRepository(db.Conn(), log)

	fetcher := &stubFetcher{}
	registry := NewRegistry()
	registry.Register(e.ID, fetcher)

	posRepo := position.NewRepository(db.Conn(), log)
	posSvc := position.NewService(posRepo, position.NewAssetRegistry(db.Conn(), log), ev, log)
	txSvc := transactions.NewService(transactions.NewRepository(db.Conn(), log), ev, log)
	histSvc := historic.NewService(historic.NewRepository(db.Conn(), log), log)
	contribSvc := contributions.NewService(contributions.NewRepository(db.Conn(), log), log)

	cfg := Config{
		Registry:      registry,
		Entities:      entities,
		Credentials:   creds,
		Sessions:      sessions,
		DB:            db,
		LastFetches:   NewRepository(db.Conn(), log),
		Positions:     posSvc,
		Transactions:  txSvc,
		Contributions: contribSvc,
		Historic:      histSvc,
		Events:        ev,
		Cooldown:      60 * time.Second,
		Log:           log,
	}
	svc := NewService(cfg)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		service:   svc,
		config:    cfg,
		creds:     creds,
		sessions:  sessions,
		positions: posRepo,
		txs:       txSvc,
		entity:    e,
		fetcher:   fetcher,
		clock:     &now,
	}
	svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, f.creds.Save(domain.EntityCredentials{
		EntityID: f.entity.ID,
		Fields:   map[string]string{"user": "u", "password": "p"},
	}))
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestFetchUnknownEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestFetchWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchNoCredentials, res.Code)
}

func TestFetchWithIncompleteCredentials(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.creds.Save(domain.EntityCredentials{
		EntityID: f.entity.ID,
		Fields:   map[string]string{"user": "u"},
	}))

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchInvalidCredentials, res.Code)
}

func TestFetchCooldownBoundary(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	require.Equal(t, domain.FetchCompleted, res.Code)

	// 59s later: still cooling down
	f.advance(59 * time.Second)
	res, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCooldown, res.Code)
	assert.Equal(t, 1, res.Details["wait"])

	// exactly at the cooldown: allowed again
	f.advance(1 * time.Second)
	res, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCompleted, res.Code)
}

func TestFetchConflictWhileRunning(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	block := make(chan struct{})
	started := make(chan struct{})
	f.fetcher.position = func() (*domain.GlobalPosition, error) {
		close(started)
		<-block
		return &domain.GlobalPosition{Products: domain.Products{}}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
		done <- err
	}()
	<-started

	_, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	assert.ErrorIs(t, err, domain.ErrExecutionConflict)

	close(block)
	require.NoError(t, <-done)
}

func TestFetchTwoFactorHandshake(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.fetcher.login = func(p LoginParams) (*domain.EntityLoginResult, error) {
		if p.Code == "" {
			return &domain.EntityLoginResult{
				Code:      domain.LoginCodeRequested,
				ProcessID: "proc-7",
			}, nil
		}
		if p.Code != "123456" {
			return &domain.EntityLoginResult{Code: domain.LoginInvalidCode}, nil
		}
		return &domain.EntityLoginResult{Code: domain.LoginCreated, Session: &domain.EntitySession{
			Payload: map[string]string{"token": "tok"},
		}}, nil
	}

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCodeRequested, res.Code)
	assert.Equal(t, "proc-7", res.Details["processId"])

	res, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID, Code: "999999"})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchInvalidCode, res.Code)

	res, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID, Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCompleted, res.Code)
}

func TestFetchInvalidCredentialsLeaveThemUntouched(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.fetcher.login = func(LoginParams) (*domain.EntityLoginResult, error) {
		return &domain.EntityLoginResult{Code: domain.LoginInvalidCreds}, nil
	}

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchInvalidCredentials, res.Code)

	// the user may retry with the same credentials
	stored, err := f.creds.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Expiration)
}

func TestFetchLoginRequiredExpiresCredentials(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.fetcher.login = func(LoginParams) (*domain.EntityLoginResult, error) {
		return &domain.EntityLoginResult{Code: domain.LoginNotLogged}, nil
	}

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchLoginRequired, res.Code)

	stored, err := f.creds.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Expiration)
	assert.Equal(t, f.clock.Unix(), stored.Expiration.Unix())
}

func TestFetchResumedSessionTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.sessions.Save(domain.EntitySession{
		EntityID: f.entity.ID,
		Creation: *f.clock,
		Payload:  map[string]string{"token": "old"},
	}))

	f.fetcher.login = func(LoginParams) (*domain.EntityLoginResult, error) {
		return &domain.EntityLoginResult{Code: domain.LoginResumed, Session: &domain.EntitySession{
			Payload: map[string]string{"token": "new"},
		}}, nil
	}

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCompleted, res.Code)

	sess, err := f.sessions.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "old", sess.Payload["token"])

	stored, err := f.creds.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.LastUsedAt)
}

func TestFetchCreatedLoginReplacesSession(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	require.NoError(t, f.sessions.Save(domain.EntitySession{
		EntityID: f.entity.ID,
		Creation: f.clock.Add(-time.Hour),
		Payload:  map[string]string{"token": "stale"},
	}))

	f.fetcher.login = func(LoginParams) (*domain.EntityLoginResult, error) {
		return &domain.EntityLoginResult{Code: domain.LoginCreated, Session: &domain.EntitySession{
			Payload: map[string]string{"token": "fresh"},
		}}, nil
	}

	res, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchCompleted, res.Code)

	sess, err := f.sessions.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "fresh", sess.Payload["token"])

	stored, err := f.creds.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestFetchIncrementalTransactionWindow(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	var sinceSeen []*time.Time
	f.fetcher.transactions = func(refs map[string]bool, since *time.Time) (*domain.Transactions, error) {
		sinceSeen = append(sinceSeen, since)
		return &domain.Transactions{Investment: []domain.InvestmentTx{{
			BaseTx: domain.BaseTx{
				Ref: uuid.NewString(), Name: "Buy", Amount: decimal.NewFromInt(10),
				Currency: "EUR", Type: domain.TxBuy, Date: *f.clock,
				ProductType: domain.ProductStockETF,
			},
		}}}, nil
	}

	firstFetch := *f.clock
	_, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)

	f.advance(2 * time.Minute)
	_, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)

	f.advance(2 * time.Minute)
	_, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID, Deep: true})
	require.NoError(t, err)

	require.Len(t, sinceSeen, 3)
	assert.Nil(t, sinceSeen[0])
	require.NotNil(t, sinceSeen[1])
	assert.Equal(t, firstFetch.Unix(), sinceSeen[1].Unix())
	assert.Nil(t, sinceSeen[2], "deep fetch requests full history")
}

func TestFetchDeepReplacesStoredTransactions(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	amount := decimal.NewFromInt(100)
	var refsSeen []map[string]bool
	f.fetcher.transactions = func(refs map[string]bool, since *time.Time) (*domain.Transactions, error) {
		refsSeen = append(refsSeen, refs)
		return &domain.Transactions{Investment: []domain.InvestmentTx{{
			BaseTx: domain.BaseTx{
				Ref: "R1", Name: "Calle Mayor 12", Amount: amount,
				Currency: "EUR", Type: domain.TxInvestment, Date: *f.clock,
				ProductType: domain.ProductRealEstateCF,
			},
		}}}, nil
	}

	_, err := f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.NoError(t, err)

	// the platform corrected the figure; a deep refetch must replace the row
	amount = decimal.NewFromInt(200)
	f.advance(2 * time.Minute)
	_, err = f.service.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID, Deep: true})
	require.NoError(t, err)

	require.Len(t, refsSeen, 2)
	assert.Empty(t, refsSeen[1], "deep fetch hides known refs from the fetcher")

	stored, err := f.txs.Get(domain.TransactionQuery{Entities: []uuid.UUID{f.entity.ID}})
	require.NoError(t, err)
	require.Len(t, stored.Investment, 1)
	assert.Equal(t, "200", stored.Investment[0].Amount.String())
}

// failingTxSink stands in for a transaction sink whose write fails mid-run.
type failingTxSink struct {
	TransactionSink
}

func (failingTxSink) SaveFetchedTx(*sql.Tx, uuid.UUID, domain.Transactions, bool) (int, error) {
	return 0, errors.New("disk full")
}

func TestFetchFailedRunLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	cfg := f.config
	cfg.Transactions = failingTxSink{cfg.Transactions}
	svc := NewService(cfg)
	svc.now = f.service.now

	f.fetcher.position = func() (*domain.GlobalPosition, error) {
		return &domain.GlobalPosition{Products: domain.Products{
			domain.ProductAccount: &domain.Accounts{Entries: []domain.Account{{
				ID: uuid.New(), Total: decimal.NewFromInt(100), Currency: "EUR", Type: domain.AccountChecking,
			}}},
		}}, nil
	}

	_, err := svc.Fetch(context.Background(), domain.FetchOptions{EntityID: f.entity.ID})
	require.Error(t, err)

	// the position written before the failing sink rolled back with it
	pos, err := f.positions.GetLatestReal(f.entity.ID)
	require.NoError(t, err)
	assert.Nil(t, pos)

	// no last-fetch record either, so the next run is not on cooldown
	last, err := f.config.LastFetches.GetLast(f.entity.ID, domain.FeaturePosition)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestLoginStoresCredentialsAndSession(t *testing.T) {
	f := newFixture(t)

	f.fetcher.login = func(p LoginParams) (*domain.EntityLoginResult, error) {
		return &domain.EntityLoginResult{Code: domain.LoginCreated, Session: &domain.EntitySession{
			Payload: map[string]string{"refresh": "r1"},
		}}, nil
	}

	res, err := f.service.Login(context.Background(), domain.LoginOptions{
		EntityID:    f.entity.ID,
		Credentials: map[string]string{"user": "u", "password": "p"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoginCreated, res.Code)

	stored, err := f.creds.Get(f.entity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u", stored.Fields["user"])
	assert.NotNil(t, stored.LastUsedAt)
}

func TestLoginRejectsIncompleteCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Login(context.Background(), domain.LoginOptions{
		EntityID:    f.entity.ID,
		Credentials: map[string]string{"user": "u"},
	})
	var mf *domain.MissingFieldsError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"password"}, mf.Fields)
}
