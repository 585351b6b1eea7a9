package flows

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Service handles periodic flow business logic. Linked flows belong to a
// real-estate record and can only be changed through it.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new flows service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "flows").Logger(),
	}
}

// GetAll returns all flows
func (s *Service) GetAll() ([]domain.PeriodicFlow, error) {
	return s.repo.GetAll()
}

// Create validates and stores a user-declared flow
func (s *Service) Create(f domain.PeriodicFlow) (*domain.PeriodicFlow, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	f.ID = uuid.New()
	f.Linked = false
	if f.Since.IsZero() {
		f.Since = dates.Today()
	}
	if err := s.repo.Save(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Update modifies an unlinked flow
func (s *Service) Update(f domain.PeriodicFlow) error {
	existing, err := s.repo.GetByID(f.ID)
	if err != nil {
		return err
	}
	if existing.Linked {
		return &domain.InvalidFieldError{Field: "id", Reason: "flow is managed by a real estate record"}
	}
	if err := validate(f); err != nil {
		return err
	}
	f.Linked = false
	return s.repo.Save(f)
}

// Delete removes an unlinked flow
func (s *Service) Delete(id uuid.UUID) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing.Linked {
		return &domain.InvalidFieldError{Field: "id", Reason: "flow is managed by a real estate record"}
	}
	return s.repo.Delete(id)
}

// MonthlyNet sums enabled flows normalized to one month, earnings positive
// and expenses negative.
func (s *Service) MonthlyNet() (decimal.Decimal, error) {
	flows, err := s.repo.GetEnabled()
	if err != nil {
		return decimal.Zero, err
	}
	net := decimal.Zero
	for _, f := range flows {
		monthly := f.Amount.Mul(f.Frequency.MonthlyTimes())
		if f.FlowType == domain.FlowExpense {
			net = net.Sub(monthly)
		} else {
			net = net.Add(monthly)
		}
	}
	return net, nil
}

func validate(f domain.PeriodicFlow) error {
	if f.Name == "" {
		return domain.NewMissingFields("name")
	}
	if f.Amount.Sign() <= 0 {
		return &domain.InvalidFieldError{Field: "amount", Reason: "must be positive"}
	}
	if f.FlowType != domain.FlowEarning && f.FlowType != domain.FlowExpense {
		return &domain.InvalidFieldError{Field: "flow_type", Reason: "unknown flow type"}
	}
	if f.Frequency.MonthlyTimes().IsZero() {
		return &domain.InvalidFieldError{Field: "frequency", Reason: "unknown frequency"}
	}
	if f.Until != nil && f.Until.Before(f.Since) {
		return &domain.InvalidFieldError{Field: "until", Reason: "must not precede since"}
	}
	return nil
}

// GetAllPending returns all pending flows
func (s *Service) GetAllPending() ([]domain.PendingFlow, error) {
	return s.repo.GetAllPending()
}

// CreatePending validates and stores a one-off flow
func (s *Service) CreatePending(f domain.PendingFlow) (*domain.PendingFlow, error) {
	if err := validatePending(f); err != nil {
		return nil, err
	}
	f.ID = uuid.New()
	if err := s.repo.SavePending(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdatePending modifies a pending flow
func (s *Service) UpdatePending(f domain.PendingFlow) error {
	if err := validatePending(f); err != nil {
		return err
	}
	existing, err := s.repo.GetAllPending()
	if err != nil {
		return err
	}
	found := false
	for _, e := range existing {
		if e.ID == f.ID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrEntityNotFound
	}
	return s.repo.SavePending(f)
}

// DeletePending removes a pending flow
func (s *Service) DeletePending(id uuid.UUID) error {
	return s.repo.DeletePending(id)
}

func validatePending(f domain.PendingFlow) error {
	if f.Name == "" {
		return domain.NewMissingFields("name")
	}
	if f.Amount.Sign() <= 0 {
		return &domain.InvalidFieldError{Field: "amount", Reason: "must be positive"}
	}
	if f.FlowType != domain.FlowEarning && f.FlowType != domain.FlowExpense {
		return &domain.InvalidFieldError{Field: "flow_type", Reason: "unknown flow type"}
	}
	return nil
}
