package realestate

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/domain"
	flowsmod "github.com/aristath/moneta/internal/modules/flows"
	"github.com/aristath/moneta/pkg/dates"
)

// Service manages properties and the periodic flows linked to them. Linked
// flows are owned by the property: they are created and removed here, and
// the flows module refuses to touch them directly.
type Service struct {
	repo  *Repository
	flows *flowsmod.Repository
	log   zerolog.Logger
}

// NewService creates a new real estate service
func NewService(repo *Repository, flows *flowsmod.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		flows: flows,
		log:   log.With().Str("service", "real_estate").Logger(),
	}
}

// GetAll returns every property.
func (s *Service) GetAll() ([]domain.RealEstate, error) {
	return s.repo.GetAll()
}

// Create validates and stores a new property, creating its linked flows.
func (s *Service) Create(property domain.RealEstate) (domain.RealEstate, error) {
	if err := validate(property); err != nil {
		return domain.RealEstate{}, err
	}
	property.ID = uuid.New()
	if property.CreatedAt.IsZero() {
		property.CreatedAt = dates.Today()
	}
	if err := s.persistFlows(property.Flows); err != nil {
		return domain.RealEstate{}, err
	}
	if err := s.repo.Save(property); err != nil {
		return domain.RealEstate{}, err
	}
	s.log.Info().Str("id", property.ID.String()).Str("name", property.BasicInfo.Name).
		Msg("Real estate created")
	return property, nil
}

// Update replaces a property. When removeUnassigned is set, linked flows
// that are no longer referenced are deleted outright.
func (s *Service) Update(property domain.RealEstate, removeUnassigned bool) error {
	existing, err := s.repo.GetByID(property.ID)
	if err != nil {
		return err
	}
	if err := validate(property); err != nil {
		return err
	}

	if removeUnassigned {
		assigned := make(map[uuid.UUID]bool, len(property.Flows))
		for _, f := range property.Flows {
			assigned[f.PeriodicFlowID] = true
		}
		for _, f := range existing.Flows {
			if !assigned[f.PeriodicFlowID] {
				if err := s.flows.Delete(f.PeriodicFlowID); err != nil {
					return fmt.Errorf("failed to remove flow %s: %w", f.PeriodicFlowID, err)
				}
			}
		}
	}

	if err := s.persistFlows(property.Flows); err != nil {
		return err
	}

	// Immutable across updates; rental data survives when the update omits it.
	property.Currency = existing.Currency
	property.CreatedAt = existing.CreatedAt
	if property.RentalData == nil {
		property.RentalData = existing.RentalData
	}
	return s.repo.Save(property)
}

// Delete removes a property together with its linked flows.
func (s *Service) Delete(id uuid.UUID) error {
	property, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	for _, f := range property.Flows {
		if err := s.flows.Delete(f.PeriodicFlowID); err != nil && err != domain.ErrEntityNotFound {
			return err
		}
	}
	return s.repo.Delete(id)
}

// persistFlows creates embedded flows that have no id yet and updates the
// rest, forcing the linked marker so the flows API cannot edit them.
func (s *Service) persistFlows(links []domain.RealEstateFlow) error {
	for i := range links {
		link := &links[i]
		if link.Flow == nil {
			if link.PeriodicFlowID == uuid.Nil {
				return domain.NewMissingFields("flows.periodic_flow_id")
			}
			continue
		}
		link.Flow.Linked = true
		if link.PeriodicFlowID == uuid.Nil {
			if link.Flow.ID == uuid.Nil {
				link.Flow.ID = uuid.New()
			}
			link.PeriodicFlowID = link.Flow.ID
		} else {
			link.Flow.ID = link.PeriodicFlowID
			if _, err := s.flows.GetByID(link.PeriodicFlowID); err != nil {
				return err
			}
		}
		if link.Flow.Since.IsZero() {
			link.Flow.Since = dates.Today()
		}
		if err := s.flows.Save(*link.Flow); err != nil {
			return err
		}
	}
	return nil
}

func validate(property domain.RealEstate) error {
	var missing []string
	if property.BasicInfo.Name == "" {
		missing = append(missing, "basic_info.name")
	}
	if property.Currency == "" {
		missing = append(missing, "currency")
	}
	if property.PurchaseInfo.Date.IsZero() {
		missing = append(missing, "purchase_info.date")
	}
	if len(missing) > 0 {
		return domain.NewMissingFields(missing...)
	}
	for _, link := range property.Flows {
		if link.FlowSubtype == domain.REFlowLoan {
			if _, err := link.LoanPayload(); err != nil {
				return err
			}
		}
	}
	return nil
}
