package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/pkg/dates"
)

// RealEstateFlowSubtype labels the flows a property links to.
type RealEstateFlowSubtype string

const (
	REFlowLoan        RealEstateFlowSubtype = "LOAN"
	REFlowRent        RealEstateFlowSubtype = "RENT"
	REFlowCost        RealEstateFlowSubtype = "COST"
	REFlowSupply      RealEstateFlowSubtype = "SUPPLY"
	REFlowTax         RealEstateFlowSubtype = "TAX"
	REFlowCommunity   RealEstateFlowSubtype = "COMMUNITY"
	REFlowInsurance   RealEstateFlowSubtype = "INSURANCE"
	REFlowMaintenance RealEstateFlowSubtype = "MAINTENANCE"
)

// RealEstateFlow ties a property to one of its periodic flows. The flow rows
// themselves live in the flows table with Linked set; payload carries
// subtype-specific extras such as loan terms.
type RealEstateFlow struct {
	PeriodicFlowID uuid.UUID             `json:"periodic_flow_id"`
	FlowSubtype    RealEstateFlowSubtype `json:"flow_subtype"`
	Description    string                `json:"description,omitempty"`
	Payload        map[string]any        `json:"payload,omitempty"`

	// Flow is resolved on load.
	Flow *PeriodicFlow `json:"flow,omitempty"`
}

// RealEstateLoanPayload is the shape of the Payload map for LOAN flows.
type RealEstateLoanPayload struct {
	Type                 LoanType         `json:"type"`
	LoanAmount           *decimal.Decimal `json:"loan_amount,omitempty"`
	InterestRate         decimal.Decimal  `json:"interest_rate"`
	EuriborRate          *decimal.Decimal `json:"euribor_rate,omitempty"`
	InterestType         InterestType     `json:"interest_type"`
	FixedYears           *int             `json:"fixed_years,omitempty"`
	PrincipalOutstanding decimal.Decimal  `json:"principal_outstanding"`
	MonthlyInterests     *decimal.Decimal `json:"monthly_interests,omitempty"`
}

// BasicInfo identifies a property.
type RealEstateBasicInfo struct {
	Name        string `json:"name"`
	IsResidence bool   `json:"is_residence"`
	IsRented    bool   `json:"is_rented"`
	Bathrooms   *int   `json:"bathrooms,omitempty"`
	Bedrooms    *int   `json:"bedrooms,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Location is the property address.
type RealEstateLocation struct {
	Address   string `json:"address"`
	Cadastral string `json:"cadastral_reference,omitempty"`
}

// PurchaseInfo captures acquisition cost.
type RealEstatePurchaseInfo struct {
	Date     dates.Date      `json:"date"`
	Price    decimal.Decimal `json:"price"`
	Expenses decimal.Decimal `json:"expenses"`
	Taxes    decimal.Decimal `json:"taxes"`
}

// ValuationInfo captures the current estimate and yearly appreciation used
// for projections.
type RealEstateValuationInfo struct {
	EstimatedMarketValue decimal.Decimal  `json:"estimated_market_value"`
	Valuations           []REValuation    `json:"valuations,omitempty"`
	AnnualAppreciation   *decimal.Decimal `json:"annual_appreciation,omitempty"`
}

// REValuation is a dated third-party estimate.
type REValuation struct {
	Date   dates.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes,omitempty"`
}

// RentalData exists for rented properties.
type RealEstateRentalData struct {
	MonthlyRent       *decimal.Decimal `json:"monthly_rent,omitempty"`
	ContractStart     *dates.Date      `json:"contract_start,omitempty"`
	ContractEnd       *dates.Date      `json:"contract_end,omitempty"`
	Tenant            string           `json:"tenant,omitempty"`
	MarginalTaxRate   *decimal.Decimal `json:"marginal_tax_rate,omitempty"`
	AmortizationsBase *decimal.Decimal `json:"amortizations_base,omitempty"`
	VacancyRate       *decimal.Decimal `json:"vacancy_rate,omitempty"`
}

// RealEstate is a directly-owned property with its linked flows.
type RealEstate struct {
	ID           uuid.UUID               `json:"id"`
	BasicInfo    RealEstateBasicInfo     `json:"basic_info"`
	Location     RealEstateLocation      `json:"location"`
	PurchaseInfo RealEstatePurchaseInfo  `json:"purchase_info"`
	Valuation    RealEstateValuationInfo `json:"valuation_info"`
	RentalData   *RealEstateRentalData   `json:"rental_data,omitempty"`
	Flows        []RealEstateFlow        `json:"flows,omitempty"`
	Currency     string                  `json:"currency"`
	CreatedAt    dates.Date              `json:"created_at"`
}

// TotalCost is price plus purchase expenses and taxes.
func (r RealEstate) TotalCost() decimal.Decimal {
	return r.PurchaseInfo.Price.Add(r.PurchaseInfo.Expenses).Add(r.PurchaseInfo.Taxes)
}

// OutstandingDebt sums the principal outstanding across LOAN flows.
func (r RealEstate) OutstandingDebt() decimal.Decimal {
	total := decimal.Zero
	for _, f := range r.Flows {
		if f.FlowSubtype != REFlowLoan {
			continue
		}
		if p, err := f.LoanPayload(); err == nil && p != nil {
			total = total.Add(p.PrincipalOutstanding)
		}
	}
	return total
}

// LoanPayload decodes the payload of a LOAN flow, nil for other subtypes.
func (f RealEstateFlow) LoanPayload() (*RealEstateLoanPayload, error) {
	if f.FlowSubtype != REFlowLoan || f.Payload == nil {
		return nil, nil
	}
	p := &RealEstateLoanPayload{}
	if v, ok := f.Payload["type"].(string); ok {
		p.Type = LoanType(v)
	}
	if v, ok := f.Payload["interest_type"].(string); ok {
		p.InterestType = InterestType(v)
	}
	var err error
	if p.InterestRate, err = payloadDecimal(f.Payload, "interest_rate"); err != nil {
		return nil, err
	}
	if p.PrincipalOutstanding, err = payloadDecimal(f.Payload, "principal_outstanding"); err != nil {
		return nil, err
	}
	if d, ok, err := payloadOptDecimal(f.Payload, "loan_amount"); err != nil {
		return nil, err
	} else if ok {
		p.LoanAmount = &d
	}
	if d, ok, err := payloadOptDecimal(f.Payload, "euribor_rate"); err != nil {
		return nil, err
	} else if ok {
		p.EuriborRate = &d
	}
	if d, ok, err := payloadOptDecimal(f.Payload, "monthly_interests"); err != nil {
		return nil, err
	} else if ok {
		p.MonthlyInterests = &d
	}
	if v, ok := f.Payload["fixed_years"]; ok {
		switch n := v.(type) {
		case float64:
			y := int(n)
			p.FixedYears = &y
		case int:
			y := n
			p.FixedYears = &y
		}
	}
	return p, nil
}

func payloadDecimal(m map[string]any, key string) (decimal.Decimal, error) {
	d, ok, err := payloadOptDecimal(m, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, NewMissingFields(key)
	}
	return d, nil
}

func payloadOptDecimal(m map[string]any, key string) (decimal.Decimal, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false, &InvalidFieldError{Field: key, Reason: "not a number"}
		}
		return d, true, nil
	case float64:
		return decimal.NewFromFloat(n), true, nil
	case int:
		return decimal.NewFromInt(int64(n)), true, nil
	case decimal.Decimal:
		return n, true, nil
	default:
		return decimal.Zero, false, &InvalidFieldError{Field: key, Reason: "not a number"}
	}
}
