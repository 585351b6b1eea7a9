package historic

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/moneta/internal/domain"
	"github.com/aristath/moneta/pkg/dates"
)

// Service reduces an entity's investment history. Each lifecycle investment
// reported by the fetcher is matched against the stored transactions and
// collapsed into one entry with its capital flows summed up.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new historic service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "historic").Logger(),
	}
}

// Get returns stored entries matching the query
func (s *Service) Get(q domain.HistoricQuery) ([]domain.HistoricEntry, error) {
	return s.repo.GetByQuery(q)
}

// Reduce rebuilds the entity's ledger from the fetched historical position
// and the entity's stored transactions, then persists it.
func (s *Service) Reduce(entityID uuid.UUID, historical domain.HistoricalPosition, txs domain.Transactions) ([]domain.HistoricEntry, error) {
	entries := s.reduce(entityID, historical, txs)
	if err := s.repo.ReplaceForEntity(entityID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReduceTx is Reduce on an open database transaction, so the rebuilt ledger
// commits or rolls back with the rest of a fetch run.
func (s *Service) ReduceTx(tx *sql.Tx, entityID uuid.UUID, historical domain.HistoricalPosition, txs domain.Transactions) ([]domain.HistoricEntry, error) {
	entries := s.reduce(entityID, historical, txs)
	if err := s.repo.ReplaceForEntityTx(tx, entityID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// investment is one name-grouped position across product buckets. Platforms
// report multi-tranche projects as one row per tranche; the ledger carries
// them as one investment.
type investment struct {
	name           string
	amount         decimal.Decimal
	currency       string
	state          string
	lastInvestDate time.Time
	factoring      *domain.FactoringDetail
	realEstateCF   *domain.RealEstateCFDetail
	pending        *decimal.Decimal
}

func (s *Service) reduce(entityID uuid.UUID, historical domain.HistoricalPosition, txs domain.Transactions) []domain.HistoricEntry {
	investments := groupByName(historical)

	txsByName := map[string][]domain.InvestmentTx{}
	for _, tx := range txs.Investment {
		key := normalizeName(tx.Name)
		txsByName[key] = append(txsByName[key], tx)
	}

	var entries []domain.HistoricEntry
	for _, inv := range investments {
		related, ok := txsByName[normalizeName(inv.name)]
		if !ok {
			s.log.Warn().Str("investment", inv.name).Msg("No transactions for investment")
			continue
		}
		entry, ok := reduceEntry(entityID, inv, related)
		if !ok {
			s.log.Warn().Str("investment", inv.name).Msg("Skipping investment with unsupported product type")
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// groupByName merges tranches of the same investment across product buckets,
// summing the amounts and keeping the newest invest date.
func groupByName(historical domain.HistoricalPosition) []*investment {
	byName := map[string]*investment{}
	var ordered []*investment

	add := func(name string, amount decimal.Decimal, currency, state string, last time.Time) *investment {
		key := normalizeName(name)
		if inv, ok := byName[key]; ok {
			inv.amount = inv.amount.Add(amount)
			if last.After(inv.lastInvestDate) {
				inv.lastInvestDate = last
			}
			return inv
		}
		inv := &investment{
			name:           name,
			amount:         amount,
			currency:       currency,
			state:          state,
			lastInvestDate: last,
		}
		byName[key] = inv
		ordered = append(ordered, inv)
		return inv
	}

	if factoring := historical.Products.Factoring(); factoring != nil {
		for i := range factoring.Entries {
			f := &factoring.Entries[i]
			inv := add(f.Name, f.Amount, f.Currency, f.State, f.LastInvestDate)
			if inv.factoring == nil {
				inv.factoring = f
			}
		}
	}
	if recf := historical.Products.RealEstateCF(); recf != nil {
		for i := range recf.Entries {
			p := &recf.Entries[i]
			inv := add(p.Name, p.Amount, p.Currency, p.State, p.LastInvestDate)
			if inv.realEstateCF == nil {
				inv.realEstateCF = p
			}
			if inv.pending == nil {
				pending := p.PendingAmount
				inv.pending = &pending
			} else {
				pending := inv.pending.Add(p.PendingAmount)
				inv.pending = &pending
			}
		}
	}
	return ordered
}

// reduceEntry folds the investment's transactions into one ledger entry.
// The product type comes from the first investment transaction; names whose
// transactions carry an unsupported type are reported as skipped.
func reduceEntry(entityID uuid.UUID, inv *investment, related []domain.InvestmentTx) (domain.HistoricEntry, bool) {
	var productType domain.ProductType
	for _, tx := range related {
		if tx.Type == domain.TxInvestment {
			productType = tx.ProductType
			break
		}
	}

	entry := domain.HistoricEntry{
		ID:             uuid.New(),
		Name:           inv.name,
		Invested:       inv.amount,
		Currency:       inv.currency,
		ProductType:    productType,
		EntityID:       entityID,
		LastInvestDate: inv.lastInvestDate,
		State:          inv.state,
	}

	switch productType {
	case domain.ProductFactoring:
		if inv.factoring == nil {
			return domain.HistoricEntry{}, false
		}
		f := inv.factoring
		entry.Factoring = &domain.HistoricFactoring{
			InterestRate:      f.InterestRate,
			GrossInterestRate: f.GrossInterestRate,
			Maturity:          f.Maturity,
			Type:              f.Type,
		}
	case domain.ProductRealEstateCF:
		if inv.realEstateCF == nil {
			return domain.HistoricEntry{}, false
		}
		p := inv.realEstateCF
		entry.RealEstateCF = &domain.HistoricRealEstateCF{
			InterestRate:     p.InterestRate,
			Maturity:         p.Maturity,
			ExtendedMaturity: p.ExtendedMaturity,
			Type:             p.Type,
			BusinessType:     p.BusinessType,
		}
	default:
		return domain.HistoricEntry{}, false
	}

	// interest and dividend inflows net of their charges
	netFlows := decimal.Zero
	for _, tx := range related {
		entry.RelatedTxs = append(entry.RelatedTxs, tx.ID)
		if tx.Date.After(entry.LastTxDate) {
			entry.LastTxDate = tx.Date
		}

		switch tx.Type {
		case domain.TxRepayment, domain.TxInterest, domain.TxDividend:
		default:
			continue
		}

		fees := decimal.Zero
		if tx.Fees != nil {
			fees = *tx.Fees
		}
		retentions := decimal.Zero
		if tx.Retentions != nil {
			retentions = *tx.Retentions
		}
		entry.Fees = entry.Fees.Add(fees)
		entry.Retentions = entry.Retentions.Add(retentions)

		switch tx.Type {
		case domain.TxRepayment:
			entry.Repaid = entry.Repaid.Add(tx.Amount)
			if entry.LastReturnTx == nil || tx.Date.After(*entry.LastReturnTx) {
				d := tx.Date
				entry.LastReturnTx = &d
			}
		case domain.TxInterest, domain.TxDividend:
			entry.Interests = entry.Interests.Add(tx.Amount)
			netFlows = netFlows.Add(tx.Amount.Sub(fees).Sub(retentions))
		}
	}

	returned := entry.Repaid.Add(entry.Interests)
	entry.Returned = &returned
	net := entry.Repaid.Add(netFlows)
	entry.NetReturn = &net

	// A project with no principal left matured on its last repayment. Only
	// real-estate CF reports pending principal; factoring never matures here.
	if entry.RealEstateCF != nil && entry.LastReturnTx != nil &&
		inv.pending != nil && inv.pending.IsZero() {
		d := dates.FromTime(*entry.LastReturnTx)
		entry.EffectiveMaturity = &d
	}
	return entry, true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Summary aggregates net returns across entries.
type Summary struct {
	Count         int             `json:"count"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalReturned decimal.Decimal `json:"total_returned"`
	TotalNet      decimal.Decimal `json:"total_net_return"`
	MeanReturnPct *float64        `json:"mean_return_pct,omitempty"`
	StdReturnPct  *float64        `json:"std_return_pct,omitempty"`
	WeightedPct   *float64        `json:"weighted_return_pct,omitempty"`
}

// Summarize computes distribution statistics over the closed entries'
// percentage returns.
func (s *Service) Summarize(entries []domain.HistoricEntry) Summary {
	summary := Summary{Count: len(entries)}

	var returns, weights []float64
	for _, e := range entries {
		summary.TotalInvested = summary.TotalInvested.Add(e.Invested)
		if e.Returned != nil {
			summary.TotalReturned = summary.TotalReturned.Add(*e.Returned)
		}
		if e.NetReturn == nil || e.Invested.IsZero() {
			continue
		}
		summary.TotalNet = summary.TotalNet.Add(*e.NetReturn)
		pct, _ := e.NetReturn.Div(e.Invested).Float64()
		invested, _ := e.Invested.Float64()
		returns = append(returns, pct)
		weights = append(weights, invested)
	}

	if len(returns) > 0 {
		mean, std := stat.MeanStdDev(returns, nil)
		weighted := stat.Mean(returns, weights)
		summary.MeanReturnPct = &mean
		summary.WeightedPct = &weighted
		if len(returns) > 1 {
			summary.StdReturnPct = &std
		}
	}
	return summary
}
