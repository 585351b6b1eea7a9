package transactions

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/moneta/internal/domain"
)

const (
	kindInvestment = "INVESTMENT"
	kindAccount    = "ACCOUNT"
)

// Repository handles transaction database operations. Rows are deduplicated
// on (entity_id, ref) so re-fetching an overlapping window is harmless.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transactions repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

// GetRefs returns the refs already stored for an entity
func (r *Repository) GetRefs(entityID uuid.UUID) (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT ref FROM transactions WHERE entity_id = ?`, entityID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query refs: %w", err)
	}
	defer rows.Close()

	refs := map[string]bool{}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan ref: %w", err)
		}
		refs[ref] = true
	}
	return refs, rows.Err()
}

// Save stores the given transactions, skipping refs already present.
// Returns the number of newly inserted rows.
func (r *Repository) Save(txs domain.Transactions) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := r.SaveTx(tx, txs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// SaveTx stores the given transactions on an open database transaction.
func (r *Repository) SaveTx(tx *sql.Tx, txs domain.Transactions) (int, error) {
	inserted := 0
	for _, t := range txs.Investment {
		n, err := insertInvestmentTx(tx, t)
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	for _, t := range txs.Account {
		n, err := insertAccountTx(tx, t)
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	return inserted, nil
}

// DeleteRealForEntityTx drops the fetched rows of an entity ahead of a deep
// refetch. Imported and manual rows stay.
func (r *Repository) DeleteRealForEntityTx(tx *sql.Tx, entityID uuid.UUID) error {
	_, err := tx.Exec(`
		DELETE FROM transactions WHERE entity_id = ? AND source = ?
	`, entityID.String(), string(domain.SourceReal))
	if err != nil {
		return fmt.Errorf("failed to delete fetched transactions: %w", err)
	}
	return nil
}

func insertInvestmentTx(tx *sql.Tx, t domain.InvestmentTx) (int, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO transactions (
			id, ref, kind, name, amount, currency, type, date, entity_id,
			is_real, product_type, source, net_amount, isin, ticker, market,
			shares, price, fees, retentions, interest_rate, interests,
			order_date, linked_tx
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID.String(), t.Ref, kindInvestment, t.Name, t.Amount.String(), t.Currency,
		string(t.Type), t.Date, t.EntityID.String(), t.IsRealEnt, string(t.ProductType),
		string(t.Source), t.NetAmount.String(), nullStr(t.ISIN), nullStr(t.Ticker),
		nullStr(t.Market), decStr(t.Shares), decStr(t.Price), decStr(t.Fees),
		decStr(t.Retentions), decStr(t.InterestRate), decStr(t.Interests),
		t.OrderDate, uuidStr(t.LinkedTx),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert investment tx %s: %w", t.Ref, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func insertAccountTx(tx *sql.Tx, t domain.AccountTx) (int, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO transactions (
			id, ref, kind, name, amount, currency, type, date, entity_id,
			is_real, product_type, source, fees, retentions, interest_rate, avg_balance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID.String(), t.Ref, kindAccount, t.Name, t.Amount.String(), t.Currency,
		string(t.Type), t.Date, t.EntityID.String(), t.IsRealEnt, string(t.ProductType),
		string(t.Source), t.Fees.String(), t.Retentions.String(), decStr(t.Interest),
		decStr(t.AvgBalance),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account tx %s: %w", t.Ref, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetByQuery returns stored transactions matching the filters, newest first.
func (r *Repository) GetByQuery(q domain.TransactionQuery) (domain.Transactions, error) {
	query := `
		SELECT id, ref, kind, name, amount, currency, type, date, entity_id,
			is_real, product_type, source, net_amount, isin, ticker, market,
			shares, price, fees, retentions, interest_rate, interests,
			order_date, linked_tx, avg_balance
		FROM transactions
	`
	var (
		conds []string
		args  []any
	)
	if len(q.Entities) > 0 {
		conds = append(conds, "entity_id IN ("+placeholders(len(q.Entities))+")")
		for _, id := range q.Entities {
			args = append(args, id.String())
		}
	}
	if len(q.ExcludedEntities) > 0 {
		conds = append(conds, "entity_id NOT IN ("+placeholders(len(q.ExcludedEntities))+")")
		for _, id := range q.ExcludedEntities {
			args = append(args, id.String())
		}
	}
	if len(q.ProductTypes) > 0 {
		conds = append(conds, "product_type IN ("+placeholders(len(q.ProductTypes))+")")
		for _, pt := range q.ProductTypes {
			args = append(args, string(pt))
		}
	}
	if len(q.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(q.Types))+")")
		for _, tt := range q.Types {
			args = append(args, string(tt))
		}
	}
	if q.FromDate != nil {
		conds = append(conds, "date >= ?")
		args = append(args, *q.FromDate)
	}
	if q.ToDate != nil {
		conds = append(conds, "date <= ?")
		args = append(args, *q.ToDate)
	}
	if q.Real != nil {
		conds = append(conds, "is_real = ?")
		args = append(args, *q.Real)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return domain.Transactions{}, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out domain.Transactions
	for rows.Next() {
		if err := scanTx(rows, &out); err != nil {
			return domain.Transactions{}, err
		}
	}
	return out, rows.Err()
}

// GetForEntityTx returns every stored transaction of an entity on an open
// database transaction, newest first.
func (r *Repository) GetForEntityTx(tx *sql.Tx, entityID uuid.UUID) (domain.Transactions, error) {
	rows, err := tx.Query(`
		SELECT id, ref, kind, name, amount, currency, type, date, entity_id,
			is_real, product_type, source, net_amount, isin, ticker, market,
			shares, price, fees, retentions, interest_rate, interests,
			order_date, linked_tx, avg_balance
		FROM transactions WHERE entity_id = ?
		ORDER BY date DESC
	`, entityID.String())
	if err != nil {
		return domain.Transactions{}, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out domain.Transactions
	for rows.Next() {
		if err := scanTx(rows, &out); err != nil {
			return domain.Transactions{}, err
		}
	}
	return out, rows.Err()
}

// DeleteForEntity removes all transactions for an entity, used on disconnect
func (r *Repository) DeleteForEntity(entityID uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM transactions WHERE entity_id = ?`, entityID.String())
	if err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

func scanTx(rows *sql.Rows, out *domain.Transactions) error {
	var (
		base       domain.BaseTx
		id         string
		kind       string
		amount     string
		entityID   string
		netAmount  sql.NullString
		isin       sql.NullString
		ticker     sql.NullString
		market     sql.NullString
		shares     sql.NullString
		price      sql.NullString
		fees       sql.NullString
		retentions sql.NullString
		rate       sql.NullString
		interests  sql.NullString
		orderDate  sql.NullTime
		linkedTx   sql.NullString
		avgBalance sql.NullString
	)
	if err := rows.Scan(
		&id, &base.Ref, &kind, &base.Name, &amount, &base.Currency, &base.Type,
		&base.Date, &entityID, &base.IsRealEnt, &base.ProductType, &base.Source,
		&netAmount, &isin, &ticker, &market, &shares, &price, &fees, &retentions,
		&rate, &interests, &orderDate, &linkedTx, &avgBalance,
	); err != nil {
		return fmt.Errorf("failed to scan transaction: %w", err)
	}
	var err error
	if base.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("bad transaction id %q: %w", id, err)
	}
	if base.EntityID, err = uuid.Parse(entityID); err != nil {
		return fmt.Errorf("bad entity id %q: %w", entityID, err)
	}
	if base.Amount, err = decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("bad amount %q: %w", amount, err)
	}

	if kind == kindAccount {
		t := domain.AccountTx{BaseTx: base}
		if fees.Valid {
			if t.Fees, err = decimal.NewFromString(fees.String); err != nil {
				return fmt.Errorf("bad fees %q: %w", fees.String, err)
			}
		}
		if retentions.Valid {
			if t.Retentions, err = decimal.NewFromString(retentions.String); err != nil {
				return fmt.Errorf("bad retentions %q: %w", retentions.String, err)
			}
		}
		if t.Interest, err = parseDec(rate); err != nil {
			return err
		}
		if t.AvgBalance, err = parseDec(avgBalance); err != nil {
			return err
		}
		out.Account = append(out.Account, t)
		return nil
	}

	t := domain.InvestmentTx{BaseTx: base}
	if netAmount.Valid {
		if t.NetAmount, err = decimal.NewFromString(netAmount.String); err != nil {
			return fmt.Errorf("bad net amount %q: %w", netAmount.String, err)
		}
	}
	t.ISIN, t.Ticker, t.Market = isin.String, ticker.String, market.String
	if t.Shares, err = parseDec(shares); err != nil {
		return err
	}
	if t.Price, err = parseDec(price); err != nil {
		return err
	}
	if t.Fees, err = parseDec(fees); err != nil {
		return err
	}
	if t.Retentions, err = parseDec(retentions); err != nil {
		return err
	}
	if t.InterestRate, err = parseDec(rate); err != nil {
		return err
	}
	if t.Interests, err = parseDec(interests); err != nil {
		return err
	}
	if orderDate.Valid {
		d := orderDate.Time
		t.OrderDate = &d
	}
	if linkedTx.Valid {
		parsed, err := uuid.Parse(linkedTx.String)
		if err != nil {
			return fmt.Errorf("bad linked tx id %q: %w", linkedTx.String, err)
		}
		t.LinkedTx = &parsed
	}
	out.Investment = append(out.Investment, t)
	return nil
}

func parseDec(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("bad decimal %q: %w", v.String, err)
	}
	return &d, nil
}

func decStr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uuidStr(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return u.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
