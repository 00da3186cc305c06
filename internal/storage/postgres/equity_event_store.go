package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// EquityEventStore implements storage.EquityEventStore using PostgreSQL.
// An event row, its allocation rows and the ledger version bump share one transaction.
type EquityEventStore struct {
	pool *Pool
}

// NewEquityEventStore creates a new EquityEventStore.
func NewEquityEventStore(pool *Pool) *EquityEventStore {
	return &EquityEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EquityEventStore = (*EquityEventStore)(nil)

const eventColumns = `id, company_id, seq, name, event_type, date, pre_money_valuation::text,
	amount_raised::text, price_per_share::text, total_shares_after, notes, created_at`

const allocationColumns = `a.id, a.equity_event_id, a.stakeholder_id, a.share_class_id, a.shares,
	a.amount_invested::text, a.ownership_pct, a.notes`

// Insert adds an event with its allocations atomically and assigns e.Seq.
// Returns ErrDuplicateKey if id exists, ErrInvalidInput if an allocation
// references a missing stakeholder or share class.
func (s *EquityEventStore) Insert(ctx context.Context, e *domain.EquityEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, seq, err := bumpLedger(ctx, tx, e.CompanyID, 1)
	if err != nil {
		return err
	}

	eventQuery := `
		INSERT INTO equity_events (
			id, company_id, seq, name, event_type, date, pre_money_valuation, amount_raised,
			price_per_share, total_shares_after, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11, COALESCE($12, now()))
	`

	_, err = tx.Exec(ctx, eventQuery,
		e.ID,
		e.CompanyID,
		int64(seq),
		e.Name,
		string(e.Type),
		e.Date,
		decimalArg(e.PreMoneyValuation),
		decimalArg(e.AmountRaised),
		decimalArg(e.PricePerShare),
		e.TotalSharesAfter,
		e.Notes,
		createdAtArg(e.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert equity event: %w", err)
	}

	allocationQuery := `
		INSERT INTO allocations (
			id, equity_event_id, position, stakeholder_id, share_class_id, shares,
			amount_invested, ownership_pct, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
	`

	for i, a := range e.Allocations {
		_, err := tx.Exec(ctx, allocationQuery,
			a.ID,
			e.ID,
			i,
			a.StakeholderID,
			a.ShareClassID,
			a.Shares,
			decimalArg(a.AmountInvested),
			a.OwnershipPct,
			a.Notes,
		)
		if err != nil {
			switch {
			case isDuplicateKeyError(err):
				return storage.ErrDuplicateKey
			case isForeignKeyError(err):
				return fmt.Errorf("allocation %d: %w", i, storage.ErrInvalidInput)
			}
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	e.Seq = seq
	for i := range e.Allocations {
		e.Allocations[i].EventID = e.ID
	}
	return nil
}

// GetByID retrieves an event with its allocations. Returns ErrNotFound if not exists.
func (s *EquityEventStore) GetByID(ctx context.Context, id string) (*domain.EquityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM equity_events WHERE id = $1`

	e, err := scanEvent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get equity event by id: %w", err)
	}

	allocQuery := `
		SELECT ` + allocationColumns + `
		FROM allocations a
		WHERE a.equity_event_id = $1
		ORDER BY a.position ASC
	`
	rows, err := s.pool.Query(ctx, allocQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	defer rows.Close()

	byEvent, err := scanAllocations(rows)
	if err != nil {
		return nil, err
	}
	e.Allocations = byEvent[id]
	return e, nil
}

// ListByCompany retrieves all events of a company with allocations, ordered by seq ASC.
func (s *EquityEventStore) ListByCompany(ctx context.Context, companyID string) ([]*domain.EquityEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM equity_events
		WHERE company_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list equity events: %w", err)
	}
	defer rows.Close()

	var events []*domain.EquityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan equity event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity event rows: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}

	allocQuery := `
		SELECT ` + allocationColumns + `
		FROM allocations a
		JOIN equity_events e ON e.id = a.equity_event_id
		WHERE e.company_id = $1
		ORDER BY e.seq ASC, a.position ASC
	`
	allocRows, err := s.pool.Query(ctx, allocQuery, companyID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer allocRows.Close()

	byEvent, err := scanAllocations(allocRows)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		e.Allocations = byEvent[e.ID]
	}
	return events, nil
}

// Delete removes an event; allocations cascade.
func (s *EquityEventStore) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID string
	err = tx.QueryRow(ctx, `DELETE FROM equity_events WHERE id = $1 RETURNING company_id`, id).Scan(&companyID)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("delete equity event: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, companyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanEvent scans a single row into an EquityEvent without allocations.
func scanEvent(row pgx.Row) (*domain.EquityEvent, error) {
	var (
		e        domain.EquityEvent
		seq      int64
		typ      string
		preMoney *string
		raised   *string
		pps      *string
	)
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&seq,
		&e.Name,
		&typ,
		&e.Date,
		&preMoney,
		&raised,
		&pps,
		&e.TotalSharesAfter,
		&e.Notes,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Seq = uint64(seq)
	e.Type = domain.EventType(typ)
	e.Date = utcPtr(e.Date)
	e.CreatedAt = e.CreatedAt.UTC()
	if e.PreMoneyValuation, err = parseDecimal(preMoney); err != nil {
		return nil, err
	}
	if e.AmountRaised, err = parseDecimal(raised); err != nil {
		return nil, err
	}
	if e.PricePerShare, err = parseDecimal(pps); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanAllocations scans allocation rows grouped by event id, keeping row order.
func scanAllocations(rows pgx.Rows) (map[string][]domain.Allocation, error) {
	byEvent := make(map[string][]domain.Allocation)

	for rows.Next() {
		var (
			a        domain.Allocation
			invested *string
		)
		err := rows.Scan(
			&a.ID,
			&a.EventID,
			&a.StakeholderID,
			&a.ShareClassID,
			&a.Shares,
			&invested,
			&a.OwnershipPct,
			&a.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan allocation row: %w", err)
		}
		if a.AmountInvested, err = parseDecimal(invested); err != nil {
			return nil, err
		}
		byEvent[a.EventID] = append(byEvent[a.EventID], a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation rows: %w", err)
	}
	return byEvent, nil
}
