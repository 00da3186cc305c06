package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// VsopStore implements storage.VsopStore using PostgreSQL.
type VsopStore struct {
	pool *Pool
}

// NewVsopStore creates a new VsopStore.
func NewVsopStore(pool *Pool) *VsopStore {
	return &VsopStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VsopStore = (*VsopStore)(nil)

const poolColumns = `id, company_id, name, total_shares, share_class_id, notes, created_at, updated_at`

const grantColumns = `id, pool_id, stakeholder_id, shares_granted, strike_price::text, grant_date,
	cliff_months, vesting_months, status, notes, created_at`

// UpsertPool creates the company pool or updates it in place.
func (s *VsopStore) UpsertPool(ctx context.Context, p *domain.VsopPool) error {
	query := `
		INSERT INTO vsop_pools (
			id, company_id, name, total_shares, share_class_id, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
		ON CONFLICT (company_id) DO UPDATE
		SET name = EXCLUDED.name,
		    total_shares = EXCLUDED.total_shares,
		    share_class_id = EXCLUDED.share_class_id,
		    notes = EXCLUDED.notes,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + poolColumns

	stored, err := scanPool(s.pool.QueryRow(ctx, query,
		p.ID,
		p.CompanyID,
		p.Name,
		p.TotalShares,
		p.ShareClassID,
		p.Notes,
		createdAtArg(p.CreatedAt),
		createdAtArg(p.UpdatedAt),
	))
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return fmt.Errorf("pool share class: %w", storage.ErrInvalidInput)
		}
		return fmt.Errorf("upsert pool: %w", err)
	}

	*p = *stored
	return nil
}

// GetPool retrieves the company pool. Returns ErrNotFound if the company has none.
func (s *VsopStore) GetPool(ctx context.Context, companyID string) (*domain.VsopPool, error) {
	query := `SELECT ` + poolColumns + ` FROM vsop_pools WHERE company_id = $1`

	p, err := scanPool(s.pool.QueryRow(ctx, query, companyID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return p, nil
}

// DeletePool removes the company pool; grants cascade.
func (s *VsopStore) DeletePool(ctx context.Context, companyID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vsop_pools WHERE company_id = $1`, companyID)
	if err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertGrant adds a grant. Returns ErrNotFound if the pool does not exist.
func (s *VsopStore) InsertGrant(ctx context.Context, g *domain.VsopGrant) error {
	query := `
		INSERT INTO vsop_grants (
			id, pool_id, stakeholder_id, shares_granted, strike_price, grant_date,
			cliff_months, vesting_months, status, notes, created_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, COALESCE($11, now()))
	`

	_, err := s.pool.Exec(ctx, query,
		g.ID,
		g.PoolID,
		g.StakeholderID,
		g.SharesGranted,
		decimalArg(g.StrikePrice),
		g.GrantDate,
		g.CliffMonths,
		g.VestingMonths,
		string(g.Status),
		g.Notes,
		createdAtArg(g.CreatedAt),
	)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// GetGrant retrieves a grant by its ID. Returns ErrNotFound if not exists.
func (s *VsopStore) GetGrant(ctx context.Context, id string) (*domain.VsopGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM vsop_grants WHERE id = $1`

	g, err := scanGrant(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get grant by id: %w", err)
	}
	return g, nil
}

// ListGrants retrieves the grants of a pool, ordered by grant_date ASC (undated last), then created_at.
func (s *VsopStore) ListGrants(ctx context.Context, poolID string) ([]*domain.VsopGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM vsop_grants
		WHERE pool_id = $1
		ORDER BY grant_date ASC NULLS LAST, created_at ASC, id ASC
	`
	return s.queryGrants(ctx, query, poolID)
}

// ListGrantsByStakeholder retrieves every grant held by a stakeholder.
func (s *VsopStore) ListGrantsByStakeholder(ctx context.Context, stakeholderID string) ([]*domain.VsopGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM vsop_grants
		WHERE stakeholder_id = $1
		ORDER BY id ASC
	`
	return s.queryGrants(ctx, query, stakeholderID)
}

// UpdateGrant replaces a grant. Returns ErrNotFound if not exists.
func (s *VsopStore) UpdateGrant(ctx context.Context, g *domain.VsopGrant) error {
	query := `
		UPDATE vsop_grants
		SET stakeholder_id = $2, shares_granted = $3, strike_price = $4::numeric, grant_date = $5,
		    cliff_months = $6, vesting_months = $7, status = $8, notes = $9
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		g.ID,
		g.StakeholderID,
		g.SharesGranted,
		decimalArg(g.StrikePrice),
		g.GrantDate,
		g.CliffMonths,
		g.VestingMonths,
		string(g.Status),
		g.Notes,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("grant stakeholder: %w", storage.ErrInvalidInput)
		}
		return fmt.Errorf("update grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteGrant removes a grant. Returns ErrNotFound if not exists.
func (s *VsopStore) DeleteGrant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vsop_grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *VsopStore) queryGrants(ctx context.Context, query string, arg string) ([]*domain.VsopGrant, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*domain.VsopGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant row: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant rows: %w", err)
	}
	return grants, nil
}

// scanPool scans a single row into a VsopPool.
func scanPool(row pgx.Row) (*domain.VsopPool, error) {
	var p domain.VsopPool
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.TotalShares,
		&p.ShareClassID,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// scanGrant scans a single row into a VsopGrant.
func scanGrant(row pgx.Row) (*domain.VsopGrant, error) {
	var (
		g      domain.VsopGrant
		strike *string
		status string
	)
	err := row.Scan(
		&g.ID,
		&g.PoolID,
		&g.StakeholderID,
		&g.SharesGranted,
		&strike,
		&g.GrantDate,
		&g.CliffMonths,
		&g.VestingMonths,
		&status,
		&g.Notes,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Status = domain.GrantStatus(status)
	g.GrantDate = utcPtr(g.GrantDate)
	g.CreatedAt = g.CreatedAt.UTC()
	if g.StrikePrice, err = parseDecimal(strike); err != nil {
		return nil, err
	}
	return &g, nil
}
