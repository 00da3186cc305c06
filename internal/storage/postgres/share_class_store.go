package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// ShareClassStore implements storage.ShareClassStore using PostgreSQL.
type ShareClassStore struct {
	pool *Pool
}

// NewShareClassStore creates a new ShareClassStore.
func NewShareClassStore(pool *Pool) *ShareClassStore {
	return &ShareClassStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ShareClassStore = (*ShareClassStore)(nil)

const shareClassColumns = `id, company_id, name, votes_per_share, liquidation_preference, seniority, created_at`

// Insert adds a new share class. Returns ErrDuplicateKey if id exists.
func (s *ShareClassStore) Insert(ctx context.Context, c *domain.ShareClass) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO share_classes (
			id, company_id, name, votes_per_share, liquidation_preference, seniority, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`

	_, err = tx.Exec(ctx, query,
		c.ID,
		c.CompanyID,
		c.Name,
		c.VotesPerShare,
		c.LiquidationPreference,
		c.Seniority,
		createdAtArg(c.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert share class: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, c.CompanyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a share class by its ID. Returns ErrNotFound if not exists.
func (s *ShareClassStore) GetByID(ctx context.Context, id string) (*domain.ShareClass, error) {
	query := `SELECT ` + shareClassColumns + ` FROM share_classes WHERE id = $1`

	c, err := scanShareClass(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get share class by id: %w", err)
	}
	return c, nil
}

// ListByCompany retrieves all share classes of a company, ordered by seniority ASC, name ASC.
func (s *ShareClassStore) ListByCompany(ctx context.Context, companyID string) ([]*domain.ShareClass, error) {
	query := `
		SELECT ` + shareClassColumns + `
		FROM share_classes
		WHERE company_id = $1
		ORDER BY seniority ASC, name ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list share classes: %w", err)
	}
	defer rows.Close()

	var classes []*domain.ShareClass
	for rows.Next() {
		c, err := scanShareClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share class row: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share class rows: %w", err)
	}
	return classes, nil
}

// Update replaces a share class. Returns ErrNotFound if not exists.
func (s *ShareClassStore) Update(ctx context.Context, c *domain.ShareClass) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE share_classes
		SET name = $2, votes_per_share = $3, liquidation_preference = $4, seniority = $5
		WHERE id = $1
		RETURNING company_id
	`

	var companyID string
	err = tx.QueryRow(ctx, query, c.ID, c.Name, c.VotesPerShare, c.LiquidationPreference, c.Seniority).Scan(&companyID)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update share class: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, companyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes a share class. Returns ErrReferenced while an allocation uses it.
func (s *ShareClassStore) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID string
	err = tx.QueryRow(ctx, `DELETE FROM share_classes WHERE id = $1 RETURNING company_id`, id).Scan(&companyID)
	if err != nil {
		switch {
		case isNotFoundError(err):
			return storage.ErrNotFound
		case isForeignKeyError(err):
			return storage.ErrReferenced
		}
		return fmt.Errorf("delete share class: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, companyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanShareClass scans a single row into a ShareClass.
func scanShareClass(row pgx.Row) (*domain.ShareClass, error) {
	var c domain.ShareClass
	err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&c.Name,
		&c.VotesPerShare,
		&c.LiquidationPreference,
		&c.Seniority,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
