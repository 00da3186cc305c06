package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// StakeholderStore implements storage.StakeholderStore using PostgreSQL.
type StakeholderStore struct {
	pool *Pool
}

// NewStakeholderStore creates a new StakeholderStore.
func NewStakeholderStore(pool *Pool) *StakeholderStore {
	return &StakeholderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StakeholderStore = (*StakeholderStore)(nil)

const stakeholderColumns = `id, company_id, name, type, email, phone, entity_name, contact_person,
	partner_emails, linkedin_url, notes, created_at`

// Insert adds a new stakeholder. Returns ErrDuplicateKey if id exists.
func (s *StakeholderStore) Insert(ctx context.Context, sh *domain.Stakeholder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO stakeholders (
			id, company_id, name, type, email, phone, entity_name, contact_person,
			partner_emails, linkedin_url, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
	`

	_, err = tx.Exec(ctx, query,
		sh.ID,
		sh.CompanyID,
		sh.Name,
		string(sh.Type),
		sh.Email,
		sh.Phone,
		sh.EntityName,
		sh.ContactPerson,
		sh.PartnerEmails,
		sh.LinkedInURL,
		sh.Notes,
		createdAtArg(sh.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert stakeholder: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, sh.CompanyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a stakeholder by its ID. Returns ErrNotFound if not exists.
func (s *StakeholderStore) GetByID(ctx context.Context, id string) (*domain.Stakeholder, error) {
	query := `SELECT ` + stakeholderColumns + ` FROM stakeholders WHERE id = $1`

	sh, err := scanStakeholder(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get stakeholder by id: %w", err)
	}
	return sh, nil
}

// ListByCompany retrieves all stakeholders of a company, ordered by name ASC.
func (s *StakeholderStore) ListByCompany(ctx context.Context, companyID string) ([]*domain.Stakeholder, error) {
	query := `
		SELECT ` + stakeholderColumns + `
		FROM stakeholders
		WHERE company_id = $1
		ORDER BY name ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list stakeholders: %w", err)
	}
	defer rows.Close()

	var result []*domain.Stakeholder
	for rows.Next() {
		sh, err := scanStakeholder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stakeholder row: %w", err)
		}
		result = append(result, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stakeholder rows: %w", err)
	}
	return result, nil
}

// Update replaces a stakeholder. Returns ErrNotFound if not exists.
func (s *StakeholderStore) Update(ctx context.Context, sh *domain.Stakeholder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE stakeholders
		SET name = $2, type = $3, email = $4, phone = $5, entity_name = $6, contact_person = $7,
		    partner_emails = $8, linkedin_url = $9, notes = $10
		WHERE id = $1
		RETURNING company_id
	`

	var companyID string
	err = tx.QueryRow(ctx, query,
		sh.ID,
		sh.Name,
		string(sh.Type),
		sh.Email,
		sh.Phone,
		sh.EntityName,
		sh.ContactPerson,
		sh.PartnerEmails,
		sh.LinkedInURL,
		sh.Notes,
	).Scan(&companyID)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update stakeholder: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, companyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes a stakeholder. Returns ErrReferenced while an allocation or grant uses it.
func (s *StakeholderStore) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID string
	err = tx.QueryRow(ctx, `DELETE FROM stakeholders WHERE id = $1 RETURNING company_id`, id).Scan(&companyID)
	if err != nil {
		switch {
		case isNotFoundError(err):
			return storage.ErrNotFound
		case isForeignKeyError(err):
			return storage.ErrReferenced
		}
		return fmt.Errorf("delete stakeholder: %w", err)
	}

	if _, _, err := bumpLedger(ctx, tx, companyID, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanStakeholder scans a single row into a Stakeholder.
func scanStakeholder(row pgx.Row) (*domain.Stakeholder, error) {
	var sh domain.Stakeholder
	var typ string
	err := row.Scan(
		&sh.ID,
		&sh.CompanyID,
		&sh.Name,
		&typ,
		&sh.Email,
		&sh.Phone,
		&sh.EntityName,
		&sh.ContactPerson,
		&sh.PartnerEmails,
		&sh.LinkedInURL,
		&sh.Notes,
		&sh.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sh.Type = domain.StakeholderType(typ)
	sh.CreatedAt = sh.CreatedAt.UTC()
	return &sh, nil
}
