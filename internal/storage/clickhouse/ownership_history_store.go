package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// OwnershipHistoryStore implements storage.OwnershipHistoryStore using ClickHouse.
// MergeTree does not enforce uniqueness, so exports are checked for an
// existing (company_id, fingerprint) before insert.
type OwnershipHistoryStore struct {
	conn *Conn
}

// NewOwnershipHistoryStore creates a new OwnershipHistoryStore.
func NewOwnershipHistoryStore(conn *Conn) *OwnershipHistoryStore {
	return &OwnershipHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OwnershipHistoryStore = (*OwnershipHistoryStore)(nil)

const ownershipColumns = `company_id, fingerprint, event_id, event_index, event_date,
	stakeholder_id, stakeholder_name, shares, total_shares, ownership_pct, exported_at`

// InsertBulk adds the points of one or more exports in a single batch.
// Fails the entire batch if any (company_id, fingerprint) was already exported.
func (s *OwnershipHistoryStore) InsertBulk(ctx context.Context, points []*domain.OwnershipPoint) error {
	if len(points) == 0 {
		return nil
	}

	type exportKey struct{ company, fingerprint string }
	exports := make(map[exportKey]struct{})
	for _, p := range points {
		if p == nil || p.CompanyID == "" || p.Fingerprint == "" {
			return storage.ErrInvalidInput
		}
		exports[exportKey{p.CompanyID, p.Fingerprint}] = struct{}{}
	}

	for k := range exports {
		exists, err := s.exists(ctx, k.company, k.fingerprint)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ownership_history (`+ownershipColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.CompanyID, p.Fingerprint, p.EventID, uint32(p.EventIndex), p.EventDate,
			p.StakeholderID, p.StakeholderName, p.Shares, p.TotalShares, p.OwnershipPct, p.ExportedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByCompany retrieves all points of a company, ordered by exported_at, event_index, ownership_pct DESC.
func (s *OwnershipHistoryStore) GetByCompany(ctx context.Context, companyID string) ([]*domain.OwnershipPoint, error) {
	query := `
		SELECT ` + ownershipColumns + `
		FROM ownership_history
		WHERE company_id = ?
		ORDER BY exported_at ASC, fingerprint ASC, event_index ASC, ownership_pct DESC, stakeholder_id ASC
	`

	rows, err := s.conn.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("query by company: %w", err)
	}
	defer rows.Close()

	return scanOwnershipPoints(rows)
}

// GetByFingerprint retrieves the points of a single export.
func (s *OwnershipHistoryStore) GetByFingerprint(ctx context.Context, companyID, fingerprint string) ([]*domain.OwnershipPoint, error) {
	query := `
		SELECT ` + ownershipColumns + `
		FROM ownership_history
		WHERE company_id = ? AND fingerprint = ?
		ORDER BY event_index ASC, ownership_pct DESC, stakeholder_id ASC
	`

	rows, err := s.conn.Query(ctx, query, companyID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query by fingerprint: %w", err)
	}
	defer rows.Close()

	return scanOwnershipPoints(rows)
}

// exists checks if an export with the given fingerprint exists.
func (s *OwnershipHistoryStore) exists(ctx context.Context, companyID, fingerprint string) (bool, error) {
	query := `
		SELECT count(*) FROM ownership_history
		WHERE company_id = ? AND fingerprint = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, companyID, fingerprint).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanOwnershipPoints scans multiple rows into a slice.
func scanOwnershipPoints(rows chRows) ([]*domain.OwnershipPoint, error) {
	var points []*domain.OwnershipPoint

	for rows.Next() {
		var p domain.OwnershipPoint
		var eventIndex uint32
		var eventDate *time.Time

		err := rows.Scan(
			&p.CompanyID, &p.Fingerprint, &p.EventID, &eventIndex, &eventDate,
			&p.StakeholderID, &p.StakeholderName, &p.Shares, &p.TotalShares, &p.OwnershipPct, &p.ExportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ownership row: %w", err)
		}

		p.EventIndex = int(eventIndex)
		if eventDate != nil {
			d := eventDate.UTC()
			p.EventDate = &d
		}
		p.ExportedAt = p.ExportedAt.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ownership rows: %w", err)
	}

	return points, nil
}
