package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

func testPoints(fingerprint string, exportedAt time.Time) []*domain.OwnershipPoint {
	return []*domain.OwnershipPoint{
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-2", EventIndex: 1, StakeholderID: "sh-2", Shares: 10, TotalShares: 110, OwnershipPct: 9.09, ExportedAt: exportedAt},
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-1", EventIndex: 0, StakeholderID: "sh-1", Shares: 100, TotalShares: 100, OwnershipPct: 100, ExportedAt: exportedAt},
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-2", EventIndex: 1, StakeholderID: "sh-1", Shares: 100, TotalShares: 110, OwnershipPct: 90.91, ExportedAt: exportedAt},
	}
}

func TestOwnershipHistoryStore_InsertAndGet(t *testing.T) {
	store := NewOwnershipHistoryStore()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, testPoints("fp-1", at)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByFingerprint(ctx, "acme", "fp-1")
	if err != nil {
		t.Fatalf("GetByFingerprint failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	if got[0].EventIndex != 0 || got[1].StakeholderID != "sh-1" || got[2].StakeholderID != "sh-2" {
		t.Errorf("Unexpected order: %+v, %+v, %+v", got[0], got[1], got[2])
	}
}

func TestOwnershipHistoryStore_DuplicateExport(t *testing.T) {
	store := NewOwnershipHistoryStore()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, testPoints("fp-1", at)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	err := store.InsertBulk(ctx, testPoints("fp-1", at.Add(time.Hour)))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	if err := store.InsertBulk(ctx, testPoints("fp-2", at.Add(time.Hour))); err != nil {
		t.Fatalf("InsertBulk of new fingerprint failed: %v", err)
	}

	all, _ := store.GetByCompany(ctx, "acme")
	if len(all) != 6 {
		t.Fatalf("Expected 6 points, got %d", len(all))
	}
	if all[0].Fingerprint != "fp-1" || all[5].Fingerprint != "fp-2" {
		t.Errorf("Expected exports ordered by exported_at, got %s first and %s last", all[0].Fingerprint, all[5].Fingerprint)
	}
}

func TestOwnershipHistoryStore_EmptyBatch(t *testing.T) {
	store := NewOwnershipHistoryStore()
	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("Expected nil error for empty batch, got %v", err)
	}
}
