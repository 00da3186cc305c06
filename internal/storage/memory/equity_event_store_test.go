package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

func testEvent(id, companyID string) *domain.EquityEvent {
	date := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	sh := &domain.Stakeholder{ID: "sh-1", CompanyID: companyID, Name: "Alice"}
	return &domain.EquityEvent{
		ID:        id,
		CompanyID: companyID,
		Name:      "Seed",
		Type:      domain.EventFundingRound,
		Date:      &date,
		Allocations: []domain.Allocation{
			{ID: id + "-a1", StakeholderID: "sh-1", ShareClassID: "cls-1", Stakeholder: sh, Shares: 1000},
			{ID: id + "-a2", StakeholderID: "sh-2", ShareClassID: "cls-1", Shares: 500},
		},
	}
}

func TestEquityEventStore_InsertAndGet(t *testing.T) {
	versions := NewVersions()
	store := NewEquityEventStore(versions)
	ctx := context.Background()

	e := testEvent("evt-1", "acme")
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if e.Seq != 1 {
		t.Errorf("Seq mismatch: got %d, want 1", e.Seq)
	}

	got, err := store.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Allocations) != 2 {
		t.Fatalf("Allocations mismatch: got %d, want 2", len(got.Allocations))
	}
	if got.Allocations[0].EventID != "evt-1" {
		t.Errorf("EventID not set on allocation: got %q", got.Allocations[0].EventID)
	}
	if got.Allocations[0].Stakeholder != nil {
		t.Error("resolved stakeholder should not be stored")
	}
	if got.TotalAllocated() != 1500 {
		t.Errorf("TotalAllocated mismatch: got %d, want 1500", got.TotalAllocated())
	}

	v, _ := versions.Version(ctx, "acme")
	if v != 1 {
		t.Errorf("Version mismatch: got %d, want 1", v)
	}
}

func TestEquityEventStore_DuplicateKey(t *testing.T) {
	store := NewEquityEventStore(NewVersions())
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("evt-1", "acme")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, testEvent("evt-1", "acme"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEquityEventStore_SeqPerCompany(t *testing.T) {
	store := NewEquityEventStore(NewVersions())
	ctx := context.Background()

	for _, e := range []*domain.EquityEvent{
		testEvent("a-1", "acme"),
		testEvent("b-1", "globex"),
		testEvent("a-2", "acme"),
	} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := store.ListByCompany(ctx, "acme")
	if err != nil {
		t.Fatalf("ListByCompany failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].ID != "a-1" || events[0].Seq != 1 || events[1].ID != "a-2" || events[1].Seq != 2 {
		t.Errorf("Unexpected order: %s(%d), %s(%d)", events[0].ID, events[0].Seq, events[1].ID, events[1].Seq)
	}

	other, _ := store.ListByCompany(ctx, "globex")
	if len(other) != 1 || other[0].Seq != 1 {
		t.Errorf("Expected independent sequence for globex, got %+v", other)
	}
}

func TestEquityEventStore_DeleteCascadesAllocations(t *testing.T) {
	versions := NewVersions()
	store := NewEquityEventStore(versions)
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("evt-1", "acme")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Delete(ctx, "evt-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.GetByID(ctx, "evt-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "evt-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	v, _ := versions.Version(ctx, "acme")
	if v != 2 {
		t.Errorf("Version mismatch: got %d, want 2", v)
	}
}

func TestEquityEventStore_ReturnsCopies(t *testing.T) {
	store := NewEquityEventStore(NewVersions())
	ctx := context.Background()

	e := testEvent("evt-1", "acme")
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	e.Allocations[0].Shares = 1

	got, _ := store.GetByID(ctx, "evt-1")
	got.Allocations[1].Shares = 2

	again, _ := store.GetByID(ctx, "evt-1")
	if again.Allocations[0].Shares != 1000 || again.Allocations[1].Shares != 500 {
		t.Errorf("Stored allocations were mutated: %+v", again.Allocations)
	}
}

func TestEquityEventStore_InvalidInput(t *testing.T) {
	store := NewEquityEventStore(NewVersions())

	err := store.Insert(context.Background(), &domain.EquityEvent{ID: "evt-1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
