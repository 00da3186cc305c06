package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
	chstore "equity-ledger/internal/storage/clickhouse"
)

func exportPoints(fingerprint string, exportedAt time.Time) []*domain.OwnershipPoint {
	inc := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	return []*domain.OwnershipPoint{
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-inc", EventIndex: 0, EventDate: &inc, StakeholderID: "sh-alice", StakeholderName: "Alice", Shares: 500_000, TotalShares: 1_000_000, OwnershipPct: 50, ExportedAt: exportedAt},
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-inc", EventIndex: 0, EventDate: &inc, StakeholderID: "sh-bob", StakeholderName: "Bob", Shares: 500_000, TotalShares: 1_000_000, OwnershipPct: 50, ExportedAt: exportedAt},
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-seed", EventIndex: 1, StakeholderID: "sh-fund", StakeholderName: "Fund I", Shares: 250_000, TotalShares: 1_250_000, OwnershipPct: 20, ExportedAt: exportedAt},
		{CompanyID: "acme", Fingerprint: fingerprint, EventID: "evt-seed", EventIndex: 1, StakeholderID: "sh-alice", StakeholderName: "Alice", Shares: 500_000, TotalShares: 1_250_000, OwnershipPct: 40, ExportedAt: exportedAt},
	}
}

func TestOwnershipHistoryStore_InsertBulkAndGet(t *testing.T) {
	store := chstore.NewOwnershipHistoryStore(newTestConn(t))
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertBulk(ctx, exportPoints("fp-1", at)))

	got, err := store.GetByFingerprint(ctx, "acme", "fp-1")
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "sh-alice", got[0].StakeholderID)
	assert.Equal(t, "sh-bob", got[1].StakeholderID)
	assert.Equal(t, "sh-alice", got[2].StakeholderID, "higher ownership first within an event")
	assert.Equal(t, 1, got[2].EventIndex)
	require.NotNil(t, got[0].EventDate)
	assert.True(t, got[0].EventDate.Equal(time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, got[3].EventDate)
	assert.True(t, got[0].ExportedAt.Equal(at))
}

func TestOwnershipHistoryStore_DuplicateExport(t *testing.T) {
	store := chstore.NewOwnershipHistoryStore(newTestConn(t))
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertBulk(ctx, exportPoints("fp-1", at)))

	err := store.InsertBulk(ctx, exportPoints("fp-1", at.Add(time.Hour)))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	require.NoError(t, store.InsertBulk(ctx, exportPoints("fp-2", at.Add(time.Hour))))

	all, err := store.GetByCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, "fp-1", all[0].Fingerprint)
	assert.Equal(t, "fp-2", all[7].Fingerprint)

	none, err := store.GetByCompany(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOwnershipHistoryStore_InvalidInput(t *testing.T) {
	store := chstore.NewOwnershipHistoryStore(newTestConn(t))
	err := store.InsertBulk(context.Background(), []*domain.OwnershipPoint{{CompanyID: "acme"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
