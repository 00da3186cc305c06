package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage/migrations"
	"equity-ledger/internal/storage/postgres"
)

const postgresImage = "postgres:16-alpine"

// newTestPool starts a PostgreSQL container, applies the embedded ledger
// schema and returns a pool that is closed when the test ends.
func newTestPool(t *testing.T) *postgres.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "migrate postgres")
	// Migrations are idempotent.
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))

	return pool
}

// seedReferences inserts the stakeholders and share classes that allocations point at.
func seedReferences(t *testing.T, ctx context.Context, pool *postgres.Pool) {
	t.Helper()

	classes := postgres.NewShareClassStore(pool)
	require.NoError(t, classes.Insert(ctx, &domain.ShareClass{ID: "cls-common", CompanyID: "acme", Name: "Common", VotesPerShare: 1}))
	require.NoError(t, classes.Insert(ctx, &domain.ShareClass{ID: "cls-seed", CompanyID: "acme", Name: "Seed Preferred", VotesPerShare: 1, Seniority: 1}))

	holders := postgres.NewStakeholderStore(pool)
	require.NoError(t, holders.Insert(ctx, &domain.Stakeholder{ID: "sh-alice", CompanyID: "acme", Name: "Alice", Type: domain.StakeholderFounder}))
	require.NoError(t, holders.Insert(ctx, &domain.Stakeholder{ID: "sh-fund", CompanyID: "acme", Name: "Fund I", Type: domain.StakeholderVC}))
}

func ptr[T any](v T) *T {
	return &v
}
