package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	stores, cleanup, err := Open(context.Background(), Options{UseMemory: true})
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, stores.ShareClasses)
	assert.NotNil(t, stores.Stakeholders)
	assert.NotNil(t, stores.Events)
	assert.NotNil(t, stores.Versions)
	assert.NotNil(t, stores.Vsop)
	assert.NotNil(t, stores.History)
}

func TestOpen_RequiresPostgresDSN(t *testing.T) {
	_, _, err := Open(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres DSN is required")
}

func TestMemory_Independent(t *testing.T) {
	a, b := Memory(), Memory()
	ctx := context.Background()

	va, err := a.Versions.Version(ctx, "acme")
	require.NoError(t, err)
	vb, err := b.Versions.Version(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, va, vb)
	assert.NotSame(t, a.Versions, b.Versions)
}
