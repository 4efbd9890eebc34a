package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRepository_EmptyScopeShortCircuits confirms a non-wildcard scope with
// no namespaces never touches the pool, so a nil pool is safe to pass here.
func TestRepository_EmptyScopeShortCircuits(t *testing.T) {
	repo := NewRepository(nil)

	result, err := repo.List(context.Background(), ListRequest{Scope: Scope{Wildcard: false, Namespaces: nil}})
	require.NoError(t, err)
	assert.Equal(t, ListResult{}, result)
}

func TestRepository_OwnerCountsEmptyNamespacesShortCircuits(t *testing.T) {
	repo := NewRepository(nil)

	owners, err := repo.ownerCounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, owners)
}
