// ABOUTME: Tests for the in-memory snapshot store
// ABOUTME: Conformance suite plus retention removal

package snapshot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/confsnap/pkg/snapshot"
	"github.com/nainya/confsnap/pkg/snapshot/storetest"
)

func TestMemStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock snapshot.Clock) snapshot.Store {
		return snapshot.NewMemStore(clock)
	})
}

func TestMemStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemStore(storetest.NewManualClock(storetest.Epoch))

	a, err := store.Save(ctx, "Router1", "a\n")
	require.NoError(t, err)
	b, err := store.Save(ctx, "Router1", "b\n")
	require.NoError(t, err)

	assert.True(t, store.Remove(a.Ref))
	assert.False(t, store.Remove(a.Ref))

	refs, err := store.List(ctx, "Router1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, b.Key(), refs[0].Key())

	_, err = store.Load(ctx, a.Ref)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}
