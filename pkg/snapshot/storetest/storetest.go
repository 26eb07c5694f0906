// ABOUTME: Conformance tests every snapshot.Store backend must pass
// ABOUTME: Backends call Run from their own _test.go files

package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// ManualClock is a Clock tests move by hand.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a clock at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock by d (negative d steps it back).
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds an empty store driven by clock.
type Factory func(t *testing.T, clock snapshot.Clock) snapshot.Store

// Epoch is the default start time of suite clocks.
var Epoch = time.Date(2024, 3, 9, 14, 5, 7, 250_000_000, time.UTC)

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, newStore) })
	t.Run("EmptyConfig", func(t *testing.T) { testEmptyConfig(t, newStore) })
	t.Run("InvalidDevice", func(t *testing.T) { testInvalidDevice(t, newStore) })
	t.Run("UnknownDevice", func(t *testing.T) { testUnknownDevice(t, newStore) })
	t.Run("SameSecondCaptures", func(t *testing.T) { testSameSecond(t, newStore) })
	t.Run("ClockStepsBack", func(t *testing.T) { testClockStepsBack(t, newStore) })
	t.Run("ChronologicalOrder", func(t *testing.T) { testChronological(t, newStore) })
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, newStore) })
	t.Run("DevicesIsolated", func(t *testing.T) { testDevicesIsolated(t, newStore) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore) })
	t.Run("CancelledSave", func(t *testing.T) { testCancelledSave(t, newStore) })
	t.Run("Exists", func(t *testing.T) { testExists(t, newStore) })
}

// testExists runs only for stores implementing snapshot.Checker.
func testExists(t *testing.T, newStore Factory) {
	store := newStore(t, NewManualClock(Epoch))
	checker, ok := store.(snapshot.Checker)
	if !ok {
		t.Skip("store has no existence check")
	}
	ctx := context.Background()

	snap, err := store.Save(ctx, "Switch1", "hostname Switch1\n")
	require.NoError(t, err)

	found, err := checker.Exists(ctx, snap.Ref)
	require.NoError(t, err)
	assert.True(t, found)

	missing := snap.Ref
	missing.Seq = 1
	found, err = checker.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, found)
}

func testSaveAndLoad(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	config := "hostname Switch1\ninterface Fa0/1\n vlan 10\n"
	snap, err := store.Save(ctx, "Switch1", config)
	require.NoError(t, err)

	assert.Equal(t, "Switch1", snap.DeviceID)
	assert.Equal(t, "Switch1_2024-03-09_14-05-07", snap.Key())
	assert.Equal(t, config, snap.Config)

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, snap.Key(), refs[0].Key())

	got, err := store.Load(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, config, got)
}

func testEmptyConfig(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	snap, err := store.Save(ctx, "Router1", "")
	require.NoError(t, err)

	got, err := store.Load(ctx, snap.Ref)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func testInvalidDevice(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	for _, id := range []string{"", "..", ".hidden", "a/b", `a\b`} {
		_, err := store.Save(ctx, id, "x")
		assert.ErrorIs(t, err, snapshot.ErrInvalidDevice, "device %q", id)
	}
}

func testUnknownDevice(t *testing.T, newStore Factory) {
	store := newStore(t, NewManualClock(Epoch))

	refs, err := store.List(context.Background(), "Firewall1")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func testSameSecond(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	first, err := store.Save(ctx, "Switch1", "one\n")
	require.NoError(t, err)
	second, err := store.Save(ctx, "Switch1", "two\n")
	require.NoError(t, err)

	assert.NotEqual(t, first.Key(), second.Key())
	assert.Equal(t, "Switch1_2024-03-09_14-05-07_0001", second.Key())

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	a, err := store.Load(ctx, refs[0])
	require.NoError(t, err)
	b, err := store.Load(ctx, refs[1])
	require.NoError(t, err)
	assert.Equal(t, "one\n", a)
	assert.Equal(t, "two\n", b)
}

func testClockStepsBack(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewManualClock(Epoch)
	store := newStore(t, clock)

	_, err := store.Save(ctx, "Switch1", "before\n")
	require.NoError(t, err)

	clock.Advance(-time.Hour)
	snap, err := store.Save(ctx, "Switch1", "after\n")
	require.NoError(t, err)

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, snap.Key(), refs[1].Key(), "newest capture must sort last")
}

func testChronological(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewManualClock(Epoch)
	store := newStore(t, clock)

	steps := []time.Duration{0, 0, time.Second, 9 * time.Second, 0, 50 * time.Minute, 36 * time.Hour, 400 * 24 * time.Hour}
	var saved []string
	for i, d := range steps {
		clock.Advance(d)
		snap, err := store.Save(ctx, "Switch1", fmt.Sprintf("rev %d\n", i))
		require.NoError(t, err)
		saved = append(saved, snap.Key())
	}

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, len(steps))

	for i, ref := range refs {
		assert.Equal(t, saved[i], ref.Key())
		if i > 0 {
			assert.True(t, refs[i-1].Before(ref))
			assert.Less(t, refs[i-1].Key(), ref.Key())
		}
	}
}

func testLoadMissing(t *testing.T, newStore Factory) {
	store := newStore(t, NewManualClock(Epoch))

	ref := snapshot.Ref{DeviceID: "Switch1", CapturedAt: Epoch.Truncate(time.Second)}
	_, err := store.Load(context.Background(), ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	var nf *snapshot.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, ref.Key(), nf.Ref.Key())
}

func testDevicesIsolated(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	_, err := store.Save(ctx, "Switch1", "s\n")
	require.NoError(t, err)
	_, err = store.Save(ctx, "Switch10", "s10\n")
	require.NoError(t, err)

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Switch1", refs[0].DeviceID)
	assert.Zero(t, refs[0].Seq)
}

func testConcurrentSaves(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := newStore(t, NewManualClock(Epoch))

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Save(ctx, "Switch1", fmt.Sprintf("rev %d\n", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	refs, err := store.List(ctx, "Switch1")
	require.NoError(t, err)
	require.Len(t, refs, n)

	seen := make(map[string]bool)
	for _, ref := range refs {
		assert.False(t, seen[ref.Key()], "duplicate key %s", ref.Key())
		seen[ref.Key()] = true
	}
}

func testCancelledSave(t *testing.T, newStore Factory) {
	store := newStore(t, NewManualClock(Epoch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, "Switch1", "partial\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrStorageWrite)
	assert.ErrorIs(t, err, context.Canceled)

	refs, err := store.List(context.Background(), "Switch1")
	require.NoError(t, err)
	assert.Empty(t, refs)
}
