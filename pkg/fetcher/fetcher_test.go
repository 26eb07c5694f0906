// ABOUTME: Tests for the simulated and directory config fetchers
// ABOUTME: Unknown devices and cancelled contexts are fetch errors

package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/confsnap/pkg/snapshot"
)

func TestDefaultSimulated(t *testing.T) {
	sim := DefaultSimulated()
	ctx := context.Background()

	for _, host := range []string{"Switch1", "Router1", "Firewall1"} {
		cfg, err := sim.Fetch(ctx, host)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(cfg, "\nhostname "+host+"\n"), "config for %s: %q", host, cfg)
		assert.True(t, strings.HasSuffix(cfg, "!\n"))
	}

	cfg, err := sim.Fetch(ctx, "Switch1")
	require.NoError(t, err)
	assert.Contains(t, cfg, " switchport access vlan 10\n")
}

func TestSimulatedUnknownDevice(t *testing.T) {
	_, err := DefaultSimulated().Fetch(context.Background(), "Core9")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestSimulatedSet(t *testing.T) {
	sim := NewSimulated(nil)
	sim.Set("Switch1", "hostname Switch1\n vlan 20\n")

	cfg, err := sim.Fetch(context.Background(), "Switch1")
	require.NoError(t, err)
	assert.Equal(t, "hostname Switch1\n vlan 20\n", cfg)
}

func TestSimulatedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultSimulated().Fetch(ctx, "Switch1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Switch1.txt"), []byte("hostname Switch1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Router1.cfg"), []byte("hostname Router1\n"), 0o644))

	d, err := NewDirectory(dir)
	require.NoError(t, err)
	ctx := context.Background()

	cfg, err := d.Fetch(ctx, "Switch1")
	require.NoError(t, err)
	assert.Equal(t, "hostname Switch1\n", cfg)

	cfg, err = d.Fetch(ctx, "Router1")
	require.NoError(t, err)
	assert.Equal(t, "hostname Router1\n", cfg)

	_, err = d.Fetch(ctx, "Firewall1")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = d.Fetch(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, snapshot.ErrInvalidDevice)
}

func TestNewDirectoryRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "configs")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewDirectory(file)
	assert.Error(t, err)

	_, err = NewDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
