// ABOUTME: SnapshotStore contract shared by all backends
// ABOUTME: Per-device write serialization and key allocation helpers

package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Reader is the read side of a store. Change detection only needs this.
type Reader interface {
	// List returns the device's snapshots in ascending chronological order.
	// A device with no snapshots yields an empty slice and no error.
	List(ctx context.Context, deviceID string) ([]Ref, error)

	// Load returns the configuration text of a snapshot, or a *NotFoundError.
	Load(ctx context.Context, ref Ref) (string, error)
}

// Store is an append-only per-device snapshot archive.
type Store interface {
	Reader

	// Save persists config as a new snapshot captured now. Empty config is
	// stored like any other. Failures are *StorageWriteError.
	Save(ctx context.Context, deviceID, config string) (*Snapshot, error)
}

// Checker is implemented by stores that can confirm a snapshot exists
// without reading its content.
type Checker interface {
	Exists(ctx context.Context, ref Ref) (bool, error)
}

// ValidateDeviceID checks that id can name a storage namespace.
func ValidateDeviceID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidDevice)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidDevice, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidDevice, id)
	}
	return nil
}

// SortRefs orders refs by key, which is chronological order.
func SortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Key() < refs[j].Key()
	})
}

// NextRef allocates the ref for a capture at now, given the device's sorted
// history. The capture time never moves behind the newest existing capture,
// so a clock stepping backwards still appends at the end of the history.
func NextRef(deviceID string, now time.Time, history []Ref) (Ref, error) {
	ref := Ref{
		DeviceID:   deviceID,
		CapturedAt: now.UTC().Truncate(time.Second),
	}

	if len(history) > 0 {
		last := history[len(history)-1]
		if !ref.CapturedAt.After(last.CapturedAt) {
			ref.CapturedAt = last.CapturedAt
			ref.Seq = last.Seq + 1
		}
	}

	if ref.Seq > MaxSeq {
		return Ref{}, fmt.Errorf("more than %d captures within %s", MaxSeq+1, ref.CapturedAt.Format(TimestampLayout))
	}
	if y := ref.CapturedAt.Year(); y < 1 || y > 9999 {
		return Ref{}, fmt.Errorf("capture year %d outside fixed-width key range", y)
	}

	return ref, nil
}

// DeviceLocks serializes writers per device.
type DeviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the device's lock and returns its release function.
func (l *DeviceLocks) Lock(deviceID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[deviceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
