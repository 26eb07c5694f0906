// ABOUTME: In-memory snapshot store for tests and throwaway runs
// ABOUTME: Same key allocation and ordering as the persistent backends

package snapshot

import (
	"context"
	"errors"
	"sync"
)

// MemStore is an in-process Store. Nothing survives the process.
type MemStore struct {
	clock Clock

	mu      sync.RWMutex
	devices map[string][]Snapshot // sorted by key
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(clock Clock) *MemStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MemStore{
		clock:   clock,
		devices: make(map[string][]Snapshot),
	}
}

func (s *MemStore) Save(ctx context.Context, deviceID, config string) (*Snapshot, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	if err := ctx.Err(); err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "publish", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.devices[deviceID]
	history := make([]Ref, len(snaps))
	for i := range snaps {
		history[i] = snaps[i].Ref
	}

	ref, err := NextRef(deviceID, now, history)
	if err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "allocate key", Err: err}
	}

	snap := Snapshot{Ref: ref, Config: config}
	s.devices[deviceID] = append(snaps, snap)
	return &snap, nil
}

func (s *MemStore) List(ctx context.Context, deviceID string) ([]Ref, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.devices[deviceID]
	refs := make([]Ref, len(snaps))
	for i := range snaps {
		refs[i] = snaps[i].Ref
	}
	return refs, nil
}

func (s *MemStore) Load(ctx context.Context, ref Ref) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.devices[ref.DeviceID] {
		if snap.Key() == ref.Key() {
			return snap.Config, nil
		}
	}
	return "", &NotFoundError{Ref: ref}
}

func (s *MemStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	_, err := s.Load(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Remove drops a snapshot, as an external retention policy would.
func (s *MemStore) Remove(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.devices[ref.DeviceID]
	for i := range snaps {
		if snaps[i].Key() == ref.Key() {
			s.devices[ref.DeviceID] = append(snaps[:i:i], snaps[i+1:]...)
			return true
		}
	}
	return false
}
