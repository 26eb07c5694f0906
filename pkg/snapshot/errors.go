// ABOUTME: Error types for snapshot storage
// ABOUTME: Typed errors match their package sentinels via errors.Is

package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageWrite indicates the backing medium rejected a write
	ErrStorageWrite = errors.New("snapshot: storage write failed")

	// ErrNotFound indicates a referenced snapshot does not exist
	ErrNotFound = errors.New("snapshot: not found")

	// ErrInvalidDevice indicates an unusable device identifier
	ErrInvalidDevice = errors.New("snapshot: invalid device id")
)

// StorageWriteError is returned by Save when a snapshot could not be persisted.
// Previously stored snapshots are unaffected.
type StorageWriteError struct {
	DeviceID string
	Op       string
	Err      error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("snapshot: save %s: %s: %v", e.DeviceID, e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

func (e *StorageWriteError) Is(target error) bool { return target == ErrStorageWrite }

// NotFoundError is returned by Load when the referenced snapshot is gone.
type NotFoundError struct {
	Ref Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot: %s not found", e.Ref.Key())
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
