// ABOUTME: Error types for change detection
// ABOUTME: Insufficient history is a typed error, not a failure

package changes

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory means fewer than two snapshots exist to compare
	ErrInsufficientHistory = errors.New("changes: insufficient history")

	// ErrEditScript means a result does not apply to the given base lines
	ErrEditScript = errors.New("changes: edit script does not match base")
)

// InsufficientHistoryError is the expected state of a device with fewer than
// two snapshots. It is a status, not a failure.
type InsufficientHistoryError struct {
	DeviceID  string
	Snapshots int
}

func (e *InsufficientHistoryError) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("changes: need 2 snapshots to compare, have %d", e.Snapshots)
	}
	return fmt.Sprintf("changes: %s: need 2 snapshots to compare, have %d", e.DeviceID, e.Snapshots)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }
