// ABOUTME: Error types for backup sessions
// ABOUTME: Fetch failures carry the device they came from

package backup

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch indicates a device configuration could not be retrieved
	ErrFetch = errors.New("backup: fetch failed")

	// ErrInvalidEncoding indicates a fetched configuration is not UTF-8 text
	ErrInvalidEncoding = errors.New("backup: configuration is not valid UTF-8")
)

// FetchError wraps a fetcher failure for one device. It is surfaced as the
// device's status and never retried.
type FetchError struct {
	DeviceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("backup: fetch %s: %v", e.DeviceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
