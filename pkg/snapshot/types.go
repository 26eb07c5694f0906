// ABOUTME: Snapshot data model and key encoding
// ABOUTME: Key string order is chronological order

package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TimestampLayout is the fixed-width capture time encoding used in keys.
	// UTC only: the zone is never part of the key.
	TimestampLayout = "2006-01-02_15-04-05"

	// SeqWidth is the zero-padded width of the same-second sequence suffix
	SeqWidth = 4

	// MaxSeq is the largest sequence number representable in SeqWidth digits
	MaxSeq = 9999
)

// Ref identifies one snapshot of one device.
type Ref struct {
	DeviceID   string    // Device hostname
	CapturedAt time.Time // Capture time, UTC, whole seconds
	Seq        int       // Disambiguates captures within the same second (0 for the first)
}

// Key returns the stable record key, "{device}_{YYYY-MM-DD_HH-MM-SS}" with an
// optional "_{NNNN}" suffix for same-second captures.
func (r Ref) Key() string {
	var b strings.Builder
	b.WriteString(r.DeviceID)
	b.WriteByte('_')
	b.WriteString(r.CapturedAt.UTC().Format(TimestampLayout))
	if r.Seq > 0 {
		fmt.Fprintf(&b, "_%0*d", SeqWidth, r.Seq)
	}
	return b.String()
}

func (r Ref) String() string {
	return r.Key()
}

// Before reports whether r was captured before o.
func (r Ref) Before(o Ref) bool {
	if !r.CapturedAt.Equal(o.CapturedAt) {
		return r.CapturedAt.Before(o.CapturedAt)
	}
	return r.Seq < o.Seq
}

// Snapshot is one immutable configuration capture.
type Snapshot struct {
	Ref
	Config string
}

// ParseKey parses a key produced by Ref.Key for the given device.
func ParseKey(deviceID, key string) (Ref, error) {
	rest, ok := strings.CutPrefix(key, deviceID+"_")
	if !ok {
		return Ref{}, fmt.Errorf("key %q does not belong to device %q", key, deviceID)
	}

	if len(rest) < len(TimestampLayout) {
		return Ref{}, fmt.Errorf("key %q: timestamp too short", key)
	}

	ts, err := time.ParseInLocation(TimestampLayout, rest[:len(TimestampLayout)], time.UTC)
	if err != nil {
		return Ref{}, fmt.Errorf("key %q: %w", key, err)
	}

	ref := Ref{DeviceID: deviceID, CapturedAt: ts}

	suffix := rest[len(TimestampLayout):]
	if suffix == "" {
		return ref, nil
	}

	if len(suffix) != SeqWidth+1 || suffix[0] != '_' {
		return Ref{}, fmt.Errorf("key %q: malformed sequence suffix", key)
	}
	seq, err := strconv.Atoi(suffix[1:])
	if err != nil || seq <= 0 {
		return Ref{}, fmt.Errorf("key %q: malformed sequence suffix", key)
	}
	ref.Seq = seq

	return ref, nil
}

// Clock supplies capture times.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
