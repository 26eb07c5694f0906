// ABOUTME: Change detector: picks the comparison pair and diffs it
// ABOUTME: Read-only over the snapshot store

package changes

import (
	"context"
	"errors"
	"fmt"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// maxCompareAttempts bounds re-evaluation when snapshots vanish mid-compare
const maxCompareAttempts = 5

// Latest returns the second-newest and newest refs of a sorted history.
func Latest(history []snapshot.Ref) (base, target snapshot.Ref, err error) {
	if len(history) < 2 {
		e := &InsufficientHistoryError{Snapshots: len(history)}
		if len(history) == 1 {
			e.DeviceID = history[0].DeviceID
		}
		return snapshot.Ref{}, snapshot.Ref{}, e
	}
	return history[len(history)-2], history[len(history)-1], nil
}

// Detector compares a device's two most recent snapshots.
type Detector struct {
	reader snapshot.Reader
}

// NewDetector creates a detector reading from r.
func NewDetector(r snapshot.Reader) *Detector {
	return &Detector{reader: r}
}

// CompareLatest diffs the device's two newest snapshots. A snapshot that
// disappears between List and Load is dropped and the pair re-selected, so it
// behaves as if the history had one fewer entry.
func (d *Detector) CompareLatest(ctx context.Context, deviceID string) (*Result, error) {
	missing := make(map[string]bool)
	var lastErr error

	for attempt := 0; attempt < maxCompareAttempts; attempt++ {
		history, err := d.reader.List(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		history = without(history, missing)

		base, target, err := Latest(history)
		if err != nil {
			var ih *InsufficientHistoryError
			if errors.As(err, &ih) {
				ih.DeviceID = deviceID
			}
			return nil, err
		}

		res, err := d.Compare(ctx, base, target)
		var nf *snapshot.NotFoundError
		if errors.As(err, &nf) {
			missing[nf.Ref.Key()] = true
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	return nil, lastErr
}

// Compare diffs two specific snapshots.
func (d *Detector) Compare(ctx context.Context, base, target snapshot.Ref) (*Result, error) {
	baseText, err := d.reader.Load(ctx, base)
	if err != nil {
		return nil, err
	}
	targetText, err := d.reader.Load(ctx, target)
	if err != nil {
		return nil, err
	}

	res := Diff(baseText, targetText)
	res.DeviceID = target.DeviceID
	res.Base = base
	res.Target = target
	return res, nil
}

func without(history []snapshot.Ref, missing map[string]bool) []snapshot.Ref {
	if len(missing) == 0 {
		return history
	}
	out := history[:0:0]
	for _, ref := range history {
		if !missing[ref.Key()] {
			out = append(out, ref)
		}
	}
	return out
}
