// ABOUTME: Tests for snapshot key formatting and parsing
// ABOUTME: Property tests that key order matches capture order

package snapshot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nainya/confsnap/pkg/snapshot"
)

func genRef(t *rapid.T, label string) snapshot.Ref {
	secs := rapid.Int64Range(0, 253402300799).Draw(t, label+"_secs") // 1970 .. 9999-12-31
	return snapshot.Ref{
		DeviceID:   "Switch1",
		CapturedAt: time.Unix(secs, 0).UTC(),
		Seq:        rapid.IntRange(0, snapshot.MaxSeq).Draw(t, label+"_seq"),
	}
}

// Key order must match capture order for every pair of refs.
func TestKeyOrderMatchesTimeOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genRef(t, "a")
		b := genRef(t, "b")

		if a.Before(b) != (a.Key() < b.Key()) {
			t.Fatalf("order mismatch: %s before %s = %v, key order = %v",
				a.Key(), b.Key(), a.Before(b), a.Key() < b.Key())
		}
	})
}

func TestKeyIsFixedWidthPerSeqClass(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genRef(t, "a")
		a.Seq = 0
		b := genRef(t, "b")
		b.Seq = 0
		if len(a.Key()) != len(b.Key()) {
			t.Fatalf("key widths differ: %q vs %q", a.Key(), b.Key())
		}
	})
}

func TestParseKeyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ref := genRef(t, "r")
		got, err := snapshot.ParseKey(ref.DeviceID, ref.Key())
		if err != nil {
			t.Fatalf("parse %q: %v", ref.Key(), err)
		}
		if !got.CapturedAt.Equal(ref.CapturedAt) || got.Seq != ref.Seq {
			t.Fatalf("round trip of %q gave %q", ref.Key(), got.Key())
		}
	})
}

func TestKeyIgnoresLocalZone(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2024, 1, 1, 5, 0, 0, 0, zone)
	ref := snapshot.Ref{DeviceID: "Router1", CapturedAt: local}

	assert.Equal(t, "Router1_2024-01-01_00-00-00", ref.Key())
}

func TestParseKeyRejects(t *testing.T) {
	cases := map[string]string{
		"other device":  "Router1_2024-01-01_00-00-00",
		"short":         "Switch1_2024-01-01",
		"bad timestamp": "Switch1_2024-13-01_00-00-00",
		"bad seq":       "Switch1_2024-01-01_00-00-00_01",
		"zero seq":      "Switch1_2024-01-01_00-00-00_0000",
		"junk suffix":   "Switch1_2024-01-01_00-00-00.bak",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := snapshot.ParseKey("Switch1", key)
			assert.Error(t, err)
		})
	}
}

func TestNextRef(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 900_000_000, time.UTC)

	ref, err := snapshot.NextRef("Switch1", now, nil)
	require.NoError(t, err)
	assert.Equal(t, "Switch1_2024-05-01_10-00-00", ref.Key())

	ref2, err := snapshot.NextRef("Switch1", now, []snapshot.Ref{ref})
	require.NoError(t, err)
	assert.Equal(t, 1, ref2.Seq)

	later, err := snapshot.NextRef("Switch1", now.Add(time.Second), []snapshot.Ref{ref, ref2})
	require.NoError(t, err)
	assert.Zero(t, later.Seq)

	full := snapshot.Ref{DeviceID: "Switch1", CapturedAt: ref.CapturedAt, Seq: snapshot.MaxSeq}
	_, err = snapshot.NextRef("Switch1", now, []snapshot.Ref{full})
	assert.Error(t, err)
}

func TestValidateDeviceID(t *testing.T) {
	assert.NoError(t, snapshot.ValidateDeviceID("core-sw01.dc1"))
	assert.NoError(t, snapshot.ValidateDeviceID("Switch_1"))
	assert.ErrorIs(t, snapshot.ValidateDeviceID(""), snapshot.ErrInvalidDevice)
	assert.ErrorIs(t, snapshot.ValidateDeviceID("../etc"), snapshot.ErrInvalidDevice)
}
