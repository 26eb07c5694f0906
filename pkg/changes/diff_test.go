// ABOUTME: Tests for line diffing, patching and unified rendering
// ABOUTME: Property tests compare the linear-space and table scripts

package changes

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	switch1Rev1 = "hostname Switch1\ninterface Fa0/1\n vlan 10\n"
	switch1Rev2 = "hostname Switch1\ninterface Fa0/1\n vlan 20\n"
)

func testLineDiff(t *testing.T, a, b []string, expected []Line) {
	t.Helper()
	got := DiffLines(a, b)
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("expected:\n%#v\ngot:\n%#v", expected, got)
	}
}

func TestSwitchVlanChange(t *testing.T) {
	res := Diff(switch1Rev1, switch1Rev2)

	expected := []Line{
		{Op: OpEqual, Text: "hostname Switch1"},
		{Op: OpEqual, Text: "interface Fa0/1"},
		{Op: OpDelete, Text: " vlan 10"},
		{Op: OpInsert, Text: " vlan 20"},
	}
	assert.Equal(t, expected, res.Lines)
	assert.True(t, res.Changed())
	assert.Equal(t, Stats{Equal: 2, Inserted: 1, Deleted: 1}, res.Stats())
}

func TestEmptyLineDiff(t *testing.T) {
	testLineDiff(t, nil, nil, []Line{})
	testLineDiff(t, nil, []string{"added"}, []Line{{Op: OpInsert, Text: "added"}})
	testLineDiff(t, []string{"gone"}, nil, []Line{{Op: OpDelete, Text: "gone"}})
}

func TestEarliestMatchTieBreak(t *testing.T) {
	testLineDiff(t,
		[]string{"x"},
		[]string{"y", "x", "x"},
		[]Line{
			{Op: OpInsert, Text: "y"},
			{Op: OpEqual, Text: "x"},
			{Op: OpInsert, Text: "x"},
		})

	testLineDiff(t,
		[]string{"a", "b"},
		[]string{"b", "a"},
		[]Line{
			{Op: OpDelete, Text: "a"},
			{Op: OpEqual, Text: "b"},
			{Op: OpInsert, Text: "a"},
		})
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{""}, SplitLines("\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\r\n\r\nb\r\n"))
	assert.Equal(t, []string{"", "hostname Router1"}, SplitLines("\nhostname Router1\n"))
}

func TestCRLFIsNotAChange(t *testing.T) {
	res := Diff("hostname R1\ninterface Gig0/1\n", "hostname R1\r\ninterface Gig0/1\r\n")
	assert.False(t, res.Changed())
}

func TestApplyRejectsMismatchedBase(t *testing.T) {
	script := DiffLines([]string{"a", "b"}, []string{"a", "c"})

	_, err := Apply([]string{"a", "x"}, script)
	assert.ErrorIs(t, err, ErrEditScript)

	_, err = Apply([]string{"a", "b", "extra"}, script)
	assert.ErrorIs(t, err, ErrEditScript)
}

// genLines draws config-like line slices from a small alphabet so that
// matches, repeats and reorderings are common.
func genLines(t *rapid.T, label string) []string {
	alphabet := []string{"!", "hostname Switch1", "interface Fa0/1", " vlan 10", " vlan 20", " shutdown", ""}
	return rapid.SliceOfN(rapid.SampledFrom(alphabet), 0, 24).Draw(t, label)
}

func countEdits(script []Line) int {
	n := 0
	for _, l := range script {
		if l.Op != OpEqual {
			n++
		}
	}
	return n
}

func TestDiffRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genLines(t, "a")
		b := genLines(t, "b")

		script := DiffLines(a, b)
		got, err := Apply(a, script)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if strings.Join(got, "\n") != strings.Join(b, "\n") || len(got) != len(b) {
			t.Fatalf("round trip mismatch: got %q want %q", got, b)
		}
	})
}

// genText joins drawn lines, with or without a final newline.
func genText(t *rapid.T, label string) string {
	text := strings.Join(genLines(t, label), "\n")
	if rapid.Bool().Draw(t, label+" newline") {
		text += "\n"
	}
	return text
}

func TestDiffTextRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genText(t, "a")
		b := genText(t, "b")

		res := Diff(a, b)
		got, err := Patch(a, res.Lines)
		if err != nil {
			t.Fatalf("patch: %v", err)
		}
		if got != b {
			t.Fatalf("round trip mismatch: got %q want %q", got, b)
		}
		if (a == b) == res.Changed() {
			t.Fatalf("changed=%v for a=%q b=%q", res.Changed(), a, b)
		}
	})
}

func TestFinalNewlineIsAChange(t *testing.T) {
	base := "hostname R1\ninterface Gig0/1"
	target := "hostname R1\ninterface Gig0/1\n"

	res := Diff(base, target)
	require.True(t, res.Changed())
	assert.Equal(t, []Line{
		{Op: OpEqual, Text: "hostname R1"},
		{Op: OpDelete, Text: "interface Gig0/1", NoNewline: true},
		{Op: OpInsert, Text: "interface Gig0/1"},
	}, res.Lines)

	got, err := Patch(base, res.Lines)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	back, err := Patch(target, Diff(target, base).Lines)
	require.NoError(t, err)
	assert.Equal(t, base, back)

	out, err := res.Unified(DefaultContext)
	require.NoError(t, err)
	assert.Contains(t, out, "-interface Gig0/1\n\\ No newline at end of file\n+interface Gig0/1\n")

	assert.False(t, Diff(base, base).Changed())
	same := Diff(base, base).Lines
	assert.True(t, same[len(same)-1].NoNewline)
}

func TestPatchRejectsWrongFinalNewline(t *testing.T) {
	res := Diff("a\nb", "a\nc\n")
	_, err := Patch("a\nb\n", res.Lines)
	assert.ErrorIs(t, err, ErrEditScript)
}

func TestDiffIdenticalHasNoEdits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genLines(t, "a")
		res := &Result{Lines: DiffLines(a, a)}
		if res.Changed() {
			t.Fatalf("identical input reported changes: %v", res.Lines)
		}
		if len(res.Lines) != len(a) {
			t.Fatalf("identical input must keep every line as equal")
		}
	})
}

func TestDiffDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genLines(t, "a")
		b := genLines(t, "b")
		if !reflect.DeepEqual(DiffLines(a, b), DiffLines(a, b)) {
			t.Fatalf("diff is not deterministic")
		}
	})
}

func TestLinearScriptMatchesTable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genLines(t, "a")
		b := genLines(t, "b")
		x, y := intern(a, b, false, false)

		table := tableScript(nil, a, b, x, y)
		linear := linearScript(nil, a, b, x, y, 0)
		if !reflect.DeepEqual(table, linear) {
			t.Fatalf("scripts differ:\ntable:  %v\nlinear: %v", table, linear)
		}
	})
}

func TestLargeRewriteAllocatesLinearly(t *testing.T) {
	n := 4000
	a := make([]string, n)
	b := make([]string, n)
	for i := range a {
		a[i] = fmt.Sprintf("access-list 101 permit ip host 10.0.%d.%d any", i/256, i%256)
		b[i] = fmt.Sprintf("access-list 102 deny tcp host 10.1.%d.%d any eq 23", i/256, i%256)
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	script := DiffLines(a, b)
	runtime.ReadMemStats(&after)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(32<<20))
	assert.Equal(t, 2*n, countEdits(script))

	got, err := Apply(a, script)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestLargeInputsUseBoundedTable(t *testing.T) {
	n := 3000
	a := make([]string, n)
	b := make([]string, n)
	for i := range a {
		a[i] = "line " + strings.Repeat("x", i%7)
		b[i] = a[i]
	}
	a[0] = "hostname old"
	b[0] = "hostname new"
	b[n-1] = "end"

	script := DiffLines(a, b)
	got, err := Apply(a, script)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, 4, countEdits(script))
}

func TestUnified(t *testing.T) {
	res := Diff(switch1Rev1, switch1Rev2)

	out, err := res.Unified(DefaultContext)
	require.NoError(t, err)
	assert.Contains(t, out, "--- base")
	assert.Contains(t, out, "+++ target")
	assert.Contains(t, out, "- vlan 10\n")
	assert.Contains(t, out, "+ vlan 20\n")
	assert.Contains(t, out, " hostname Switch1\n")

	same, err := Diff(switch1Rev1, switch1Rev1).Unified(DefaultContext)
	require.NoError(t, err)
	assert.Empty(t, same)
}
