// ABOUTME: Unified diff rendering of a change Result
// ABOUTME: Headers carry the snapshot keys, as the backup report prints them

package changes

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// noNewlineMarker follows an unterminated last line, as in diff(1) output
const noNewlineMarker = "\\ No newline at end of file\n"

// Unified renders the result as a unified diff with the snapshot keys as
// file names. An unchanged result renders as the empty string.
func (r *Result) Unified(context int) (string, error) {
	if !r.Changed() {
		return "", nil
	}

	base, target := r.terminatedSides()
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        base,
		B:        target,
		FromFile: fileName(r.Base, "base"),
		ToFile:   fileName(r.Target, "target"),
		Context:  context,
	})
}

// fileName labels a side of the diff; ad-hoc diffs have no refs
func fileName(ref snapshot.Ref, fallback string) string {
	if ref.DeviceID == "" {
		return fallback
	}
	return ref.Key()
}

func (r *Result) terminatedSides() (base, target []string) {
	for _, l := range r.Lines {
		text := l.Text + "\n"
		if l.NoNewline {
			text += noNewlineMarker
		}
		if l.Op != OpInsert {
			base = append(base, text)
		}
		if l.Op != OpDelete {
			target = append(target, text)
		}
	}
	return base, target
}
