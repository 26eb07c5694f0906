// ABOUTME: Diff result model for configuration snapshots
// ABOUTME: A Result is an edit script from the base lines to the target lines

package changes

import (
	"github.com/nainya/confsnap/pkg/snapshot"
)

// Op is one edit-script operation.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Prefix is the unified-diff marker for the operation.
func (o Op) Prefix() string {
	switch o {
	case OpInsert:
		return "+"
	case OpDelete:
		return "-"
	}
	return " "
}

// Line is one line of the edit script.
type Line struct {
	Op   Op
	Text string

	// NoNewline marks a last line that had no terminating newline
	NoNewline bool
}

// Stats counts lines per operation.
type Stats struct {
	Equal    int
	Inserted int
	Deleted  int
}

// Result is the diff between two snapshots of one device.
type Result struct {
	DeviceID string
	Base     snapshot.Ref
	Target   snapshot.Ref
	Lines    []Line
}

// Changed reports whether any line was inserted or deleted.
func (r *Result) Changed() bool {
	for _, l := range r.Lines {
		if l.Op != OpEqual {
			return true
		}
	}
	return false
}

// Stats counts the result's lines by operation.
func (r *Result) Stats() Stats {
	var s Stats
	for _, l := range r.Lines {
		switch l.Op {
		case OpEqual:
			s.Equal++
		case OpInsert:
			s.Inserted++
		case OpDelete:
			s.Deleted++
		}
	}
	return s
}

// BaseLines reconstructs the base side of the diff.
func (r *Result) BaseLines() []string {
	out := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Op != OpInsert {
			out = append(out, l.Text)
		}
	}
	return out
}

// TargetLines reconstructs the target side of the diff.
func (r *Result) TargetLines() []string {
	out := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Op != OpDelete {
			out = append(out, l.Text)
		}
	}
	return out
}
