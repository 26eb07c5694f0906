// ABOUTME: Line-level edit scripts between configuration texts
// ABOUTME: Minimal LCS script, earliest matches first, deletes before inserts

package changes

import (
	"fmt"
	"strings"
)

// maxTableCells bounds the full LCS table (int32 cells). Larger inputs are
// solved by linearScript, which produces the same script in linear space.
const maxTableCells = 1 << 22

// leafCells is the subproblem size at which linearScript falls back to a table.
const leafCells = 1 << 16

// SplitLines splits configuration text into lines. A final newline does not
// start an empty line and a trailing "\r" is dropped from every line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// missingNewline reports whether text ends in an unterminated line.
func missingNewline(text string) bool {
	return text != "" && !strings.HasSuffix(text, "\n")
}

// Diff computes the edit script from baseText to targetText. A last line
// without a newline differs from the same line with one. The result carries
// no snapshot refs; Detector fills those in.
func Diff(baseText, targetText string) *Result {
	return &Result{Lines: diffLines(
		SplitLines(baseText), SplitLines(targetText),
		missingNewline(baseText), missingNewline(targetText),
	)}
}

// DiffLines computes a minimal edit script from a to b. Every line is
// treated as newline-terminated.
func DiffLines(a, b []string) []Line {
	return diffLines(a, b, false, false)
}

func diffLines(a, b []string, aOpen, bOpen bool) []Line {
	x, y := intern(a, b, aOpen, bOpen)
	out := make([]Line, 0, max(len(a), len(b)))

	pre := 0
	for pre < len(x) && pre < len(y) && x[pre] == y[pre] {
		out = append(out, Line{Op: OpEqual, Text: a[pre]})
		pre++
	}
	sa, sb, sx, sy := a[pre:], b[pre:], x[pre:], y[pre:]

	switch {
	case len(sx) == 0 && len(sy) == 0:
	case (len(sx)+1)*(len(sy)+1) <= maxTableCells:
		out = tableScript(out, sa, sb, sx, sy)
	default:
		out = linearScript(out, sa, sb, sx, sy, leafCells)
	}

	markOpen(out, len(a), len(b), aOpen, bOpen)
	return out
}

// intern maps equal lines to equal ids so comparisons are integer compares.
// An unterminated last line gets its own id.
func intern(a, b []string, aOpen, bOpen bool) ([]int, []int) {
	ids := make(map[string]int, len(a)+len(b))
	conv := func(lines []string, open bool) []int {
		out := make([]int, len(lines))
		for i, l := range lines {
			key := l
			if open && i == len(lines)-1 {
				// lines never contain "\n", so this cannot collide
				key += "\n"
			}
			id, ok := ids[key]
			if !ok {
				id = len(ids)
				ids[key] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(a, aOpen), conv(b, bOpen)
}

// markOpen flags the script lines that carry an unterminated last line.
func markOpen(script []Line, n, m int, aOpen, bOpen bool) {
	i, j := 0, 0
	for k := range script {
		if script[k].Op != OpInsert {
			i++
			if aOpen && i == n {
				script[k].NoNewline = true
			}
		}
		if script[k].Op != OpDelete {
			j++
			if bOpen && j == m {
				script[k].NoNewline = true
			}
		}
	}
}

// tableScript walks a suffix-LCS table forward, taking a match whenever the
// current lines are equal and otherwise deleting when that keeps the LCS.
func tableScript(out []Line, a, b []string, x, y []int) []Line {
	n, m := len(x), len(y)
	w := m + 1

	table := make([]int32, (n+1)*w)
	for i := n - 1; i >= 0; i-- {
		fillRow(table[i*w:(i+1)*w], table[(i+1)*w:(i+2)*w], x[i], y)
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case x[i] == y[j]:
			out = append(out, Line{Op: OpEqual, Text: a[i]})
			i++
			j++
		case table[(i+1)*w+j] >= table[i*w+j+1]:
			out = append(out, Line{Op: OpDelete, Text: a[i]})
			i++
		default:
			out = append(out, Line{Op: OpInsert, Text: b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, Line{Op: OpDelete, Text: a[i]})
	}
	for ; j < m; j++ {
		out = append(out, Line{Op: OpInsert, Text: b[j]})
	}
	return out
}

// fillRow computes row i of the suffix-LCS table from row i+1.
func fillRow(row, below []int32, xi int, y []int) {
	m := len(y)
	row[m] = 0
	for j := m - 1; j >= 0; j-- {
		switch {
		case xi == y[j]:
			row[j] = below[j+1] + 1
		case below[j] >= row[j+1]:
			row[j] = below[j]
		default:
			row[j] = row[j+1]
		}
	}
}

// linearScript returns exactly the script tableScript would, keeping only a
// few table rows at a time. It finds the column where the table walk enters
// the middle row and solves the two halves on either side of that point.
// The top half's own walk agrees with the full walk because the full walk's
// prefix is already an optimal path to the split point.
func linearScript(out []Line, a, b []string, x, y []int, leaf int) []Line {
	n, m := len(x), len(y)
	if n < 2 || m == 0 || (n+1)*(m+1) <= leaf {
		return tableScript(out, a, b, x, y)
	}

	mid := n / 2
	j := splitColumn(x, y, mid)
	out = linearScript(out, a[:mid], b[:j], x[:mid], y[:j], leaf)
	return linearScript(out, a[mid:], b[j:], x[mid:], y[j:], leaf)
}

// splitColumn returns the column at which the table walk from (0, 0) first
// reaches row mid. It sweeps the table bottom-up, carrying for every cell of
// the current row the column where a walk started there would cross mid.
func splitColumn(x, y []int, mid int) int {
	n, m := len(x), len(y)
	row := make([]int32, m+1)
	below := make([]int32, m+1)
	for i := n - 1; i >= mid; i-- {
		fillRow(row, below, x[i], y)
		row, below = below, row
	}

	cross := make([]int32, m+1)
	next := make([]int32, m+1)
	for j := range cross {
		cross[j] = int32(j)
	}
	for i := mid - 1; i >= 0; i-- {
		fillRow(row, below, x[i], y)
		next[m] = cross[m]
		for j := m - 1; j >= 0; j-- {
			switch {
			case x[i] == y[j]:
				next[j] = cross[j+1]
			case below[j] >= row[j+1]:
				next[j] = cross[j]
			default:
				next[j] = next[j+1]
			}
		}
		row, below = below, row
		cross, next = next, cross
	}
	return int(cross[0])
}

// Apply replays an edit script against base and returns the target lines.
func Apply(base []string, script []Line) ([]string, error) {
	out := make([]string, 0, len(base))
	i := 0
	for n, l := range script {
		switch l.Op {
		case OpInsert:
			out = append(out, l.Text)
			continue
		case OpEqual, OpDelete:
			if i >= len(base) || base[i] != l.Text {
				return nil, fmt.Errorf("%w: line %d (%s %q)", ErrEditScript, n, l.Op, l.Text)
			}
			if l.Op == OpEqual {
				out = append(out, l.Text)
			}
			i++
		default:
			return nil, fmt.Errorf("%w: line %d has unknown op %d", ErrEditScript, n, int(l.Op))
		}
	}
	if i != len(base) {
		return nil, fmt.Errorf("%w: %d base lines not consumed", ErrEditScript, len(base)-i)
	}
	return out, nil
}

// Patch replays an edit script against baseText and returns the target text,
// ending in a newline unless the script's last target line is unterminated.
func Patch(baseText string, script []Line) (string, error) {
	target, err := Apply(SplitLines(baseText), script)
	if err != nil {
		return "", err
	}
	if lastOpen(script, OpInsert) != missingNewline(baseText) {
		return "", fmt.Errorf("%w: final newline of base does not match", ErrEditScript)
	}

	var b strings.Builder
	for _, l := range target {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	text := b.String()
	if lastOpen(script, OpDelete) {
		text = strings.TrimSuffix(text, "\n")
	}
	return text, nil
}

// lastOpen reports whether the last script line not of op skip is unterminated.
func lastOpen(script []Line, skip Op) bool {
	for i := len(script) - 1; i >= 0; i-- {
		if script[i].Op != skip {
			return script[i].NoNewline
		}
	}
	return false
}
