// Package diff computes minimal line-level edit scripts between two line
// sequences using the Myers algorithm. It is stateless: callers supply raw
// content from whichever source (working tree, index, object store) they
// are comparing.
package diff

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrBinaryContent is returned when asked to line-diff content that does
// not look like text.
var ErrBinaryContent = errors.New("binary content cannot be line-diffed")

// OpKind classifies an operation in an edit script.
type OpKind int

const (
	OpEqual  OpKind = iota // Lines match between old and new.
	OpDelete               // Lines present in old only.
	OpInsert               // Lines present in new only.
)

func (k OpKind) String() string {
	switch k {
	case OpEqual:
		return "equal"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one operation in an edit script. It carries half-open line ranges
// into both inputs: [OldStart, OldEnd) in the old sequence and
// [NewStart, NewEnd) in the new one. Delete ops span no new lines
// (NewStart == NewEnd) and insert ops span no old lines.
type Op struct {
	Kind     OpKind
	OldStart int
	OldEnd   int
	NewStart int
	NewEnd   int
}

// Diff computes the shortest edit script transforming oldLines into
// newLines. Adjacent operations of the same kind are coalesced, and within
// each contiguous changed region deletions are emitted before insertions,
// so the output is deterministic for a given input pair.
func Diff(oldLines, newLines []string) []Op {
	return toOps(myers(oldLines, newLines))
}

// DiffBytes splits both sides into lines and diffs them. Content containing
// a NUL byte is rejected with ErrBinaryContent.
func DiffBytes(oldData, newData []byte) ([]Op, error) {
	if IsBinary(oldData) || IsBinary(newData) {
		return nil, ErrBinaryContent
	}
	return Diff(SplitLines(oldData), SplitLines(newData)), nil
}

// IsBinary reports whether data looks like non-text content. Like the
// usual heuristic, a NUL byte anywhere marks the content binary.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

// SplitLines splits data into lines without trailing newlines. Empty input
// yields no lines; a trailing newline does not create an empty final line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.Split(s, "\n")
}

// Apply replays an edit script against oldLines and returns the new line
// sequence. Insert ops carry only ranges into the new side, so the caller
// passes the same newLines the script was computed against.
func Apply(oldLines, newLines []string, script []Op) ([]string, error) {
	var out []string
	oldPos := 0
	for _, op := range script {
		if op.OldStart != oldPos && op.Kind != OpInsert {
			return nil, fmt.Errorf("apply: op %v starts at old line %d, expected %d", op.Kind, op.OldStart, oldPos)
		}
		switch op.Kind {
		case OpEqual:
			if op.OldEnd > len(oldLines) {
				return nil, fmt.Errorf("apply: equal range [%d,%d) exceeds old length %d", op.OldStart, op.OldEnd, len(oldLines))
			}
			out = append(out, oldLines[op.OldStart:op.OldEnd]...)
			oldPos = op.OldEnd
		case OpDelete:
			if op.OldEnd > len(oldLines) {
				return nil, fmt.Errorf("apply: delete range [%d,%d) exceeds old length %d", op.OldStart, op.OldEnd, len(oldLines))
			}
			oldPos = op.OldEnd
		case OpInsert:
			if op.NewEnd > len(newLines) {
				return nil, fmt.Errorf("apply: insert range [%d,%d) exceeds new length %d", op.NewStart, op.NewEnd, len(newLines))
			}
			out = append(out, newLines[op.NewStart:op.NewEnd]...)
		}
	}
	if oldPos != len(oldLines) {
		return nil, fmt.Errorf("apply: script consumed %d of %d old lines", oldPos, len(oldLines))
	}
	return out, nil
}

// lineOp is a per-line operation produced by the core algorithm before
// range aggregation.
type lineOp struct {
	kind OpKind
	line string
}

// myers computes the shortest edit script to transform a into b, one
// operation per line. O((N+M)*D) time where D is the edit distance.
func myers(a, b []string) []lineOp {
	n := len(a)
	m := len(b)

	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		ops := make([]lineOp, m)
		for i, line := range b {
			ops[i] = lineOp{kind: OpInsert, line: line}
		}
		return ops
	}
	if m == 0 {
		ops := make([]lineOp, n)
		for i, line := range a {
			ops[i] = lineOp{kind: OpDelete, line: line}
		}
		return ops
	}

	max := n + m
	size := 2*max + 1
	v := make([]int, size)

	// trace[d] holds a snapshot of v after processing edit distance d.
	var trace [][]int

	for d := 0; d <= max; d++ {
		for k := -d; k <= d; k += 2 {
			idx := k + max
			var x int
			if k == -d || (k != d && v[idx-1] < v[idx+1]) {
				x = v[idx+1] // move down (insert)
			} else {
				x = v[idx-1] + 1 // move right (delete)
			}
			y := x - k

			// Follow the diagonal through equal lines.
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}

			v[idx] = x

			if x >= n && y >= m {
				snap := make([]int, size)
				copy(snap, v)
				trace = append(trace, snap)
				return backtrack(trace, a, b, d)
			}
		}

		snap := make([]int, size)
		copy(snap, v)
		trace = append(trace, snap)
	}

	// Unreachable for valid inputs.
	return nil
}

// backtrack reconstructs the edit script from the trace of v snapshots.
func backtrack(trace [][]int, a, b []string, dFinal int) []lineOp {
	n := len(a)
	m := len(b)
	max := n + m

	x := n
	y := m

	var ops []lineOp

	for d := dFinal; d > 0; d-- {
		k := x - y
		idx := k + max
		vPrev := trace[d-1]

		var prevK int
		if k == -d || (k != d && vPrev[idx-1] < vPrev[idx+1]) {
			prevK = k + 1 // came from an insert (down move)
		} else {
			prevK = k - 1 // came from a delete (right move)
		}

		prevX := vPrev[prevK+max]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, lineOp{kind: OpEqual, line: a[x]})
		}

		if k == prevK+1 {
			x--
			ops = append(ops, lineOp{kind: OpDelete, line: a[x]})
		} else {
			y--
			ops = append(ops, lineOp{kind: OpInsert, line: b[y]})
		}
	}

	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, lineOp{kind: OpEqual, line: a[x]})
	}

	// Reverse into forward order.
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}

	return ops
}

// toOps aggregates per-line operations into range-carrying ops, pinning
// the output order: within each run of changed lines, all deletions come
// before all insertions.
func toOps(lineOps []lineOp) []Op {
	var out []Op
	oldPos, newPos := 0, 0

	i := 0
	for i < len(lineOps) {
		if lineOps[i].kind == OpEqual {
			start := i
			for i < len(lineOps) && lineOps[i].kind == OpEqual {
				i++
			}
			count := i - start
			out = append(out, Op{
				Kind:     OpEqual,
				OldStart: oldPos, OldEnd: oldPos + count,
				NewStart: newPos, NewEnd: newPos + count,
			})
			oldPos += count
			newPos += count
			continue
		}

		// A contiguous changed run: count deletes and inserts regardless
		// of the order the backtrack interleaved them in.
		deletes, inserts := 0, 0
		for i < len(lineOps) && lineOps[i].kind != OpEqual {
			if lineOps[i].kind == OpDelete {
				deletes++
			} else {
				inserts++
			}
			i++
		}
		if deletes > 0 {
			out = append(out, Op{
				Kind:     OpDelete,
				OldStart: oldPos, OldEnd: oldPos + deletes,
				NewStart: newPos, NewEnd: newPos,
			})
			oldPos += deletes
		}
		if inserts > 0 {
			out = append(out, Op{
				Kind:     OpInsert,
				OldStart: oldPos, OldEnd: oldPos,
				NewStart: newPos, NewEnd: newPos + inserts,
			})
			newPos += inserts
		}
	}

	return out
}
