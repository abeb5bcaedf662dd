package address

import (
	"fmt"
	"strings"
)

// Range is an inclusive rectangle of cells in zero-based coordinates.
type Range struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// ParseRange parses "A1:C3" style references. A single cell reference
// yields a one-cell range. "$" markers are ignored and the corners are
// normalized so that Start is the top-left cell.
func ParseRange(ref string) (Range, error) {
	ref = strings.ReplaceAll(ref, "$", "")
	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return Range{}, fmt.Errorf("%w: range %q", ErrInvalidAddress, ref)
	}
	r1, c1, err := Parse(parts[0])
	if err != nil {
		return Range{}, err
	}
	r2, c2 := r1, c1
	if len(parts) == 2 {
		if r2, c2, err = Parse(parts[1]); err != nil {
			return Range{}, err
		}
	}
	return Range{
		StartRow: min(r1, r2),
		StartCol: min(c1, c2),
		EndRow:   max(r1, r2),
		EndCol:   max(c1, c2),
	}, nil
}

// String formats the range as "A1:C3", or "A1" for a single cell.
func (r Range) String() string {
	start := MustFormat(r.StartRow, r.StartCol)
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		return start
	}
	return start + ":" + MustFormat(r.EndRow, r.EndCol)
}

// Rows returns the number of rows covered.
func (r Range) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns covered.
func (r Range) Cols() int { return r.EndCol - r.StartCol + 1 }

// Contains reports whether the cell lies inside the range.
func (r Range) Contains(row, col int) bool {
	return row >= r.StartRow && row <= r.EndRow && col >= r.StartCol && col <= r.EndCol
}

// ContainsRange reports whether o lies entirely inside r.
func (r Range) ContainsRange(o Range) bool {
	return r.Contains(o.StartRow, o.StartCol) && r.Contains(o.EndRow, o.EndCol)
}

// Offset translates the range. ok is false if any corner leaves the sheet.
func (r Range) Offset(dRow, dCol int) (Range, bool) {
	out := Range{
		StartRow: r.StartRow + dRow,
		StartCol: r.StartCol + dCol,
		EndRow:   r.EndRow + dRow,
		EndCol:   r.EndCol + dCol,
	}
	return out, InBounds(out.StartRow, out.StartCol) && InBounds(out.EndRow, out.EndCol)
}
