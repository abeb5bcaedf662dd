package formula

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// ErrOutOfBounds indicates a relative reference that would leave the sheet
// after being shifted.
var ErrOutOfBounds = errors.New("formula reference out of bounds")

// refError is the text a deleted reference collapses to.
const refError = "#REF!"

// Rebase shifts every relative reference in formula by (dRow, dCol).
// Absolute components ("$A", "$1") stay where they are. A leading "=" and
// all text outside references are preserved byte for byte.
func Rebase(formula string, dRow, dCol int) (string, error) {
	if dRow == 0 && dCol == 0 {
		return formula, nil
	}
	return rewrite(formula, func(a *area, _ string) (string, error) {
		start, err := a.start.shift(dRow, dCol)
		if err != nil {
			return "", fmt.Errorf("%w: %s", err, a.format())
		}
		out := area{sheet: a.sheet, start: start}
		if a.end != nil {
			end, err := a.end.shift(dRow, dCol)
			if err != nil {
				return "", fmt.Errorf("%w: %s", err, a.format())
			}
			out.end = &end
		}
		return out.format(), nil
	})
}

func (p part) shift(dRow, dCol int) (part, error) {
	if p.hasRow && !p.rowAbs {
		p.row += dRow
		if p.row < 0 || p.row >= address.MaxRows {
			return p, ErrOutOfBounds
		}
	}
	if p.hasCol && !p.colAbs {
		p.col += dCol
		if p.col < 0 || p.col >= address.MaxCols {
			return p, ErrOutOfBounds
		}
	}
	return p, nil
}

// RowRemoval describes rows deleted from a sheet.
type RowRemoval struct {
	// Sheet is the sheet the rows were removed from.
	Sheet string
	// Home is the sheet that owns the formula being rewritten.
	Home string
	// First is the zero-based index of the first removed row.
	First int
	// Count is the number of removed rows.
	Count int
	// SameSheet compares sheet names. Nil means exact comparison.
	SameSheet func(a, b string) bool
}

// RemoveRows adjusts references after rows were deleted. References below
// the deleted block move up, absolute or not; references inside it become
// #REF!, and ranges straddling it shrink.
func RemoveRows(formula string, rm RowRemoval) string {
	same := rm.SameSheet
	if same == nil {
		same = func(a, b string) bool { return a == b }
	}
	last := rm.First + rm.Count - 1
	out, _ := rewrite(formula, func(a *area, orig string) (string, error) {
		target := a.sheet
		if target == "" {
			target = rm.Home
		}
		if !same(target, rm.Sheet) || !a.start.hasRow {
			return orig, nil
		}
		moved := func(r int) int {
			if r > last {
				return r - rm.Count
			}
			return r
		}
		deleted := func(r int) bool { return r >= rm.First && r <= last }

		if a.end == nil {
			if deleted(a.start.row) {
				return refError, nil
			}
			a.start.row = moved(a.start.row)
			return a.format(), nil
		}
		top, bottom := a.start.row, a.end.row
		if top > bottom {
			top, bottom = bottom, top
		}
		if deleted(top) && deleted(bottom) {
			return refError, nil
		}
		switch {
		case deleted(top):
			top = rm.First
		default:
			top = moved(top)
		}
		switch {
		case deleted(bottom):
			bottom = rm.First - 1
		default:
			bottom = moved(bottom)
		}
		end := *a.end
		if a.start.row <= a.end.row {
			a.start.row, end.row = top, bottom
		} else {
			a.start.row, end.row = bottom, top
		}
		a.end = &end
		return a.format(), nil
	})
	return out
}

// rewrite replaces each reference in formula with fn's result.
func rewrite(formula string, fn func(a *area, orig string) (string, error)) (string, error) {
	segs := scan(formula)
	var b strings.Builder
	b.Grow(len(formula))
	for _, seg := range segs {
		if seg.ref == nil {
			b.WriteString(seg.text)
			continue
		}
		s, err := fn(seg.ref, seg.text)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
