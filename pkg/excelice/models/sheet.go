package models

import (
	"fmt"
	"sort"

	"github.com/tiendc/go-deepcopy"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// Attr is an XML attribute kept verbatim, with its qualified name.
type Attr struct {
	Name  string
	Value string
}

// Column holds the layout of one sheet column.
type Column struct {
	// Width is the column width in characters; zero means default width.
	Width float64
	// CustomWidth marks a width set explicitly by the user.
	CustomWidth bool
	// Hidden marks a hidden column.
	Hidden bool
	// Style is the default format of empty cells in the column.
	Style StyleRef
	// Extra holds the remaining attributes (bestFit, outlineLevel, ...).
	Extra []Attr
}

// Row holds the layout of one sheet row.
type Row struct {
	// Height is the row height in points; zero means default height.
	Height float64
	// CustomHeight marks a height set explicitly by the user.
	CustomHeight bool
	// Hidden marks a hidden row.
	Hidden bool
	// Style is the row format, applied when CustomFormat is set.
	Style StyleRef
	// CustomFormat marks a row with its own format.
	CustomFormat bool
	// Extra holds the remaining attributes (outlineLevel, x14ac:dyDescent, ...).
	Extra []Attr
}

// Sheet is one worksheet: cells plus the layout the engine manages.
type Sheet struct {
	name   string          `copy:",required"`
	cells  *CellStore      `copy:",required"`
	cols   map[int]Column  `copy:",required"`
	rows   map[int]Row     `copy:",required"`
	merges []address.Range `copy:",required"`
	dirty  bool            `copy:",required"`
}

// NewSheet returns an empty sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{
		name:  name,
		cells: NewCellStore(),
		cols:  make(map[int]Column),
		rows:  make(map[int]Row),
	}
}

// Name returns the sheet name.
func (s *Sheet) Name() string { return s.name }

// Cells returns the sheet's cell store.
func (s *Sheet) Cells() *CellStore { return s.cells }

// Cell returns the cell at (row, col).
func (s *Sheet) Cell(row, col int) Cell { return s.cells.Get(row, col) }

// SetCell stores c at (row, col).
func (s *Sheet) SetCell(row, col int, c Cell) { s.cells.Set(row, col, c) }

// Column returns the layout of a column.
func (s *Sheet) Column(col int) (Column, bool) {
	c, ok := s.cols[col]
	return c, ok
}

// SetColumn sets the layout of a column.
func (s *Sheet) SetColumn(col int, c Column) {
	s.cols[col] = c
	s.dirty = true
}

// ColumnIndexes returns the columns with layout, ascending.
func (s *Sheet) ColumnIndexes() []int { return sortedKeys(s.cols) }

// Row returns the layout of a row.
func (s *Sheet) Row(row int) (Row, bool) {
	r, ok := s.rows[row]
	return r, ok
}

// SetRow sets the layout of a row.
func (s *Sheet) SetRow(row int, r Row) {
	s.rows[row] = r
	s.dirty = true
}

// RowIndexes returns the rows with layout, ascending.
func (s *Sheet) RowIndexes() []int { return sortedKeys(s.rows) }

// Merges returns the merged ranges.
func (s *Sheet) Merges() []address.Range {
	return append([]address.Range(nil), s.merges...)
}

// AddMerge merges r, dropping existing merges that overlap it.
func (s *Sheet) AddMerge(r address.Range) {
	kept := s.merges[:0]
	for _, m := range s.merges {
		if !overlaps(m, r) {
			kept = append(kept, m)
		}
	}
	s.merges = append(kept, r)
	s.dirty = true
}

// UnmergeWithin drops merges lying entirely inside r.
func (s *Sheet) UnmergeWithin(r address.Range) {
	kept := s.merges[:0]
	for _, m := range s.merges {
		if r.ContainsRange(m) {
			s.dirty = true
			continue
		}
		kept = append(kept, m)
	}
	s.merges = kept
}

// Unmerge drops merges overlapping r and returns how many were dropped.
func (s *Sheet) Unmerge(r address.Range) int {
	kept := s.merges[:0]
	n := 0
	for _, m := range s.merges {
		if overlaps(m, r) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.merges = kept
	if n > 0 {
		s.dirty = true
	}
	return n
}

// Dimension returns the range covering every stored cell, "A1" for an
// empty sheet.
func (s *Sheet) Dimension() address.Range {
	b, ok := s.cells.Bounds()
	if !ok {
		return address.Range{}
	}
	return b
}

// RemoveRows deletes count rows starting at first and moves the rows below
// up. Merged ranges straddling the block shrink; merges left with a single
// cell are dropped.
func (s *Sheet) RemoveRows(first, count int) error {
	if first < 0 || count <= 0 || first+count > address.MaxRows {
		return fmt.Errorf("%w: rows %d..%d", address.ErrInvalidAddress, first, first+count-1)
	}
	last := first + count - 1

	entries := s.cells.Entries()
	for _, e := range entries {
		if e.Row >= first {
			s.cells.Delete(e.Row, e.Col)
		}
	}
	for _, e := range entries {
		if e.Row > last {
			s.cells.Set(e.Row-count, e.Col, e.Cell)
		}
	}

	rows := make(map[int]Row, len(s.rows))
	for r, info := range s.rows {
		switch {
		case r < first:
			rows[r] = info
		case r > last:
			rows[r-count] = info
		}
	}
	s.rows = rows

	kept := s.merges[:0]
	for _, m := range s.merges {
		top, bottom := m.StartRow, m.EndRow
		if top >= first && bottom <= last {
			continue
		}
		if top > last {
			top -= count
		} else if top >= first {
			top = first
		}
		if bottom > last {
			bottom -= count
		} else if bottom >= first {
			bottom = first - 1
		}
		m.StartRow, m.EndRow = top, bottom
		if m.Rows() == 1 && m.Cols() == 1 {
			continue
		}
		kept = append(kept, m)
	}
	s.merges = kept
	s.dirty = true
	return nil
}

// Dirty reports whether cells or layout changed since the last MarkClean.
func (s *Sheet) Dirty() bool { return s.dirty || s.cells.Dirty() }

// MarkClean clears the dirty flags.
func (s *Sheet) MarkClean() {
	s.dirty = false
	s.cells.MarkClean()
}

// Snapshot returns a deep copy of the sheet for Restore.
func (s *Sheet) Snapshot() (*Sheet, error) {
	out := &Sheet{}
	if err := deepcopy.Copy(out, s); err != nil {
		return nil, fmt.Errorf("snapshot sheet %q: %w", s.name, err)
	}
	return out, nil
}

// Restore replaces the sheet content with a snapshot taken earlier. The
// sheet keeps its identity.
func (s *Sheet) Restore(snap *Sheet) {
	*s = *snap
}

func overlaps(a, b address.Range) bool {
	return a.StartRow <= b.EndRow && b.StartRow <= a.EndRow &&
		a.StartCol <= b.EndCol && b.StartCol <= a.EndCol
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
