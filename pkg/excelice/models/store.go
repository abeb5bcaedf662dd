package models

import (
	"sort"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// CellStore is sparse cell storage for one sheet. Only cells that differ
// from the empty unstyled default are kept, so memory follows the number
// of populated cells whatever their coordinates.
type CellStore struct {
	cells  map[Coord]Cell `copy:",required"`
	bounds address.Range  `copy:",required"`
	// stale is set when a cell on the bounding box edge was removed.
	stale bool `copy:",required"`
	dirty bool `copy:",required"`
}

// NewCellStore returns an empty store.
func NewCellStore() *CellStore {
	return &CellStore{cells: make(map[Coord]Cell)}
}

// Get returns the cell at (row, col), or the default cell if none is stored.
func (s *CellStore) Get(row, col int) Cell {
	return s.cells[Coord{row, col}]
}

// Has reports whether a cell is stored at (row, col).
func (s *CellStore) Has(row, col int) bool {
	_, ok := s.cells[Coord{row, col}]
	return ok
}

// Set stores c at (row, col). Storing the default cell removes the entry.
func (s *CellStore) Set(row, col int, c Cell) {
	s.dirty = true
	if c.IsDefault() {
		s.remove(Coord{row, col})
		return
	}
	k := Coord{row, col}
	if len(s.cells) == 0 {
		s.bounds = address.Range{StartRow: row, StartCol: col, EndRow: row, EndCol: col}
		s.stale = false
	} else if !s.stale {
		s.bounds.StartRow = min(s.bounds.StartRow, row)
		s.bounds.StartCol = min(s.bounds.StartCol, col)
		s.bounds.EndRow = max(s.bounds.EndRow, row)
		s.bounds.EndCol = max(s.bounds.EndCol, col)
	}
	s.cells[k] = c
}

// Delete removes the cell at (row, col).
func (s *CellStore) Delete(row, col int) {
	if _, ok := s.cells[Coord{row, col}]; ok {
		s.dirty = true
		s.remove(Coord{row, col})
	}
}

func (s *CellStore) remove(k Coord) {
	if _, ok := s.cells[k]; !ok {
		return
	}
	delete(s.cells, k)
	b := s.bounds
	if k.Row == b.StartRow || k.Row == b.EndRow || k.Col == b.StartCol || k.Col == b.EndCol {
		s.stale = true
	}
}

// Len returns the number of stored cells.
func (s *CellStore) Len() int { return len(s.cells) }

// Bounds returns the smallest range covering every stored cell. ok is false
// for an empty store.
func (s *CellStore) Bounds() (r address.Range, ok bool) {
	if len(s.cells) == 0 {
		return address.Range{}, false
	}
	if s.stale {
		first := true
		for k := range s.cells {
			if first {
				s.bounds = address.Range{StartRow: k.Row, StartCol: k.Col, EndRow: k.Row, EndCol: k.Col}
				first = false
				continue
			}
			s.bounds.StartRow = min(s.bounds.StartRow, k.Row)
			s.bounds.StartCol = min(s.bounds.StartCol, k.Col)
			s.bounds.EndRow = max(s.bounds.EndRow, k.Row)
			s.bounds.EndCol = max(s.bounds.EndCol, k.Col)
		}
		s.stale = false
	}
	return s.bounds, true
}

// Entries returns every stored cell in row-major order.
func (s *CellStore) Entries() []Entry {
	out := make([]Entry, 0, len(s.cells))
	for k, c := range s.cells {
		out = append(out, Entry{Coord: k, Cell: c})
	}
	sortEntries(out)
	return out
}

// Within returns the stored cells inside r in row-major order.
func (s *CellStore) Within(r address.Range) []Entry {
	var out []Entry
	if area := int64(r.Rows()) * int64(r.Cols()); area <= int64(len(s.cells)) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartCol; col <= r.EndCol; col++ {
				if c, ok := s.cells[Coord{row, col}]; ok {
					out = append(out, Entry{Coord: Coord{row, col}, Cell: c})
				}
			}
		}
		return out
	}
	for k, c := range s.cells {
		if r.Contains(k.Row, k.Col) {
			out = append(out, Entry{Coord: k, Cell: c})
		}
	}
	sortEntries(out)
	return out
}

// Dirty reports whether the store changed since the last MarkClean.
func (s *CellStore) Dirty() bool { return s.dirty }

// MarkClean clears the dirty flag.
func (s *CellStore) MarkClean() { s.dirty = false }

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Row != es[j].Row {
			return es[i].Row < es[j].Row
		}
		return es[i].Col < es[j].Col
	})
}
