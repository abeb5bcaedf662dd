package excelice

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/engine"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/registry"
)

// Slot names one of the workbooks a session works on.
type Slot int

const (
	// SlotDefault is the workbook of single-workbook operations.
	SlotDefault Slot = iota
	// SlotSource is the workbook copies read from.
	SlotSource
	// SlotDestination is the workbook copies write to.
	SlotDestination

	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotDefault:
		return "default"
	case SlotSource:
		return "source"
	case SlotDestination:
		return "destination"
	}
	return fmt.Sprintf("Slot(%d)", int(s))
}

// Session holds up to one open workbook per slot. Its methods are safe for
// concurrent use; operations on the same workbook run one at a time.
type Session struct {
	opts Options
	log  *zap.Logger
	reg  *registry.Registry
	eng  *engine.Engine

	mu    sync.Mutex
	slots [slotCount]registry.Handle
}

// NewSession returns a session with no open workbooks.
func NewSession(opts Options) *Session {
	log := opts.logger()
	return &Session{
		opts: opts,
		log:  log,
		reg:  registry.New(log.Named("registry")),
		eng:  engine.New(log.Named("engine")),
	}
}

// Open reads the workbook at path into slot, closing the workbook the slot
// held before. Default and destination slots start a new workbook when
// the file does not exist; the source slot requires it.
func (s *Session) Open(slot Slot, path string) error {
	if slot < 0 || slot >= slotCount {
		return opError("open", slot, "", fmt.Errorf("%w: unknown slot", ErrInvalidHandle))
	}
	mode := registry.MustExist
	if slot != SlotSource && s.opts.ShouldCreateMissing() {
		mode = registry.CreateIfMissing
	}
	h, err := s.reg.Open(path, mode)
	if err != nil {
		return opError("open", slot, "", err)
	}

	s.mu.Lock()
	old := s.slots[slot]
	s.slots[slot] = h
	s.mu.Unlock()
	if old != 0 {
		s.reg.Close(old)
	}
	return nil
}

// Save writes the workbook in slot to path.
func (s *Session) Save(slot Slot, path string) error {
	h, err := s.handle(slot)
	if err != nil {
		return opError("save", slot, "", err)
	}
	return opError("save", slot, "", s.reg.Save(h, path))
}

// Close releases the workbook in slot, discarding unsaved changes.
func (s *Session) Close(slot Slot) error {
	h, err := s.handle(slot)
	if err != nil {
		return opError("close", slot, "", err)
	}
	s.mu.Lock()
	if s.slots[slot] == h {
		s.slots[slot] = 0
	}
	s.mu.Unlock()
	return opError("close", slot, "", s.reg.Close(h))
}

// CloseAll releases every workbook of the session and returns how many
// were open.
func (s *Session) CloseAll() int {
	s.mu.Lock()
	s.slots = [slotCount]registry.Handle{}
	s.mu.Unlock()
	return s.reg.CloseAll()
}

func (s *Session) handle(slot Slot) (registry.Handle, error) {
	if slot < 0 || slot >= slotCount {
		return 0, fmt.Errorf("%w: unknown slot", ErrInvalidHandle)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := s.slots[slot]; h != 0 {
		return h, nil
	}
	return 0, fmt.Errorf("%w: no workbook open", ErrInvalidHandle)
}

func (s *Session) with(slot Slot, fn func(wb *models.Workbook) error) error {
	h, err := s.handle(slot)
	if err != nil {
		return err
	}
	return s.reg.With(h, fn)
}

func (s *Session) withPair(from, to Slot, fn func(src, dst *models.Workbook) error) error {
	src, err := s.handle(from)
	if err != nil {
		return err
	}
	dst, err := s.handle(to)
	if err != nil {
		return err
	}
	return s.reg.WithPair(src, dst, fn)
}

// Write stores a plain value at addr ("B7") of sheet, creating the sheet
// when absent. Numeric text becomes a number; anything else is kept as
// text, including a leading "=". The cell keeps its format.
func (s *Session) Write(slot Slot, sheet, addr, value string) error {
	row, col, err := address.Parse(addr)
	if err != nil {
		return opError("write cell", slot, sheet, err)
	}
	err = s.with(slot, func(wb *models.Workbook) error {
		sh, created, err := wb.EnsureSheet(sheet)
		if err != nil {
			return err
		}
		if created {
			s.log.Debug("sheet created on write", zap.String("sheet", sheet))
		}
		c := sh.Cell(row, col)
		c.Value = models.ParseValue(value)
		c.Formula, c.ArrayRef, c.Table = "", "", nil
		sh.SetCell(row, col, c)
		return nil
	})
	return opError("write cell", slot, sheet, err)
}

// CopyRequest describes a range copy between two slots. Rows and columns
// are 1-based and the source rectangle includes both ends.
type CopyRequest struct {
	From, To           Slot
	SrcSheet, DstSheet string
	StartRow, EndRow   int
	StartCol, EndCol   int
	// DstRow and DstCol are the top-left cell of the destination.
	DstRow, DstCol int
	// IncludeFormulas copies formulas rebased to their new position;
	// otherwise formula cells arrive as their last computed value.
	IncludeFormulas bool
}

// Copy copies a rectangle of cells. The destination sheet is created when
// absent. On failure the destination is left as it was.
func (s *Session) Copy(req CopyRequest) error {
	rr := engine.RangeRequest{
		SrcSheet:        req.SrcSheet,
		DstSheet:        req.DstSheet,
		StartRow:        req.StartRow - 1,
		EndRow:          req.EndRow - 1,
		StartCol:        req.StartCol - 1,
		EndCol:          req.EndCol - 1,
		DstRow:          req.DstRow - 1,
		DstCol:          req.DstCol - 1,
		IncludeFormulas: req.IncludeFormulas,
		Layout:          s.opts.ShouldCopyLayout(),
	}
	err := s.withPair(req.From, req.To, func(src, dst *models.Workbook) error {
		return s.eng.CopyRange(src, dst, rr)
	})
	return opError("copy range", req.To, req.DstSheet, err)
}

// CloneSheet copies the sheet srcSheet of from into a new sheet dstSheet
// of to. An existing dstSheet is an error.
func (s *Session) CloneSheet(from, to Slot, srcSheet, dstSheet string, includeFormulas bool) error {
	err := s.withPair(from, to, func(src, dst *models.Workbook) error {
		return s.eng.CloneSheet(src, dst, srcSheet, dstSheet, includeFormulas)
	})
	return opError("copy sheet", to, dstSheet, err)
}

// Sheets returns the sheet names of the workbook in slot, in order.
func (s *Session) Sheets(slot Slot) ([]string, error) {
	var names []string
	err := s.with(slot, func(wb *models.Workbook) error {
		names = wb.SheetNames()
		return nil
	})
	return names, opError("list sheets", slot, "", err)
}

// RemoveRows deletes the given 1-based rows of sheet. Rows below move up
// and formulas follow them.
func (s *Session) RemoveRows(slot Slot, sheet string, rows ...int) error {
	uniq := make(map[int]bool, len(rows))
	for _, r := range rows {
		if r < 1 || r > address.MaxRows {
			return opError("remove rows", slot, sheet, fmt.Errorf("%w: row %d", ErrInvalidAddress, r))
		}
		uniq[r] = true
	}
	sorted := make([]int, 0, len(uniq))
	for r := range uniq {
		sorted = append(sorted, r)
	}
	// bottom first, so earlier removals do not move later ones
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	err := s.with(slot, func(wb *models.Workbook) error {
		if !wb.HasSheet(sheet) {
			return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
		}
		for _, r := range sorted {
			if err := s.eng.RemoveRows(wb, sheet, r-1, 1); err != nil {
				return err
			}
		}
		return nil
	})
	return opError("remove rows", slot, sheet, err)
}

// Unmerge removes the merged regions overlapping the range from start to
// end ("A1", "C3") of sheet.
func (s *Session) Unmerge(slot Slot, sheet, start, end string) error {
	r, err := address.ParseRange(start + ":" + end)
	if err != nil {
		return opError("unmerge", slot, sheet, err)
	}
	err = s.with(slot, func(wb *models.Workbook) error {
		sh, err := wb.Sheet(sheet)
		if err != nil {
			return err
		}
		sh.Unmerge(r)
		return nil
	})
	return opError("unmerge", slot, sheet, err)
}
