package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

// ErrSheetNotFound indicates a sheet name absent from the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrDuplicateSheet indicates a sheet name already used in the workbook.
var ErrDuplicateSheet = errors.New("duplicate sheet name")

// ErrInvalidSheetName indicates a name the file format does not accept.
var ErrInvalidSheetName = errors.New("invalid sheet name")

// Workbook is an ordered set of sheets sharing one format table.
type Workbook struct {
	// Path is the file the workbook was read from, empty for new workbooks.
	Path string
	// Styles is the workbook-wide cell format table.
	Styles *StyleTable

	sheets []*Sheet
	// names held by parts the model does not load, such as chartsheets
	reserved []string
	// structural changes: sheets added or removed
	changed bool
}

// NewWorkbook returns a workbook without sheets and with the default
// format table.
func NewWorkbook(path string) *Workbook {
	return &Workbook{Path: path, Styles: NewStyleTable()}
}

// Sheets returns the sheets in workbook order.
func (wb *Workbook) Sheets() []*Sheet {
	return append([]*Sheet(nil), wb.sheets...)
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		names[i] = s.name
	}
	return names
}

// Sheet looks a sheet up by name. Names match case-insensitively.
func (wb *Workbook) Sheet(name string) (*Sheet, error) {
	if s := wb.find(name); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// HasSheet reports whether a sheet with that name exists.
func (wb *Workbook) HasSheet(name string) bool { return wb.find(name) != nil }

// AddSheet appends a new empty sheet.
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	if err := ValidateSheetName(name); err != nil {
		return nil, err
	}
	if wb.find(name) != nil || wb.isReserved(name) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSheet, name)
	}
	s := NewSheet(name)
	wb.sheets = append(wb.sheets, s)
	wb.changed = true
	return s, nil
}

// InsertSheet appends a sheet built outside the workbook.
func (wb *Workbook) InsertSheet(s *Sheet) error {
	if err := ValidateSheetName(s.name); err != nil {
		return err
	}
	if err := wb.AppendSheet(s); err != nil {
		return err
	}
	wb.changed = true
	return nil
}

// AppendSheet appends a decoded sheet without marking the workbook changed.
func (wb *Workbook) AppendSheet(s *Sheet) error {
	if wb.find(s.name) != nil || wb.isReserved(s.name) {
		return fmt.Errorf("%w: %q", ErrDuplicateSheet, s.name)
	}
	wb.sheets = append(wb.sheets, s)
	return nil
}

// Reserve marks a name as taken by a sheet outside the model.
func (wb *Workbook) Reserve(name string) {
	wb.reserved = append(wb.reserved, name)
}

func (wb *Workbook) isReserved(name string) bool {
	for _, r := range wb.reserved {
		if SameSheetName(r, name) {
			return true
		}
	}
	return false
}

// EnsureSheet returns the named sheet, creating it when absent.
func (wb *Workbook) EnsureSheet(name string) (s *Sheet, created bool, err error) {
	if s := wb.find(name); s != nil {
		return s, false, nil
	}
	s, err = wb.AddSheet(name)
	return s, err == nil, err
}

// RemoveSheet removes a sheet.
func (wb *Workbook) RemoveSheet(name string) error {
	for i, s := range wb.sheets {
		if SameSheetName(s.name, name) {
			wb.sheets = append(wb.sheets[:i], wb.sheets[i+1:]...)
			wb.changed = true
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// Dirty reports whether anything changed since the last MarkClean.
func (wb *Workbook) Dirty() bool {
	if wb.changed || wb.Styles.Dirty() {
		return true
	}
	for _, s := range wb.sheets {
		if s.Dirty() {
			return true
		}
	}
	return false
}

// StructureChanged reports whether sheets were added or removed since the
// last MarkClean.
func (wb *Workbook) StructureChanged() bool { return wb.changed }

// MarkClean clears every dirty flag, typically after a successful save.
func (wb *Workbook) MarkClean() {
	wb.changed = false
	wb.Styles.MarkClean()
	for _, s := range wb.sheets {
		s.MarkClean()
	}
}

func (wb *Workbook) find(name string) *Sheet {
	for _, s := range wb.sheets {
		if SameSheetName(s.name, name) {
			return s
		}
	}
	return nil
}

// SameSheetName compares sheet names the way spreadsheet applications do,
// ignoring case.
func SameSheetName(a, b string) bool {
	if a == b {
		return true
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// ValidateSheetName checks length and forbidden characters.
func ValidateSheetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSheetName)
	}
	if utf8.RuneCountInString(name) > excelize.MaxSheetNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidSheetName, name, excelize.MaxSheetNameLength)
	}
	if strings.ContainsAny(name, `:\/?*[]`) {
		return fmt.Errorf("%w: %q contains one of : \\ / ? * [ ]", ErrInvalidSheetName, name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}
