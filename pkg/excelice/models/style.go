package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// FirstCustomNumFmt is the lowest id available to custom number formats;
// lower ids are built in.
const FirstCustomNumFmt = 164

// NumFmt is a custom number format.
type NumFmt struct {
	// ID is the format id referenced by cell formats.
	ID int
	// Code is the format code, e.g. "0.00%".
	Code string
}

// Xf is one entry of the cell format table.
type Xf struct {
	// NumFmtID references a built-in or custom number format.
	NumFmtID int
	// FontID indexes StyleTable.Fonts.
	FontID int
	// FillID indexes StyleTable.Fills.
	FillID int
	// BorderID indexes StyleTable.Borders.
	BorderID int
	// XfID references the named cell style the format derives from.
	XfID int
	// Attrs holds the remaining attributes (applyFont, quotePrefix, ...).
	Attrs []Attr
	// Inner is the raw XML of the children (alignment, protection).
	Inner string
}

// StyleTable is the part of a workbook's stylesheet that cell formats
// resolve through. Fonts, fills and borders are kept as raw XML elements.
type StyleTable struct {
	// NumFmts holds the custom number formats in document order.
	NumFmts []NumFmt
	// Fonts holds raw <font> elements.
	Fonts []string
	// Fills holds raw <fill> elements.
	Fills []string
	// Borders holds raw <border> elements.
	Borders []string
	// CellXfs is the cell format table StyleRef indexes.
	CellXfs []Xf

	dirty bool `copy:",required"`
}

// NewStyleTable returns the format table of a new workbook.
func NewStyleTable() *StyleTable {
	return &StyleTable{
		Fonts: []string{`<font><sz val="11"/><color theme="1"/><name val="Calibri"/><family val="2"/><scheme val="minor"/></font>`},
		Fills: []string{
			`<fill><patternFill patternType="none"/></fill>`,
			`<fill><patternFill patternType="gray125"/></fill>`,
		},
		Borders: []string{`<border><left/><right/><top/><bottom/><diagonal/></border>`},
		CellXfs: []Xf{{}},
	}
}

// Len returns the number of cell formats.
func (t *StyleTable) Len() int { return len(t.CellXfs) }

// Xf returns the cell format for ref, or the default format when ref is
// out of range.
func (t *StyleTable) Xf(ref StyleRef) Xf {
	if int(ref) < 0 || int(ref) >= len(t.CellXfs) {
		return Xf{}
	}
	return t.CellXfs[ref]
}

// NumFmtCode returns the code of a custom number format.
func (t *StyleTable) NumFmtCode(id int) (string, bool) {
	for _, nf := range t.NumFmts {
		if nf.ID == id {
			return nf.Code, true
		}
	}
	return "", false
}

// Add appends a cell format and returns its reference.
func (t *StyleTable) Add(xf Xf) StyleRef {
	t.CellXfs = append(t.CellXfs, xf)
	t.dirty = true
	return StyleRef(len(t.CellXfs) - 1)
}

// Dirty reports whether the table changed since the last MarkClean.
func (t *StyleTable) Dirty() bool { return t.dirty }

// MarkClean clears the dirty flag.
func (t *StyleTable) MarkClean() { t.dirty = false }

// Snapshot returns a deep copy of the table.
func (t *StyleTable) Snapshot() (*StyleTable, error) {
	out := &StyleTable{}
	if err := deepcopy.Copy(out, t); err != nil {
		return nil, fmt.Errorf("snapshot style table: %w", err)
	}
	return out, nil
}

// Restore replaces the table content with a snapshot.
func (t *StyleTable) Restore(snap *StyleTable) { *t = *snap }

// signature is the resolved definition of a format: equal signatures look
// the same in any workbook.
func (t *StyleTable) signature(ref StyleRef) string {
	xf := t.Xf(ref)
	var b strings.Builder
	if code, ok := t.NumFmtCode(xf.NumFmtID); ok && xf.NumFmtID >= FirstCustomNumFmt {
		b.WriteString("fmt:" + code)
	} else {
		b.WriteString("builtin:" + strconv.Itoa(xf.NumFmtID))
	}
	b.WriteString("\x00" + element(t.Fonts, xf.FontID))
	b.WriteString("\x00" + element(t.Fills, xf.FillID))
	b.WriteString("\x00" + element(t.Borders, xf.BorderID))
	for _, a := range xf.Attrs {
		b.WriteString("\x00" + a.Name + "=" + a.Value)
	}
	b.WriteString("\x00" + xf.Inner)
	return b.String()
}

func element(list []string, i int) string {
	if i < 0 || i >= len(list) {
		return ""
	}
	return list[i]
}

// StyleImporter copies cell formats from one workbook's table into
// another's. A format equivalent to one already present in the destination
// is reused; otherwise its number format, font, fill and border are found
// or appended and a new format is allocated. Results are memoized, so one
// importer should serve a whole copy operation.
type StyleImporter struct {
	dst, src *StyleTable
	memo     map[StyleRef]StyleRef
	index    map[string]StyleRef
}

// NewStyleImporter returns an importer from src into dst.
func NewStyleImporter(dst, src *StyleTable) *StyleImporter {
	return &StyleImporter{dst: dst, src: src, memo: make(map[StyleRef]StyleRef)}
}

// Import returns the destination reference for a source reference.
func (im *StyleImporter) Import(ref StyleRef) StyleRef {
	if im.dst == im.src {
		return ref
	}
	if ref == 0 {
		return 0
	}
	if out, ok := im.memo[ref]; ok {
		return out
	}
	sig := im.src.signature(ref)
	if im.index == nil {
		im.index = make(map[string]StyleRef, len(im.dst.CellXfs))
		for i := len(im.dst.CellXfs) - 1; i >= 0; i-- {
			im.index[im.dst.signature(StyleRef(i))] = StyleRef(i)
		}
	}
	if out, ok := im.index[sig]; ok {
		im.memo[ref] = out
		return out
	}

	xf := im.src.Xf(ref)
	out := Xf{
		NumFmtID: im.importNumFmt(xf.NumFmtID),
		FontID:   findOrAppend(&im.dst.Fonts, element(im.src.Fonts, xf.FontID)),
		FillID:   findOrAppend(&im.dst.Fills, element(im.src.Fills, xf.FillID)),
		BorderID: findOrAppend(&im.dst.Borders, element(im.src.Borders, xf.BorderID)),
		Attrs:    append([]Attr(nil), xf.Attrs...),
		Inner:    xf.Inner,
	}
	newRef := im.dst.Add(out)
	im.index[sig] = newRef
	im.memo[ref] = newRef
	return newRef
}

func (im *StyleImporter) importNumFmt(id int) int {
	code, ok := im.src.NumFmtCode(id)
	if !ok || id < FirstCustomNumFmt {
		return id
	}
	next := FirstCustomNumFmt
	for _, nf := range im.dst.NumFmts {
		if nf.Code == code {
			return nf.ID
		}
		if nf.ID >= next {
			next = nf.ID + 1
		}
	}
	im.dst.NumFmts = append(im.dst.NumFmts, NumFmt{ID: next, Code: code})
	im.dst.dirty = true
	return next
}

func findOrAppend(list *[]string, raw string) int {
	if raw == "" {
		return 0
	}
	for i, s := range *list {
		if s == raw {
			return i
		}
	}
	*list = append(*list, raw)
	return len(*list) - 1
}
