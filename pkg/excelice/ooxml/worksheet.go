package ooxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/formula"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

var worksheetOrder = []string{
	"sheetPr", "dimension", "sheetViews", "sheetFormatPr", "cols", "sheetData",
	"sheetCalcPr", "sheetProtection", "protectedRanges", "scenarios",
	"autoFilter", "sortState", "dataConsolidate", "customSheetViews",
	"mergeCells", "phoneticPr", "conditionalFormatting", "dataValidations",
	"hyperlinks", "printOptions", "pageMargins", "pageSetup", "headerFooter",
	"rowBreaks", "colBreaks", "customProperties", "cellWatches",
	"ignoredErrors", "smartTags", "drawing", "legacyDrawing",
	"legacyDrawingHF", "drawingHF", "picture", "oleObjects", "controls",
	"webPublishItems", "tableParts", "extLst",
}

const worksheetTemplate = xmlHeader + `<worksheet xmlns="` + nsMain + `" xmlns:r="` + nsRelationships + `">` +
	`<dimension ref="A1"/><sheetViews><sheetView workbookViewId="0"/></sheetViews>` +
	`<sheetFormatPr defaultRowHeight="15"/><sheetData/>` +
	`<pageMargins left="0.7" right="0.7" top="0.75" bottom="0.75" header="0.3" footer="0.3"/>` +
	`</worksheet>`

// sharedFormula is the master cell of a shared formula group.
type sharedFormula struct {
	text     string
	row, col int
}

// sheetReader decodes one worksheet part into a sheet.
type sheetReader struct {
	sheet  *models.Sheet
	sst    *sharedStrings
	shared map[string]sharedFormula
}

func decodeWorksheet(data []byte, name string, sst *sharedStrings) (*models.Sheet, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	r := &sheetReader{sheet: models.NewSheet(name), sst: sst, shared: make(map[string]sharedFormula)}
	for _, c := range doc.children {
		switch c.local() {
		case "cols":
			err = r.readCols(doc, c)
		case "sheetData":
			err = r.readSheetData(doc.data[c.innerStart:c.innerEnd])
		case "mergeCells":
			err = r.readMerges(doc, c)
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	r.sheet.MarkClean()
	return r.sheet, nil
}

func (r *sheetReader) readCols(doc *document, cols element) error {
	items, err := doc.childrenOf(cols)
	if err != nil {
		return err
	}
	for _, e := range items {
		var (
			info   models.Column
			lo, hi int
		)
		for _, a := range e.attrs {
			if a.Name.Space != "" {
				info.Extra = append(info.Extra, models.Attr{Name: qname(a.Name), Value: a.Value})
				continue
			}
			switch a.Name.Local {
			case "min":
				lo, err = strconv.Atoi(a.Value)
			case "max":
				hi, err = strconv.Atoi(a.Value)
			case "width":
				info.Width, err = strconv.ParseFloat(a.Value, 64)
			case "customWidth":
				info.CustomWidth = isTrue(a.Value)
			case "hidden":
				info.Hidden = isTrue(a.Value)
			case "style":
				var s int
				s, err = strconv.Atoi(a.Value)
				info.Style = models.StyleRef(s)
			default:
				info.Extra = append(info.Extra, models.Attr{Name: a.Name.Local, Value: a.Value})
			}
			if err != nil {
				return fmt.Errorf("%w: col %s=%q", ErrCorrupt, a.Name.Local, a.Value)
			}
		}
		if lo < 1 || hi < lo || hi > address.MaxCols {
			return fmt.Errorf("%w: col range %d..%d", ErrCorrupt, lo, hi)
		}
		for c := lo; c <= hi; c++ {
			r.sheet.SetColumn(c-1, info)
		}
	}
	return nil
}

func (r *sheetReader) readMerges(doc *document, merges element) error {
	items, err := doc.childrenOf(merges)
	if err != nil {
		return err
	}
	for _, e := range items {
		ref, _ := e.attr("ref")
		rng, err := address.ParseRange(ref)
		if err != nil {
			return fmt.Errorf("%w: merge %q", ErrCorrupt, ref)
		}
		r.sheet.AddMerge(rng)
	}
	return nil
}

// cellState accumulates one <c> element while streaming sheetData.
type cellState struct {
	row, col  int
	style     int
	typ       string
	value     strings.Builder
	formula   strings.Builder
	fType     string
	fRef      string
	fShared   string
	fAttrs    []models.Attr
	hasF      bool
	hasV      bool
	inline    string
	inlineAt  int
	collectTo *strings.Builder
}

func (r *sheetReader) readSheetData(data []byte) error {
	dec := newDecoder(bytes.NewReader(data))
	var (
		row  = -1
		col  = -1
		cell *cellState
	)
	for {
		pos := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				next, err := r.readRow(t, row+1)
				if err != nil {
					return err
				}
				row, col = next, -1
			case "c":
				if cell != nil {
					return fmt.Errorf("%w: nested cell", ErrCorrupt)
				}
				cell = &cellState{row: row, col: col + 1}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "r":
						rr, cc, err := address.Parse(a.Value)
						if err != nil {
							return fmt.Errorf("%w: cell reference %q", ErrCorrupt, a.Value)
						}
						cell.row, cell.col = rr, cc
					case "s":
						if cell.style, err = strconv.Atoi(a.Value); err != nil {
							return fmt.Errorf("%w: cell style %q", ErrCorrupt, a.Value)
						}
					case "t":
						cell.typ = a.Value
					}
				}
				if cell.row < 0 {
					cell.row = 0
				}
			case "f":
				if cell == nil {
					continue
				}
				cell.hasF = true
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "t":
						cell.fType = a.Value
					case "ref":
						cell.fRef = a.Value
					case "si":
						cell.fShared = a.Value
					default:
						cell.fAttrs = append(cell.fAttrs, models.Attr{Name: qname(a.Name), Value: a.Value})
					}
				}
				cell.collectTo = &cell.formula
			case "v":
				if cell != nil {
					cell.hasV = true
					cell.collectTo = &cell.value
				}
			case "is":
				if cell != nil {
					cell.inlineAt = pos
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "f", "v":
				if cell != nil {
					cell.collectTo = nil
				}
			case "is":
				if cell != nil {
					cell.inline = itemText(string(data[cell.inlineAt:dec.InputOffset()]))
				}
			case "c":
				if cell == nil {
					continue
				}
				if err := r.storeCell(cell); err != nil {
					return err
				}
				row, col = cell.row, cell.col
				cell = nil
			}
		case xml.CharData:
			if cell != nil && cell.collectTo != nil {
				cell.collectTo.Write(t)
			}
		}
	}
}

// readRow records the layout of a <row> and returns its zero-based index.
func (r *sheetReader) readRow(t xml.StartElement, next int) (int, error) {
	var (
		info   models.Row
		layout bool
		err    error
	)
	for _, a := range t.Attr {
		if a.Name.Space != "" {
			info.Extra = append(info.Extra, models.Attr{Name: qname(a.Name), Value: a.Value})
			continue
		}
		switch a.Name.Local {
		case "r":
			var n int
			n, err = strconv.Atoi(a.Value)
			if err == nil && (n < 1 || n > address.MaxRows) {
				err = address.ErrInvalidAddress
			}
			next = n - 1
		case "spans":
			// recomputed by readers
		case "ht":
			info.Height, err = strconv.ParseFloat(a.Value, 64)
			layout = true
		case "customHeight":
			info.CustomHeight = isTrue(a.Value)
			layout = true
		case "hidden":
			info.Hidden = isTrue(a.Value)
			layout = true
		case "s":
			var s int
			s, err = strconv.Atoi(a.Value)
			info.Style = models.StyleRef(s)
			layout = true
		case "customFormat":
			info.CustomFormat = isTrue(a.Value)
			layout = true
		default:
			info.Extra = append(info.Extra, models.Attr{Name: a.Name.Local, Value: a.Value})
		}
		if err != nil {
			return 0, fmt.Errorf("%w: row %s=%q", ErrCorrupt, a.Name.Local, a.Value)
		}
	}
	if layout {
		r.sheet.SetRow(next, info)
	}
	return next, nil
}

func (r *sheetReader) storeCell(cs *cellState) error {
	if !address.InBounds(cs.row, cs.col) {
		return fmt.Errorf("%w: cell (%d,%d)", ErrCorrupt, cs.row, cs.col)
	}
	c := models.Cell{Style: models.StyleRef(cs.style)}
	raw := cs.value.String()

	switch cs.typ {
	case "s":
		if cs.hasV {
			i, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: shared string index %q", ErrCorrupt, raw)
			}
			s, err := r.sst.get(i)
			if err != nil {
				return err
			}
			c.Value = models.String(s)
		}
	case "inlineStr":
		c.Value = models.String(cs.inline)
	case "str":
		if cs.hasV {
			c.Value = models.String(raw)
		}
	case "d":
		if cs.hasV {
			c.Value = models.Date(strings.TrimSpace(raw))
		}
	case "b":
		if cs.hasV {
			c.Value = models.Bool(strings.TrimSpace(raw) == "1" || strings.EqualFold(raw, "true"))
		}
	case "e":
		if cs.hasV {
			c.Value = models.Error(raw)
		}
	default:
		if cs.hasV && raw != "" {
			v, err := models.NumberText(raw)
			if err != nil {
				v = models.String(raw)
			}
			c.Value = v
		}
	}

	if cs.hasF {
		text := cs.formula.String()
		switch cs.fType {
		case "shared":
			if text != "" {
				r.shared[cs.fShared] = sharedFormula{text: text, row: cs.row, col: cs.col}
				break
			}
			m, ok := r.shared[cs.fShared]
			if !ok {
				return fmt.Errorf("%w: cell %s refers to undefined shared formula %q",
					ErrCorrupt, address.MustFormat(cs.row, cs.col), cs.fShared)
			}
			shifted, err := formula.Rebase(m.text, cs.row-m.row, cs.col-m.col)
			if err != nil {
				return fmt.Errorf("%w: shared formula at %s: %v", ErrCorrupt, address.MustFormat(cs.row, cs.col), err)
			}
			text = shifted
		case "array":
			c.ArrayRef = cs.fRef
		case "dataTable":
			c.Table = &models.DataTable{Ref: cs.fRef, Attrs: cs.fAttrs}
			text = ""
		}
		c.Formula = text
	}
	if !c.IsDefault() {
		r.sheet.SetCell(cs.row, cs.col, c)
	}
	return nil
}

func isTrue(v string) bool { return v == "1" || v == "true" }

// encodeWorksheet writes the cells and layout of s into its part. orig is
// the part as read, or nil for a new sheet.
func encodeWorksheet(orig []byte, s *models.Sheet, sst *sharedStrings) ([]byte, error) {
	if orig == nil {
		orig = []byte(worksheetTemplate)
	}
	doc, err := parseDocument(orig)
	if err != nil {
		return nil, err
	}
	w := sheetWriter{p: doc.root.prefix(), sst: sst, declared: make(map[string]bool)}
	for _, a := range doc.root.attrs {
		if a.Name.Space == "xmlns" {
			w.declared[a.Name.Local] = true
		}
	}
	repl := map[string][]byte{
		"dimension":  w.dimension(doc, s),
		"cols":       w.cols(s),
		"sheetData":  w.sheetData(s),
		"mergeCells": w.mergeCells(s),
	}
	return doc.splice(worksheetOrder, repl), nil
}

type sheetWriter struct {
	p   string
	sst *sharedStrings
	// namespace prefixes declared on the root element
	declared map[string]bool
}

// extra writes layout attributes, skipping prefixed ones whose namespace
// the part does not declare, as happens for layout copied between books.
func (w sheetWriter) extra(b *strings.Builder, attrs []models.Attr) {
	for _, a := range attrs {
		if i := strings.IndexByte(a.Name, ':'); i >= 0 && !w.declared[a.Name[:i]] {
			continue
		}
		b.WriteString(" " + a.Name + `="` + escapeAttr(a.Value) + `"`)
	}
}

func (w sheetWriter) dimension(doc *document, s *models.Sheet) []byte {
	var attrs []xml.Attr
	if d, ok := doc.child("dimension"); ok {
		attrs = d.attrs
	}
	return []byte(startTag(w.p+"dimension", setAttr(attrs, "ref", s.Dimension().String()), true))
}

func (w sheetWriter) cols(s *models.Sheet) []byte {
	idx := s.ColumnIndexes()
	if len(idx) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("<" + w.p + "cols>")
	for i := 0; i < len(idx); {
		first, _ := s.Column(idx[i])
		j := i + 1
		for j < len(idx) && idx[j] == idx[j-1]+1 {
			next, _ := s.Column(idx[j])
			if !sameColumn(first, next) {
				break
			}
			j++
		}
		b.WriteString("<" + w.p + `col min="` + strconv.Itoa(idx[i]+1) + `" max="` + strconv.Itoa(idx[j-1]+1) + `"`)
		if first.Width > 0 {
			b.WriteString(` width="` + formatFloat(first.Width) + `"`)
		}
		if first.Style != 0 {
			b.WriteString(` style="` + strconv.Itoa(int(first.Style)) + `"`)
		}
		if first.Hidden {
			b.WriteString(` hidden="1"`)
		}
		if first.CustomWidth {
			b.WriteString(` customWidth="1"`)
		}
		w.extra(&b, first.Extra)
		b.WriteString("/>")
		i = j
	}
	b.WriteString("</" + w.p + "cols>")
	return []byte(b.String())
}

func sameColumn(a, b models.Column) bool {
	if a.Width != b.Width || a.CustomWidth != b.CustomWidth || a.Hidden != b.Hidden ||
		a.Style != b.Style || len(a.Extra) != len(b.Extra) {
		return false
	}
	for i := range a.Extra {
		if a.Extra[i] != b.Extra[i] {
			return false
		}
	}
	return true
}

func (w sheetWriter) sheetData(s *models.Sheet) []byte {
	entries := s.Cells().Entries()
	rows := s.RowIndexes()
	if len(entries) == 0 && len(rows) == 0 {
		return []byte("<" + w.p + "sheetData/>")
	}
	var b strings.Builder
	b.WriteString("<" + w.p + "sheetData>")
	ri := 0
	for i := 0; i < len(entries) || ri < len(rows); {
		// next row to write: the lower of the next cell row and the next
		// layout-only row
		row := -1
		if i < len(entries) {
			row = entries[i].Row
		}
		if ri < len(rows) && (row < 0 || rows[ri] < row) {
			row = rows[ri]
		}
		if ri < len(rows) && rows[ri] == row {
			ri++
		}
		j := i
		for j < len(entries) && entries[j].Row == row {
			j++
		}
		info, _ := s.Row(row)
		w.rowStart(&b, row, info)
		if j == i {
			b.WriteString("/>")
			continue
		}
		b.WriteString(">")
		for ; i < j; i++ {
			w.cell(&b, entries[i])
		}
		b.WriteString("</" + w.p + "row>")
	}
	b.WriteString("</" + w.p + "sheetData>")
	return []byte(b.String())
}

// rowStart writes the <row start tag without its closing bracket.
func (w sheetWriter) rowStart(b *strings.Builder, row int, info models.Row) {
	b.WriteString("<" + w.p + `row r="` + strconv.Itoa(row+1) + `"`)
	if info.CustomFormat || info.Style != 0 {
		b.WriteString(` s="` + strconv.Itoa(int(info.Style)) + `"`)
		if info.CustomFormat {
			b.WriteString(` customFormat="1"`)
		}
	}
	if info.Height > 0 {
		b.WriteString(` ht="` + formatFloat(info.Height) + `"`)
	}
	if info.Hidden {
		b.WriteString(` hidden="1"`)
	}
	if info.CustomHeight {
		b.WriteString(` customHeight="1"`)
	}
	w.extra(b, info.Extra)
}

func (w sheetWriter) cell(b *strings.Builder, e models.Entry) {
	c := e.Cell
	b.WriteString("<" + w.p + `c r="` + address.MustFormat(e.Row, e.Col) + `"`)
	if c.Style != 0 {
		b.WriteString(` s="` + strconv.Itoa(int(c.Style)) + `"`)
	}
	v := c.Value
	if c.Formula != "" || c.Table != nil {
		switch v.Kind {
		case models.KindString:
			b.WriteString(` t="str"`)
		case models.KindBool:
			b.WriteString(` t="b"`)
		case models.KindError:
			b.WriteString(` t="e"`)
		case models.KindDate:
			b.WriteString(` t="d"`)
		}
		b.WriteString(">")
		switch {
		case c.Table != nil:
			b.WriteString("<" + w.p + `f t="dataTable" ref="` + escapeAttr(c.Table.Ref) + `"`)
			w.extra(b, c.Table.Attrs)
			b.WriteString(">")
		case c.ArrayRef != "":
			b.WriteString("<" + w.p + `f t="array" ref="` + escapeAttr(c.ArrayRef) + `">`)
		default:
			b.WriteString("<" + w.p + "f>")
		}
		b.WriteString(escapeText(c.Formula) + "</" + w.p + "f>")
		if !v.IsEmpty() {
			b.WriteString(textElement(w.p+"v", v.Text))
		}
		b.WriteString("</" + w.p + "c>")
		return
	}
	switch v.Kind {
	case models.KindEmpty:
		b.WriteString("/>")
		return
	case models.KindString:
		b.WriteString(` t="s"><` + w.p + "v>" + strconv.Itoa(w.sst.intern(v.Text)) + "</" + w.p + "v>")
	case models.KindNumber:
		b.WriteString("><" + w.p + "v>" + escapeText(v.Text) + "</" + w.p + "v>")
	case models.KindBool:
		b.WriteString(` t="b"><` + w.p + "v>" + v.Text + "</" + w.p + "v>")
	case models.KindError:
		b.WriteString(` t="e"><` + w.p + "v>" + escapeText(v.Text) + "</" + w.p + "v>")
	case models.KindDate:
		b.WriteString(` t="d"><` + w.p + "v>" + escapeText(v.Text) + "</" + w.p + "v>")
	}
	b.WriteString("</" + w.p + "c>")
}

func (w sheetWriter) mergeCells(s *models.Sheet) []byte {
	merges := s.Merges()
	if len(merges) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("<" + w.p + `mergeCells count="` + strconv.Itoa(len(merges)) + `">`)
	for _, m := range merges {
		b.WriteString("<" + w.p + `mergeCell ref="` + m.String() + `"/>`)
	}
	b.WriteString("</" + w.p + "mergeCells>")
	return []byte(b.String())
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
