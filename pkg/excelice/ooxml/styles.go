package ooxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// ErrStyleLimit indicates more cell formats than the file format allows.
var ErrStyleLimit = errors.New("cell format limit exceeded")

var stylesOrder = []string{
	"numFmts", "fonts", "fills", "borders", "cellStyleXfs", "cellXfs",
	"cellStyles", "dxfs", "tableStyles", "colors", "extLst",
}

const stylesTemplate = xmlHeader + `<styleSheet xmlns="` + nsMain + `">` +
	`<cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs>` +
	`<cellStyles count="1"><cellStyle name="Normal" xfId="0" builtinId="0"/></cellStyles>` +
	`</styleSheet>`

// decodeStyles reads the cell format table of a stylesheet part.
func decodeStyles(data []byte) (*models.StyleTable, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	t := &models.StyleTable{}
	for _, c := range doc.children {
		items, err := doc.childrenOf(c)
		if err != nil {
			return nil, err
		}
		switch c.local() {
		case "numFmts":
			for _, nf := range items {
				id, _ := nf.attr("numFmtId")
				code, _ := nf.attr("formatCode")
				n, err := strconv.Atoi(id)
				if err != nil {
					return nil, fmt.Errorf("%w: numFmtId %q", ErrCorrupt, id)
				}
				t.NumFmts = append(t.NumFmts, models.NumFmt{ID: n, Code: code})
			}
		case "fonts":
			t.Fonts = outerAll(doc, items)
		case "fills":
			t.Fills = outerAll(doc, items)
		case "borders":
			t.Borders = outerAll(doc, items)
		case "cellXfs":
			for _, x := range items {
				xf, err := decodeXf(doc, x)
				if err != nil {
					return nil, err
				}
				t.CellXfs = append(t.CellXfs, xf)
			}
		}
	}
	if len(t.CellXfs) == 0 {
		t.CellXfs = []models.Xf{{}}
	}
	return t, nil
}

func outerAll(doc *document, items []element) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, doc.outerXML(e))
	}
	return out
}

func decodeXf(doc *document, e element) (models.Xf, error) {
	var xf models.Xf
	for _, a := range e.attrs {
		var dst *int
		if a.Name.Space == "" {
			switch a.Name.Local {
			case "numFmtId":
				dst = &xf.NumFmtID
			case "fontId":
				dst = &xf.FontID
			case "fillId":
				dst = &xf.FillID
			case "borderId":
				dst = &xf.BorderID
			case "xfId":
				dst = &xf.XfID
			}
		}
		if dst == nil {
			xf.Attrs = append(xf.Attrs, models.Attr{Name: qname(a.Name), Value: a.Value})
			continue
		}
		n, err := strconv.Atoi(a.Value)
		if err != nil {
			return xf, fmt.Errorf("%w: xf %s=%q", ErrCorrupt, a.Name.Local, a.Value)
		}
		*dst = n
	}
	xf.Inner = doc.innerXML(e)
	return xf, nil
}

// encodeStyles writes t into a stylesheet part, keeping everything the
// table does not own. orig may be nil for workbooks without a stylesheet.
func encodeStyles(orig []byte, t *models.StyleTable) ([]byte, error) {
	if t.Len() > excelize.MaxCellStyles {
		return nil, fmt.Errorf("%w: %d formats, at most %d", ErrStyleLimit, t.Len(), excelize.MaxCellStyles)
	}
	if orig == nil {
		orig = []byte(stylesTemplate)
	}
	doc, err := parseDocument(orig)
	if err != nil {
		return nil, err
	}
	p := doc.root.prefix()
	repl := map[string][]byte{
		"fonts":   rawList(doc, p+"fonts", t.Fonts),
		"fills":   rawList(doc, p+"fills", t.Fills),
		"borders": rawList(doc, p+"borders", t.Borders),
	}

	if len(t.NumFmts) == 0 {
		repl["numFmts"] = nil
	} else {
		var b strings.Builder
		b.WriteString(startTag(p+"numFmts", countAttrs(doc, "numFmts", len(t.NumFmts)), false))
		for _, nf := range t.NumFmts {
			b.WriteString("<" + p + `numFmt numFmtId="` + strconv.Itoa(nf.ID) + `" formatCode="` + escapeAttr(nf.Code) + `"/>`)
		}
		b.WriteString("</" + p + "numFmts>")
		repl["numFmts"] = []byte(b.String())
	}

	var b strings.Builder
	b.WriteString(startTag(p+"cellXfs", countAttrs(doc, "cellXfs", t.Len()), false))
	for _, xf := range t.CellXfs {
		b.WriteString("<" + p + "xf" +
			` numFmtId="` + strconv.Itoa(xf.NumFmtID) + `"` +
			` fontId="` + strconv.Itoa(xf.FontID) + `"` +
			` fillId="` + strconv.Itoa(xf.FillID) + `"` +
			` borderId="` + strconv.Itoa(xf.BorderID) + `"` +
			` xfId="` + strconv.Itoa(xf.XfID) + `"`)
		writeModelAttrs(&b, xf.Attrs)
		if xf.Inner == "" {
			b.WriteString("/>")
			continue
		}
		b.WriteString(">" + xf.Inner + "</" + p + "xf>")
	}
	b.WriteString("</" + p + "cellXfs>")
	repl["cellXfs"] = []byte(b.String())

	return doc.splice(stylesOrder, repl), nil
}

// countAttrs returns the attributes of an existing collection element with
// count updated.
func countAttrs(doc *document, local string, n int) []xml.Attr {
	var attrs []xml.Attr
	if c, ok := doc.child(local); ok {
		attrs = c.attrs
	}
	return setAttr(attrs, "count", strconv.Itoa(n))
}

func rawList(doc *document, name string, items []string) []byte {
	local := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		local = name[i+1:]
	}
	var b strings.Builder
	b.WriteString(startTag(name, countAttrs(doc, local, len(items)), false))
	for _, it := range items {
		b.WriteString(it)
	}
	b.WriteString("</" + name + ">")
	return []byte(b.String())
}
