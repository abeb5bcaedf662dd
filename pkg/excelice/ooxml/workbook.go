package ooxml

import (
	"fmt"
	"strconv"
	"strings"
)

var workbookOrder = []string{
	"fileVersion", "fileSharing", "workbookPr", "workbookProtection",
	"bookViews", "sheets", "functionGroups", "externalReferences",
	"definedNames", "calcPr", "oleSize", "customWorkbookViews",
	"pivotCaches", "smartTagPr", "smartTagTypes", "webPublishing",
	"fileRecoveryPr", "webPublishObjects", "extLst",
}

// sheetEntry is one <sheet> of the workbook part.
type sheetEntry struct {
	name    string
	sheetID int
	rid     string
	part    string
	// raw is the <sheet> element as read or last written
	raw string
	// loaded marks a worksheet decoded into the model; other entries
	// (chartsheets, dialog sheets) are carried through untouched
	loaded bool
}

func parseSheetEntries(doc *document, rels *relationships, wbPart string) ([]*sheetEntry, error) {
	sheets, ok := doc.child("sheets")
	if !ok {
		return nil, fmt.Errorf("%w: workbook without sheets", ErrCorrupt)
	}
	items, err := doc.childrenOf(sheets)
	if err != nil {
		return nil, err
	}
	var out []*sheetEntry
	for _, e := range items {
		if e.local() != "sheet" {
			continue
		}
		name, _ := e.attr("name")
		id, _ := e.attr("sheetId")
		rid, _ := e.attr("id")
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q has sheetId %q", ErrCorrupt, name, id)
		}
		entry := &sheetEntry{name: name, sheetID: n, rid: rid, raw: doc.outerXML(e)}
		if rel, ok := rels.byID(rid); ok && rel.TargetMode != "External" {
			entry.part = resolveTarget(wbPart, rel.Target)
			entry.loaded = relType(rel.Type, "worksheet")
		}
		out = append(out, entry)
	}
	return out, nil
}

// relPrefix returns the prefix bound to the relationships namespace on the
// workbook root, or "" when none is declared.
func relPrefix(doc *document) string {
	for _, a := range doc.root.attrs {
		if a.Name.Space == "xmlns" && strings.HasSuffix(a.Value, "/relationships") &&
			strings.Contains(a.Value, "officeDocument") {
			return a.Name.Local
		}
	}
	return ""
}

// sheetElement renders a <sheet> element for a new entry.
func sheetElement(doc *document, e *sheetEntry) string {
	p := doc.root.prefix()
	var b strings.Builder
	b.WriteString("<" + p + `sheet name="` + escapeAttr(e.name) + `" sheetId="` + strconv.Itoa(e.sheetID) + `"`)
	if rp := relPrefix(doc); rp != "" {
		b.WriteString(" " + rp + `:id="` + e.rid + `"/>`)
	} else {
		b.WriteString(` xmlns:r="` + nsRelationships + `" r:id="` + e.rid + `"/>`)
	}
	return b.String()
}

// encodeWorkbook rewrites the sheet list of the workbook part and, when
// recalc is set, asks applications to recalculate formulas on load.
func encodeWorkbook(data []byte, entries []*sheetEntry, recalc bool) ([]byte, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	p := doc.root.prefix()
	var b strings.Builder
	b.WriteString("<" + p + "sheets>")
	for _, e := range entries {
		if e.raw == "" {
			e.raw = sheetElement(doc, e)
		}
		b.WriteString(e.raw)
	}
	b.WriteString("</" + p + "sheets>")
	repl := map[string][]byte{"sheets": []byte(b.String())}

	if recalc {
		calc, ok := doc.child("calcPr")
		name := p + "calcPr"
		if ok {
			name = qname(calc.name)
		}
		repl["calcPr"] = []byte(startTag(name, setAttr(calc.attrs, "fullCalcOnLoad", "1"), true))
	}
	return doc.splice(workbookOrder, repl), nil
}
