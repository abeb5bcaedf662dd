// Package ooxml reads and writes workbooks in the Office Open XML
// spreadsheet format.
//
// Decoding loads cells, formats and the layout the engine manages into the
// document model. Encoding rewrites only what changed: parts of untouched
// sheets are copied byte for byte and, inside a changed worksheet, only the
// elements the model owns are replaced.
package ooxml

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

const (
	contentTypesPart = "[Content_Types].xml"
	rootRelsPart     = "_rels/.rels"
	defaultWorkbook  = "xl/workbook.xml"
)

// Document is a workbook bound to the package it was read from.
type Document struct {
	// Workbook is the decoded model. Mutate it, then Encode.
	Workbook *models.Workbook

	pkg        *container
	ct         *contentTypes
	wbPart     string
	wbRels     *relationships
	sst        *sharedStrings
	sstPart    string
	stylesPart string
	entries    []*sheetEntry
	bySheet    map[*models.Sheet]*sheetEntry

	pending *state
}

// state is the package bookkeeping an Encode produces; Commit adopts it.
type state struct {
	data       []byte
	ct         *contentTypes
	wbRels     *relationships
	sst        *sharedStrings
	sstPart    string
	stylesPart string
	entries    []*sheetEntry
	bySheet    map[*models.Sheet]*sheetEntry
}

// New returns a document holding a default workbook with one empty sheet.
func New(path string) (*Document, error) {
	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("build default workbook: %w", err)
	}
	return Decode(buf.Bytes(), path)
}

// Decode reads a workbook package.
func Decode(data []byte, filePath string) (*Document, error) {
	pkg, err := openContainer(data)
	if err != nil {
		return nil, err
	}
	d := &Document{pkg: pkg, wbPart: defaultWorkbook, bySheet: make(map[*models.Sheet]*sheetEntry)}

	ctData, err := pkg.read(contentTypesPart)
	if err != nil {
		return nil, err
	}
	if d.ct, err = parseContentTypes(ctData); err != nil {
		return nil, err
	}
	if pkg.has(rootRelsPart) {
		data, err := pkg.read(rootRelsPart)
		if err != nil {
			return nil, err
		}
		rootRels, err := parseRelationships(data)
		if err != nil {
			return nil, err
		}
		if rel, ok := rootRels.byType("officeDocument"); ok {
			d.wbPart = resolveTarget("", rel.Target)
		}
	}

	wbData, err := pkg.read(d.wbPart)
	if err != nil {
		return nil, err
	}
	wbDoc, err := parseDocument(wbData)
	if err != nil {
		return nil, err
	}
	d.wbRels = &relationships{}
	if rp := relsPath(d.wbPart); pkg.has(rp) {
		data, err := pkg.read(rp)
		if err != nil {
			return nil, err
		}
		if d.wbRels, err = parseRelationships(data); err != nil {
			return nil, err
		}
	}

	d.sst = newSharedStrings()
	if rel, ok := d.wbRels.byType("sharedStrings"); ok {
		d.sstPart = resolveTarget(d.wbPart, rel.Target)
		data, err := pkg.read(d.sstPart)
		if err != nil {
			return nil, err
		}
		if d.sst, err = parseSharedStrings(data); err != nil {
			return nil, err
		}
	}

	wb := models.NewWorkbook(filePath)
	if rel, ok := d.wbRels.byType("styles"); ok {
		d.stylesPart = resolveTarget(d.wbPart, rel.Target)
		data, err := pkg.read(d.stylesPart)
		if err != nil {
			return nil, err
		}
		if wb.Styles, err = decodeStyles(data); err != nil {
			return nil, err
		}
	}

	if d.entries, err = parseSheetEntries(wbDoc, d.wbRels, d.wbPart); err != nil {
		return nil, err
	}
	for _, e := range d.entries {
		if !e.loaded || !pkg.has(e.part) {
			e.loaded = false
			wb.Reserve(e.name)
			continue
		}
		data, err := pkg.read(e.part)
		if err != nil {
			return nil, err
		}
		s, err := decodeWorksheet(data, e.name, d.sst)
		if err != nil {
			return nil, err
		}
		if err := wb.AppendSheet(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		d.bySheet[s] = e
	}
	wb.MarkClean()
	d.Workbook = wb
	return d, nil
}

// Encode serializes the workbook. Nothing about the document changes until
// Commit; an Encode that is never committed leaves it as it was.
func (d *Document) Encode() ([]byte, error) {
	d.pending = nil
	wb := d.Workbook
	if !wb.Dirty() {
		d.pending = &state{data: d.pkg.raw}
		return d.pkg.raw, nil
	}

	st := &state{
		ct:         d.ct.clone(),
		wbRels:     d.wbRels.clone(),
		sst:        d.sst.clone(),
		sstPart:    d.sstPart,
		stylesPart: d.stylesPart,
		bySheet:    make(map[*models.Sheet]*sheetEntry, len(d.bySheet)),
	}
	repl := make(map[string][]byte)

	if wb.Styles.Dirty() || d.stylesPart == "" {
		var orig []byte
		if d.stylesPart != "" {
			var err error
			if orig, err = d.pkg.read(d.stylesPart); err != nil {
				return nil, err
			}
		} else {
			st.stylesPart = d.partIn("styles.xml")
			st.wbRels.add(relStyles, relativeTarget(d.wbPart, st.stylesPart))
			st.ct.addOverride(st.stylesPart, ctStyles)
		}
		data, err := encodeStyles(orig, wb.Styles)
		if err != nil {
			return nil, err
		}
		repl[st.stylesPart] = data
	}

	nextID := 0
	for _, e := range d.entries {
		if e.sheetID > nextID {
			nextID = e.sheetID
		}
	}
	var (
		moved   = make(map[*sheetEntry]*sheetEntry)
		added   []*sheetEntry
		written bool
		recalc  bool
	)
	for _, s := range wb.Sheets() {
		var e *sheetEntry
		old, known := d.bySheet[s]
		if known {
			cp := *old
			e = &cp
			moved[old] = e
		} else {
			nextID++
			e = &sheetEntry{name: s.Name(), sheetID: nextID, loaded: true}
			e.part = d.newSheetPart(repl)
			e.rid = st.wbRels.add(relWorksheet, relativeTarget(d.wbPart, e.part))
			st.ct.addOverride(e.part, ctWorksheet)
			added = append(added, e)
		}
		st.bySheet[s] = e
		if known && !s.Dirty() {
			continue
		}
		var orig []byte
		if known {
			var err error
			if orig, err = d.pkg.read(e.part); err != nil {
				return nil, err
			}
		}
		data, err := encodeWorksheet(orig, s, st.sst)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name(), err)
		}
		repl[e.part] = data
		written = true
		recalc = recalc || hasFormulas(s)
	}

	// entries keep their order; sheets removed from the model lose their
	// parts and new sheets go last
	for _, old := range d.entries {
		switch e, ok := moved[old]; {
		case ok:
			st.entries = append(st.entries, e)
		case !old.loaded:
			cp := *old
			st.entries = append(st.entries, &cp)
		default:
			written = true
			repl[old.part] = nil
			if rp := relsPath(old.part); d.pkg.has(rp) {
				repl[rp] = nil
			}
			st.wbRels.remove(old.rid)
			st.ct.removeOverride(old.part)
		}
	}
	st.entries = append(st.entries, added...)

	if st.sst.added {
		if st.sstPart == "" {
			st.sstPart = d.partIn("sharedStrings.xml")
			st.wbRels.add(relSharedStrings, relativeTarget(d.wbPart, st.sstPart))
			st.ct.addOverride(st.sstPart, ctSharedStrings)
		}
		repl[st.sstPart] = st.sst.marshal()
	}

	// cached results of changed formulas are stale, so the calculation
	// chain goes and applications recalculate on load
	if rel, ok := st.wbRels.byType("calcChain"); ok && written {
		part := resolveTarget(d.wbPart, rel.Target)
		repl[part] = nil
		st.wbRels.remove(rel.ID)
		st.ct.removeOverride(part)
	}

	if wb.StructureChanged() || recalc {
		data, err := d.pkg.read(d.wbPart)
		if err != nil {
			return nil, err
		}
		if repl[d.wbPart], err = encodeWorkbook(data, st.entries, recalc); err != nil {
			return nil, err
		}
	}
	if st.wbRels.changed {
		repl[relsPath(d.wbPart)] = st.wbRels.marshal()
	}
	if st.ct.changed {
		repl[contentTypesPart] = st.ct.marshal()
	}

	var buf bytes.Buffer
	if err := d.pkg.write(&buf, repl); err != nil {
		return nil, err
	}
	st.data = buf.Bytes()
	d.pending = st
	return st.data, nil
}

// Commit adopts the result of the last Encode after it was stored, so later
// encodes start from the written package and the model reads as clean.
func (d *Document) Commit() error {
	st := d.pending
	if st == nil {
		return errors.New("commit without encode")
	}
	d.pending = nil
	if st.ct == nil {
		d.Workbook.MarkClean()
		return nil
	}
	pkg, err := openContainer(st.data)
	if err != nil {
		return err
	}
	d.pkg = pkg
	d.ct, d.wbRels, d.sst = st.ct, st.wbRels, st.sst
	d.ct.changed, d.wbRels.changed, d.sst.added = false, false, false
	d.sstPart, d.stylesPart = st.sstPart, st.stylesPart
	d.entries, d.bySheet = st.entries, st.bySheet
	d.Workbook.MarkClean()
	return nil
}

// partIn names a part in the workbook part's directory.
func (d *Document) partIn(name string) string {
	dir := path.Dir(d.wbPart)
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

// newSheetPart returns the first free worksheets/sheetN.xml name.
func (d *Document) newSheetPart(repl map[string][]byte) string {
	for n := 1; ; n++ {
		name := d.partIn("worksheets/sheet" + strconv.Itoa(n) + ".xml")
		if _, taken := repl[name]; taken || d.pkg.has(name) {
			continue
		}
		return name
	}
}

func hasFormulas(s *models.Sheet) bool {
	for _, e := range s.Cells().Entries() {
		if strings.TrimSpace(e.Cell.Formula) != "" || e.Cell.Table != nil {
			return true
		}
	}
	return false
}
