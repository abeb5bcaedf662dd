package ooxml

import (
	"encoding/xml"
	"path"
	"strconv"
	"strings"
)

const (
	nsMain          = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relWorksheet      = nsRelationships + "/worksheet"
	relSharedStrings  = nsRelationships + "/sharedStrings"
	relStyles         = nsRelationships + "/styles"
	relOfficeDocument = nsRelationships + "/officeDocument"

	ctWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	ctStyles        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// relType reports whether a relationship type URI names kind; transitional
// and strict namespaces share the trailing segment.
func relType(uri, kind string) bool {
	return strings.HasSuffix(uri, "/"+kind)
}

type relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// relationships is a parsed .rels part.
type relationships struct {
	rels    []relationship
	changed bool
}

func parseRelationships(data []byte) (*relationships, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	out := &relationships{}
	for _, c := range doc.children {
		if c.local() != "Relationship" {
			continue
		}
		var r relationship
		for _, a := range c.attrs {
			switch a.Name.Local {
			case "Id":
				r.ID = a.Value
			case "Type":
				r.Type = a.Value
			case "Target":
				r.Target = a.Value
			case "TargetMode":
				r.TargetMode = a.Value
			}
		}
		out.rels = append(out.rels, r)
	}
	return out, nil
}

func (rs *relationships) byID(id string) (relationship, bool) {
	for _, r := range rs.rels {
		if r.ID == id {
			return r, true
		}
	}
	return relationship{}, false
}

func (rs *relationships) byType(kind string) (relationship, bool) {
	for _, r := range rs.rels {
		if relType(r.Type, kind) {
			return r, true
		}
	}
	return relationship{}, false
}

// add appends a relationship with the next free rIdN identifier.
func (rs *relationships) add(typ, target string) string {
	used := make(map[string]bool, len(rs.rels))
	for _, r := range rs.rels {
		used[r.ID] = true
	}
	n := len(rs.rels) + 1
	for used["rId"+strconv.Itoa(n)] {
		n++
	}
	id := "rId" + strconv.Itoa(n)
	rs.rels = append(rs.rels, relationship{ID: id, Type: typ, Target: target})
	rs.changed = true
	return id
}

func (rs *relationships) remove(id string) {
	for i, r := range rs.rels {
		if r.ID == id {
			rs.rels = append(rs.rels[:i], rs.rels[i+1:]...)
			rs.changed = true
			return
		}
	}
}

func (rs *relationships) clone() *relationships {
	return &relationships{rels: append([]relationship(nil), rs.rels...), changed: rs.changed}
}

func (rs *relationships) marshal() []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="` + nsPackageRels + `">`)
	for _, r := range rs.rels {
		b.WriteString(`<Relationship Id="` + escapeAttr(r.ID) + `" Type="` + escapeAttr(r.Type) +
			`" Target="` + escapeAttr(r.Target) + `"`)
		if r.TargetMode != "" {
			b.WriteString(` TargetMode="` + escapeAttr(r.TargetMode) + `"`)
		}
		b.WriteString("/>")
	}
	b.WriteString("</Relationships>")
	return []byte(b.String())
}

// relsPath returns the relationships part of a part:
// xl/workbook.xml -> xl/_rels/workbook.xml.rels.
func relsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// resolveTarget resolves a relationship target against the directory of
// the part owning the relationship.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// relativeTarget is the inverse of resolveTarget for parts in or below the
// source directory.
func relativeTarget(source, part string) string {
	dir := path.Dir(source) + "/"
	if strings.HasPrefix(part, dir) {
		return strings.TrimPrefix(part, dir)
	}
	return "/" + part
}

type contentOverride struct {
	PartName    string
	ContentType string
}

// contentTypes is the parsed [Content_Types].xml part.
type contentTypes struct {
	defaults  []xml.Attr // Extension -> ContentType, kept as pairs
	overrides []contentOverride
	changed   bool
}

func parseContentTypes(data []byte) (*contentTypes, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	ct := &contentTypes{}
	for _, c := range doc.children {
		switch c.local() {
		case "Default":
			ext, _ := c.attr("Extension")
			typ, _ := c.attr("ContentType")
			ct.defaults = append(ct.defaults, xml.Attr{Name: xml.Name{Local: ext}, Value: typ})
		case "Override":
			name, _ := c.attr("PartName")
			typ, _ := c.attr("ContentType")
			ct.overrides = append(ct.overrides, contentOverride{PartName: name, ContentType: typ})
		}
	}
	return ct, nil
}

func (ct *contentTypes) addOverride(part, typ string) {
	name := "/" + strings.TrimPrefix(part, "/")
	for _, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			return
		}
	}
	ct.overrides = append(ct.overrides, contentOverride{PartName: name, ContentType: typ})
	ct.changed = true
}

func (ct *contentTypes) removeOverride(part string) {
	name := "/" + strings.TrimPrefix(part, "/")
	for i, o := range ct.overrides {
		if strings.EqualFold(o.PartName, name) {
			ct.overrides = append(ct.overrides[:i], ct.overrides[i+1:]...)
			ct.changed = true
			return
		}
	}
}

func (ct *contentTypes) clone() *contentTypes {
	return &contentTypes{
		defaults:  append([]xml.Attr(nil), ct.defaults...),
		overrides: append([]contentOverride(nil), ct.overrides...),
		changed:   ct.changed,
	}
}

func (ct *contentTypes) marshal() []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="` + nsContentTypes + `">`)
	for _, d := range ct.defaults {
		b.WriteString(`<Default Extension="` + escapeAttr(d.Name.Local) + `" ContentType="` + escapeAttr(d.Value) + `"/>`)
	}
	for _, o := range ct.overrides {
		b.WriteString(`<Override PartName="` + escapeAttr(o.PartName) + `" ContentType="` + escapeAttr(o.ContentType) + `"/>`)
	}
	b.WriteString("</Types>")
	return []byte(b.String())
}
