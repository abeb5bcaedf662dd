package ooxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// element locates one XML element inside a part.
type element struct {
	// name is the raw name: Space holds the prefix, not the namespace.
	name  xml.Name
	attrs []xml.Attr
	// start and end bound the whole element, [start, end).
	start, end int
	// innerStart and innerEnd bound the content between the tags.
	innerStart, innerEnd int
}

func (e element) local() string { return e.name.Local }

func (e element) attr(local string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

// document is a part split into its root element and the root's children.
type document struct {
	data     []byte
	root     element
	children []element
}

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	d.Strict = false
	return d
}

// parseDocument locates the root element and its direct children.
func parseDocument(data []byte) (*document, error) {
	root, children, err := scanLevel(data, 0, len(data), true)
	if err != nil {
		return nil, err
	}
	return &document{data: data, root: root, children: children}, nil
}

// childrenOf returns the direct children of e.
func (d *document) childrenOf(e element) ([]element, error) {
	return childElements(d.data, e)
}

func childElements(data []byte, e element) ([]element, error) {
	if e.innerStart >= e.innerEnd {
		return nil, nil
	}
	_, children, err := scanLevel(data, e.innerStart, e.innerEnd, false)
	return children, err
}

// child returns the first top-level child with the given local name.
func (d *document) child(local string) (element, bool) {
	for _, c := range d.children {
		if c.local() == local {
			return c, true
		}
	}
	return element{}, false
}

// scanLevel scans data[from:to]. With root set, it returns the first
// element and its children; otherwise it returns the elements found at the
// top level of the slice.
func scanLevel(data []byte, from, to int, root bool) (element, []element, error) {
	dec := newDecoder(bytes.NewReader(data[from:to]))
	var (
		top      element
		found    bool
		children []element
		stack    []element
	)
	// depth of elements collected as children
	want := 1
	if !root {
		want = 0
	}
	for {
		pos := from + int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return element{}, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := element{
				name:       t.Name,
				attrs:      append([]xml.Attr(nil), t.Attr...),
				start:      pos,
				innerStart: from + int(dec.InputOffset()),
			}
			stack = append(stack, e)
		case xml.EndElement:
			if len(stack) == 0 {
				return element{}, nil, fmt.Errorf("%w: unexpected </%s>", ErrCorrupt, t.Name.Local)
			}
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			end := from + int(dec.InputOffset())
			e.end = end
			e.innerEnd = pos
			if e.innerEnd < e.innerStart {
				e.innerEnd = e.innerStart
			}
			switch depth := len(stack); {
			case root && depth == 0:
				top, found = e, true
			case depth == want:
				children = append(children, e)
			}
		}
	}
	if len(stack) != 0 {
		return element{}, nil, fmt.Errorf("%w: unclosed <%s>", ErrCorrupt, stack[len(stack)-1].name.Local)
	}
	if root && !found {
		return element{}, nil, fmt.Errorf("%w: no root element", ErrCorrupt)
	}
	return top, children, nil
}

// prefix returns "p:" for a root element named p:local, or "".
func (e element) prefix() string {
	if e.name.Space == "" {
		return ""
	}
	return e.name.Space + ":"
}

// innerXML returns the content between the element's tags.
func (d *document) innerXML(e element) string {
	return string(d.data[e.innerStart:e.innerEnd])
}

// outerXML returns the element's bytes.
func (d *document) outerXML(e element) string {
	return string(d.data[e.start:e.end])
}

// splice replaces owned top-level elements. Every name in repl is either
// replaced in place, removed (nil value), or inserted following the
// schema order. All other bytes of the part are kept.
func (d *document) splice(order []string, repl map[string][]byte) []byte {
	rank := make(map[string]int, len(order))
	for i, n := range order {
		rank[n] = i
	}
	type edit struct {
		at, end int
		data    []byte
	}
	var edits []edit
	for name, data := range repl {
		if c, ok := d.child(name); ok {
			edits = append(edits, edit{at: c.start, end: c.end, data: data})
			for _, dup := range d.children {
				if dup.local() == name && dup.start != c.start {
					edits = append(edits, edit{at: dup.start, end: dup.end})
				}
			}
			continue
		}
		if len(data) == 0 {
			continue
		}
		at := d.root.innerEnd
		r := rank[name]
		for _, c := range d.children {
			if cr, known := rank[c.local()]; known && cr > r {
				at = c.start
				break
			}
		}
		edits = append(edits, edit{at: at, end: at, data: data})
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].at != edits[j].at {
			return edits[i].at < edits[j].at
		}
		return rank[nameOf(edits[i].data)] < rank[nameOf(edits[j].data)]
	})

	var out bytes.Buffer
	out.Grow(len(d.data))
	pos := 0
	for _, e := range edits {
		out.Write(d.data[pos:e.at])
		out.Write(e.data)
		pos = e.end
	}
	out.Write(d.data[pos:])
	return out.Bytes()
}

// nameOf returns the local name of the element data starts with.
func nameOf(data []byte) string {
	s := strings.TrimPrefix(string(data), "<")
	end := strings.IndexAny(s, " />")
	if end < 0 {
		return s
	}
	s = s[:end]
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// startTag renders an element start tag from raw attributes.
func startTag(name string, attrs []xml.Attr, selfClose bool) string {
	var b strings.Builder
	b.WriteString("<" + name)
	for _, a := range attrs {
		b.WriteString(" " + qname(a.Name) + `="` + escapeAttr(a.Value) + `"`)
	}
	if selfClose {
		b.WriteString("/>")
	} else {
		b.WriteString(">")
	}
	return b.String()
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func setAttr(attrs []xml.Attr, local, value string) []xml.Attr {
	out := append([]xml.Attr(nil), attrs...)
	for i, a := range out {
		if a.Name.Space == "" && a.Name.Local == local {
			out[i].Value = value
			return out
		}
	}
	return append(out, xml.Attr{Name: xml.Name{Local: local}, Value: value})
}

func toModelAttrs(attrs []xml.Attr) []models.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]models.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = models.Attr{Name: qname(a.Name), Value: a.Value}
	}
	return out
}

func writeModelAttrs(b *strings.Builder, attrs []models.Attr) {
	for _, a := range attrs {
		b.WriteString(" " + a.Name + `="` + escapeAttr(a.Value) + `"`)
	}
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return strings.ReplaceAll(b.String(), `"`, "&quot;")
}

func escapeText(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// itemText returns the plain text of a string item (<si> or <is>): the
// content of its <t> elements, phonetic runs excluded.
func itemText(fragment string) string {
	dec := newDecoder(strings.NewReader(fragment))
	var (
		b        strings.Builder
		stack    []string
		phonetic int
	)
	for {
		tok, err := dec.RawToken()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if t.Name.Local == "rPh" {
				phonetic++
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			if stack[len(stack)-1] == "rPh" {
				phonetic--
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if phonetic == 0 && len(stack) > 0 && stack[len(stack)-1] == "t" {
				b.Write(t)
			}
		}
	}
	return b.String()
}
