package ooxml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// sharedStrings is the shared string table. Items read from the file keep
// their raw XML, rich text runs included; new items are only appended.
type sharedStrings struct {
	raw   []string
	texts []string
	index map[string]int
	// root start tag of the part, without count attributes
	rootTag string
	prefix  string
	added   bool
}

func newSharedStrings() *sharedStrings {
	return &sharedStrings{
		index:   make(map[string]int),
		rootTag: `<sst xmlns="` + nsMain + `"`,
	}
}

func parseSharedStrings(data []byte) (*sharedStrings, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	sst := newSharedStrings()
	var tag strings.Builder
	tag.WriteString("<" + qname(doc.root.name))
	for _, a := range doc.root.attrs {
		if a.Name.Space == "" && (a.Name.Local == "count" || a.Name.Local == "uniqueCount") {
			continue
		}
		tag.WriteString(" " + qname(a.Name) + `="` + escapeAttr(a.Value) + `"`)
	}
	sst.rootTag = tag.String()
	sst.prefix = doc.root.prefix()
	for _, si := range doc.children {
		if si.local() != "si" {
			continue
		}
		raw := doc.outerXML(si)
		sst.raw = append(sst.raw, raw)
		t := itemText(raw)
		sst.texts = append(sst.texts, t)
		if _, ok := sst.index[t]; !ok {
			sst.index[t] = len(sst.texts) - 1
		}
	}
	return sst, nil
}

// get returns the plain text of item i.
func (s *sharedStrings) get(i int) (string, error) {
	if i < 0 || i >= len(s.texts) {
		return "", fmt.Errorf("%w: shared string %d out of range", ErrCorrupt, i)
	}
	return s.texts[i], nil
}

// intern returns the index of an item with text t, appending one if needed.
func (s *sharedStrings) intern(t string) int {
	if i, ok := s.index[t]; ok {
		return i
	}
	p := s.prefix
	s.raw = append(s.raw, "<"+p+"si>"+textElement(p+"t", t)+"</"+p+"si>")
	s.texts = append(s.texts, t)
	s.index[t] = len(s.texts) - 1
	s.added = true
	return len(s.texts) - 1
}

func (s *sharedStrings) clone() *sharedStrings {
	out := &sharedStrings{
		raw:     append([]string(nil), s.raw...),
		texts:   append([]string(nil), s.texts...),
		index:   make(map[string]int, len(s.index)),
		rootTag: s.rootTag,
		prefix:  s.prefix,
		added:   s.added,
	}
	for k, v := range s.index {
		out.index[k] = v
	}
	return out
}

func (s *sharedStrings) marshal() []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(s.rootTag + ` uniqueCount="` + strconv.Itoa(len(s.raw)) + `">`)
	for _, r := range s.raw {
		b.WriteString(r)
	}
	name := s.rootTag[1:]
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	b.WriteString("</" + name + ">")
	return []byte(b.String())
}

// textElement renders <name>t</name>, preserving edge whitespace.
func textElement(name, t string) string {
	if t != strings.TrimFunc(t, unicode.IsSpace) {
		return "<" + name + ` xml:space="preserve">` + escapeText(t) + "</" + name + ">"
	}
	return "<" + name + ">" + escapeText(t) + "</" + name + ">"
}
