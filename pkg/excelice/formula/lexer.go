// Package formula rewrites cell references inside A1-style formula text.
//
// The scanner keeps every byte that is not a reference untouched, so a
// rewritten formula differs from its input only in the references that
// actually moved.
package formula

import (
	"strconv"
	"strings"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// part is one corner of a reference. A column reference ("A") has no row,
// a row reference ("3") has no column.
type part struct {
	row, col       int
	rowAbs, colAbs bool
	hasRow, hasCol bool
}

// area is a reference found in a formula: a single cell, a cell range, a
// whole-column range or a whole-row range.
type area struct {
	sheet string // qualifier without quotes, "" when unqualified
	start part
	end   *part
}

// segment is either verbatim text or a reference.
type segment struct {
	text string
	ref  *area
}

// scan splits formula text into verbatim segments and references.
func scan(src string) []segment {
	var (
		segs  []segment
		lit   strings.Builder
		sheet string
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"':
			j := skipQuoted(src, i, '"')
			lit.WriteString(src[i:j])
			i = j
			sheet = ""
		case c == '\'':
			j := skipQuoted(src, i, '\'')
			if j < len(src) && src[j] == '!' {
				sheet = strings.ReplaceAll(src[i+1:j-1], "''", "'")
				lit.WriteString(src[i : j+1])
				i = j + 1
				continue
			}
			lit.WriteString(src[i:j])
			i = j
		case c == '[':
			j := strings.IndexByte(src[i:], ']')
			if j < 0 {
				j = len(src) - i - 1
			}
			lit.WriteString(src[i : i+j+1])
			i += j + 1
		case c == '#':
			j := i + 1 + errorLiteralLen(src[i:])
			lit.WriteString(src[i:j])
			i = j
			sheet = ""
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			word := src[i:j]
			next := byte(0)
			if j < len(src) {
				next = src[j]
			}
			switch {
			case next == '!':
				sheet = word
				if k := strings.LastIndexByte(word, ']'); k >= 0 {
					sheet = word[k+1:]
				}
				lit.WriteString(src[i : j+1])
				i = j + 1
				continue
			case next == '(' || next == '[':
				lit.WriteString(word)
				i = j
			default:
				a, n, ok := matchArea(src, i, word)
				if !ok {
					lit.WriteString(word)
					i = j
					break
				}
				a.sheet = sheet
				flush()
				segs = append(segs, segment{text: src[i : i+n], ref: &a})
				i += n
			}
			sheet = ""
		default:
			lit.WriteByte(c)
			i++
			sheet = ""
		}
	}
	flush()
	return segs
}

// matchArea tries to read a reference starting at src[i], whose first word
// is word. It returns the reference and the number of bytes consumed.
func matchArea(src string, i int, word string) (area, int, bool) {
	first, ok := parsePart(word)
	if !ok {
		return area{}, 0, false
	}
	n := len(word)
	if k := i + n; k < len(src) && src[k] == ':' {
		k++
		j := k
		for j < len(src) && isWordByte(src[j]) {
			j++
		}
		if second, ok := parsePart(src[k:j]); ok && sameShape(first, second) {
			return area{start: first, end: &second}, j - i, true
		}
	}
	if !first.hasRow || !first.hasCol {
		// bare column letters or row numbers are names or numbers
		return area{}, 0, false
	}
	return area{start: first}, n, true
}

func sameShape(a, b part) bool {
	return a.hasRow == b.hasRow && a.hasCol == b.hasCol
}

// parsePart parses "$A$1", "A1", "$A", "A", "$3" or "3".
func parsePart(w string) (part, bool) {
	var p part
	i := 0
	if i < len(w) && w[i] == '$' {
		p.colAbs = true
		i++
	}
	j := i
	for j < len(w) && isLetter(w[j]) {
		j++
	}
	if j > i {
		col, err := address.ColumnIndex(w[i:j])
		if err != nil {
			return part{}, false
		}
		p.col, p.hasCol = col, true
	} else if p.colAbs {
		// "$3": the marker belongs to the row
		p.colAbs = false
		p.rowAbs = true
	}
	i = j
	if i < len(w) && w[i] == '$' {
		if !p.hasCol || p.rowAbs {
			return part{}, false
		}
		p.rowAbs = true
		i++
	}
	if i == len(w) {
		return p, p.hasCol && !p.rowAbs
	}
	row := 0
	for ; i < len(w); i++ {
		if !isDigit(w[i]) {
			return part{}, false
		}
		row = row*10 + int(w[i]-'0')
		if row > address.MaxRows {
			return part{}, false
		}
	}
	if row == 0 {
		return part{}, false
	}
	p.row, p.hasRow = row-1, true
	return p, true
}

// format renders a part back to text.
func (p part) format() string {
	var b strings.Builder
	if p.hasCol {
		if p.colAbs {
			b.WriteByte('$')
		}
		name, _ := address.ColumnName(p.col)
		b.WriteString(name)
	}
	if p.hasRow {
		if p.rowAbs {
			b.WriteByte('$')
		}
		b.WriteString(strconv.Itoa(p.row + 1))
	}
	return b.String()
}

func (a area) format() string {
	if a.end == nil {
		return a.start.format()
	}
	return a.start.format() + ":" + a.end.format()
}

// skipQuoted returns the index just past the closing quote, treating a
// doubled quote as an escape.
func skipQuoted(src string, i int, q byte) int {
	j := i + 1
	for j < len(src) {
		if src[j] == q {
			if j+1 < len(src) && src[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(src)
}

var errorLiterals = []string{
	"#NULL!", "#DIV/0!", "#VALUE!", "#REF!", "#NAME?", "#NUM!", "#N/A",
	"#GETTING_DATA", "#SPILL!", "#CALC!", "#FIELD!", "#BLOCKED!", "#UNKNOWN!",
	"#CONNECT!", "#BUSY!",
}

// errorLiteralLen returns how many bytes after '#' belong to an error literal.
func errorLiteralLen(s string) int {
	upper := strings.ToUpper(s)
	for _, lit := range errorLiterals {
		if strings.HasPrefix(upper, lit) {
			return len(lit) - 1
		}
	}
	return 0
}

func isWordByte(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '$' || c == '_' || c == '.' || c == '\\' || c >= 0x80
}

func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
