package formula

import (
	"strings"

	"github.com/xuri/efp"
)

// SheetRefs returns the distinct sheet names referenced by formula, in
// order of first appearance. Unqualified references are not reported.
func SheetRefs(formula string) []string {
	ps := efp.ExcelParser()
	var (
		names []string
		seen  = make(map[string]bool)
	)
	for _, tok := range ps.Parse(formula) {
		if tok.TType != efp.TokenTypeOperand || tok.TSubType != efp.TokenSubTypeRange {
			continue
		}
		idx := strings.LastIndexByte(tok.TValue, '!')
		if idx <= 0 {
			continue
		}
		name := tok.TValue[:idx]
		if k := strings.LastIndexByte(name, ']'); k >= 0 {
			name = name[k+1:]
		}
		name = strings.Trim(name, "'")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// HasReferences reports whether formula contains at least one cell, range,
// row or column reference.
func HasReferences(formula string) bool {
	for _, seg := range scan(formula) {
		if seg.ref != nil {
			return true
		}
	}
	return false
}
