package models

// StyleRef indexes the workbook's cell format table. Zero is the default
// format.
type StyleRef int

// Cell is the content of one sheet cell.
type Cell struct {
	// Value is the cell value. For formula cells it is the last computed
	// result.
	Value Value
	// Formula is the formula text without the leading "=", empty for plain
	// values.
	Formula string
	// ArrayRef is the range of an array formula anchored at this cell.
	ArrayRef string
	// Table is set on the anchor cell of a what-if data table.
	Table *DataTable
	// Style is the cell format.
	Style StyleRef
}

// Kind returns KindFormula for formula cells and the value kind otherwise.
func (c Cell) Kind() Kind {
	if c.Formula != "" {
		return KindFormula
	}
	return c.Value.Kind
}

// IsDefault reports whether the cell is empty and unstyled.
func (c Cell) IsDefault() bool {
	return c.Value.IsEmpty() && c.Formula == "" && c.Table == nil && c.Style == 0
}

// DataTable is the data table formula of an anchor cell. Ref is the range
// the table fills; Attrs keeps the remaining attributes (dt2D, dtr, r1,
// r2, ...) as read.
type DataTable struct {
	Ref   string
	Attrs []Attr
}

// Attr returns the value of a table attribute.
func (t *DataTable) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Coord is a zero-based cell position.
type Coord struct {
	Row int
	Col int
}

// Entry is a populated cell with its position.
type Entry struct {
	Coord
	Cell Cell
}

// CellRow represents a single row of cell values.
type CellRow struct {
	// R is the row index (1-based).
	R int `json:"r"`
	// C maps column index (1-based, as string) to cell value.
	C map[string]interface{} `json:"c"`
	// F maps column index to formula text for formula cells (optional).
	F map[string]string `json:"f,omitempty"`
}
