package engine

import (
	"errors"
	"testing"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/formula"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

const boldFont = `<font><b/><sz val="11"/><name val="Calibri"/></font>`

// people returns a workbook whose sheet "Datos" holds a small table.
func people(t *testing.T) *models.Workbook {
	t.Helper()
	wb := models.NewWorkbook("")
	s, err := wb.AddSheet("Datos")
	if err != nil {
		t.Fatalf("AddSheet failed: %v", err)
	}
	s.SetCell(0, 0, models.Cell{Value: models.String("Nombre")})
	s.SetCell(0, 1, models.Cell{Value: models.String("Edad")})
	s.SetCell(1, 0, models.Cell{Value: models.String("Ana")})
	s.SetCell(1, 1, models.Cell{Value: models.String("25")})
	return wb
}

func cellAt(t *testing.T, wb *models.Workbook, sheet, addr string) models.Cell {
	t.Helper()
	s, err := wb.Sheet(sheet)
	if err != nil {
		t.Fatalf("Sheet(%q) failed: %v", sheet, err)
	}
	row, col, err := address.Parse(addr)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", addr, err)
	}
	return s.Cell(row, col)
}

func TestCopyRangeValues(t *testing.T) {
	wb := people(t)
	e := New(nil)

	req := RangeRequest{SrcSheet: "Datos", DstSheet: "Copia", EndRow: 1, EndCol: 1, DstRow: 1, DstCol: 1}
	if err := e.CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}

	tests := []struct {
		addr     string
		expected string
	}{
		{"A1", ""},
		{"B2", "Nombre"},
		{"C2", "Edad"},
		{"B3", "Ana"},
		{"C3", "25"},
		{"D4", ""},
	}
	for _, tt := range tests {
		if got := cellAt(t, wb, "Copia", tt.addr).Value.Display(); got != tt.expected {
			t.Errorf("Copia!%s = %q, expected %q", tt.addr, got, tt.expected)
		}
	}

	s, _ := wb.Sheet("Copia")
	if s.Cells().Len() != 4 {
		t.Errorf("Expected 4 cells in destination, got %d", s.Cells().Len())
	}
	if got := s.Dimension().String(); got != "B2:C3" {
		t.Errorf("Expected dimension B2:C3, got %s", got)
	}
	if names := wb.SheetNames(); len(names) != 2 || names[1] != "Copia" {
		t.Errorf("Expected destination sheet appended, got %v", names)
	}
}

func TestCopyRangeRebase(t *testing.T) {
	tests := []struct {
		name     string
		formula  string
		expected string
	}{
		{"relative", "A2+1", "C6+1"},
		{"absolute", "$A$2+1", "$A$2+1"},
		{"mixed", "A$2+$A2", "C$2+$A6"},
		{"range", "SUM(A1:B2)", "SUM(C5:D6)"},
		{"other sheet", "Otra!A2*2", "Otra!C6*2"},
		{"string literal", `"A2"&A2`, `"A2"&C6`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := models.NewWorkbook("")
			s, _ := wb.AddSheet("Hoja1")
			s.SetCell(1, 1, models.Cell{Formula: tt.formula, Value: models.Number(1)})

			req := RangeRequest{
				SrcSheet: "Hoja1", DstSheet: "Hoja1",
				StartRow: 1, EndRow: 1, StartCol: 1, EndCol: 1,
				DstRow: 5, DstCol: 3,
				IncludeFormulas: true,
			}
			if err := New(nil).CopyRange(wb, wb, req); err != nil {
				t.Fatalf("CopyRange failed: %v", err)
			}
			got := s.Cell(5, 3)
			if got.Formula != tt.expected {
				t.Errorf("Expected formula %q, got %q", tt.expected, got.Formula)
			}
			if s.Cell(1, 1).Formula != tt.formula {
				t.Errorf("Source formula changed to %q", s.Cell(1, 1).Formula)
			}
		})
	}
}

func TestCopyRangeWithoutFormulas(t *testing.T) {
	wb := models.NewWorkbook("")
	s, _ := wb.AddSheet("Hoja1")
	s.SetCell(0, 0, models.Cell{Value: models.Number(25)})
	s.SetCell(0, 1, models.Cell{Formula: "A1+1", Value: models.Number(26)})
	s.SetCell(0, 2, models.Cell{Formula: "A1:B1*2", ArrayRef: "C1", Value: models.Number(50)})

	req := RangeRequest{SrcSheet: "Hoja1", DstSheet: "Valores", EndCol: 2}
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}

	dst, _ := wb.Sheet("Valores")
	for col, expected := range []float64{25, 26, 50} {
		c := dst.Cell(0, col)
		if c.Formula != "" || c.ArrayRef != "" {
			t.Errorf("Column %d kept formula %q (ref %q)", col, c.Formula, c.ArrayRef)
		}
		if c.Value.Kind != models.KindNumber || c.Value.Num != expected {
			t.Errorf("Column %d: expected %v, got %+v", col, expected, c.Value)
		}
	}
}

func TestCopyRangeDataTable(t *testing.T) {
	table := &models.DataTable{Ref: "B2:B4", Attrs: []models.Attr{{Name: "dt2D", Value: "0"}, {Name: "r1", Value: "A1"}}}
	tests := []struct {
		name     string
		formulas bool
		ref, r1  string
	}{
		{"with formulas", true, "D4:D6", "C3"},
		{"values only", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := models.NewWorkbook("")
			s, _ := wb.AddSheet("Hoja1")
			s.SetCell(0, 0, models.Cell{Value: models.Number(3)})
			s.SetCell(1, 1, models.Cell{Value: models.Number(10), Table: table})

			req := RangeRequest{
				SrcSheet: "Hoja1", DstSheet: "Hoja1",
				EndRow: 1, EndCol: 1, DstRow: 2, DstCol: 2,
				IncludeFormulas: tt.formulas,
			}
			if err := New(nil).CopyRange(wb, wb, req); err != nil {
				t.Fatalf("CopyRange failed: %v", err)
			}
			got := s.Cell(3, 3)
			if got.Value.Num != 10 {
				t.Errorf("Expected value 10, got %+v", got.Value)
			}
			if !tt.formulas {
				if got.Table != nil {
					t.Errorf("Expected no data table, got %+v", got.Table)
				}
				return
			}
			if got.Table == nil || got.Table.Ref != tt.ref {
				t.Fatalf("Expected table over %s, got %+v", tt.ref, got.Table)
			}
			if r1, _ := got.Table.Attr("r1"); r1 != tt.r1 {
				t.Errorf("Expected input cell %s, got %s", tt.r1, r1)
			}
			if table.Ref != "B2:B4" {
				t.Errorf("Source table changed to %s", table.Ref)
			}
		})
	}
}

func TestCopyRangeOutOfBoundsRollsBack(t *testing.T) {
	wb := models.NewWorkbook("")
	src, _ := wb.AddSheet("Origen")
	src.SetCell(1, 1, models.Cell{Value: models.String("ok")})
	src.SetCell(1, 2, models.Cell{Formula: "A1", Value: models.Number(0)})

	dst, _ := wb.AddSheet("Destino")
	dst.SetCell(0, 0, models.Cell{Value: models.String("keep")})
	dst.SetCell(0, 1, models.Cell{Value: models.String("keep too")})
	dst.AddMerge(address.Range{StartRow: 3, EndRow: 3, EndCol: 1})
	wb.MarkClean()

	req := RangeRequest{
		SrcSheet: "Origen", DstSheet: "Destino",
		StartRow: 1, EndRow: 1, StartCol: 1, EndCol: 2,
		IncludeFormulas: true,
		Layout:          true,
	}
	err := New(nil).CopyRange(wb, wb, req)
	if !errors.Is(err, formula.ErrOutOfBounds) {
		t.Fatalf("Expected ErrOutOfBounds, got %v", err)
	}

	if got := dst.Cell(0, 0).Value.Display(); got != "keep" {
		t.Errorf("Expected A1 restored, got %q", got)
	}
	if got := dst.Cell(0, 1).Value.Display(); got != "keep too" {
		t.Errorf("Expected B1 restored, got %q", got)
	}
	if dst.Cells().Len() != 2 || len(dst.Merges()) != 1 {
		t.Errorf("Destination changed: %d cells, merges %v", dst.Cells().Len(), dst.Merges())
	}
	if wb.Dirty() {
		t.Error("Failed copy left the workbook dirty")
	}

	// a failing copy into a new sheet must not create it
	req.DstSheet = "Nueva"
	if err := New(nil).CopyRange(wb, wb, req); !errors.Is(err, formula.ErrOutOfBounds) {
		t.Fatalf("Expected ErrOutOfBounds, got %v", err)
	}
	if wb.HasSheet("Nueva") {
		t.Error("Failed copy created the destination sheet")
	}
}

func TestCopyRangeOverlap(t *testing.T) {
	wb := models.NewWorkbook("")
	s, _ := wb.AddSheet("Hoja1")
	for r := 0; r < 5; r++ {
		s.SetCell(r, 0, models.Cell{Value: models.Number(float64(r + 1))})
	}

	// A1:A4 onto A2:A5 reads every source cell before writing any
	req := RangeRequest{SrcSheet: "Hoja1", DstSheet: "Hoja1", EndRow: 3, DstRow: 1}
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}
	expected := []float64{1, 1, 2, 3, 4}
	for r, want := range expected {
		if got := s.Cell(r, 0).Value.Num; got != want {
			t.Errorf("Row %d: expected %v, got %v", r+1, want, got)
		}
	}

	// and back up again
	req = RangeRequest{SrcSheet: "Hoja1", DstSheet: "Hoja1", StartRow: 1, EndRow: 4}
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}
	expected = []float64{1, 2, 3, 4, 4}
	for r, want := range expected {
		if got := s.Cell(r, 0).Value.Num; got != want {
			t.Errorf("Row %d after upward copy: expected %v, got %v", r+1, want, got)
		}
	}
}

func TestCopyRangeClearsTarget(t *testing.T) {
	wb := people(t)
	s, _ := wb.Sheet("Datos")
	s.SetCell(5, 0, models.Cell{Value: models.String("old")})
	s.SetCell(6, 0, models.Cell{Value: models.String("old")})
	s.SetCell(6, 5, models.Cell{Value: models.String("outside")})

	// source row 3 is empty, so its image A7 is cleared
	req := RangeRequest{SrcSheet: "Datos", DstSheet: "Datos", StartRow: 0, EndRow: 2, EndCol: 1, DstRow: 4}
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}
	if got := s.Cell(5, 0).Value.Display(); got != "Ana" {
		t.Errorf("Expected A6 = Ana, got %q", got)
	}
	if s.Cells().Has(6, 0) {
		t.Errorf("Expected A7 cleared, got %+v", s.Cell(6, 0))
	}
	if got := s.Cell(6, 5).Value.Display(); got != "outside" {
		t.Errorf("Cell outside the target changed: %q", got)
	}
}

func TestCopyRangeCrossBook(t *testing.T) {
	src := people(t)
	dst := models.NewWorkbook("")
	if _, err := dst.AddSheet("Hoja1"); err != nil {
		t.Fatal(err)
	}

	srcSheet, _ := src.Sheet("Datos")
	src.Styles.Fonts = append(src.Styles.Fonts, boldFont)
	src.Styles.NumFmts = append(src.Styles.NumFmts, models.NumFmt{ID: 170, Code: "0.0%"})
	bold := src.Styles.Add(models.Xf{FontID: 1, NumFmtID: 170})
	header := srcSheet.Cell(0, 0)
	header.Style = bold
	srcSheet.SetCell(0, 0, header)
	srcSheet.SetCell(1, 2, models.Cell{Formula: "B2+Resumen!A1", Value: models.Number(26)})
	srcStyles := src.Styles.Len()

	req := RangeRequest{SrcSheet: "Datos", DstSheet: "Hoja1", EndRow: 1, EndCol: 2, IncludeFormulas: true}
	if err := New(nil).CopyRange(src, dst, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}

	got := cellAt(t, dst, "Hoja1", "A1")
	if got.Style == 0 {
		t.Fatal("Expected an imported style on A1")
	}
	xf := dst.Styles.Xf(got.Style)
	if dst.Styles.Fonts[xf.FontID] != boldFont {
		t.Errorf("Expected bold font, got %s", dst.Styles.Fonts[xf.FontID])
	}
	if code, ok := dst.Styles.NumFmtCode(xf.NumFmtID); !ok || code != "0.0%" {
		t.Errorf("Expected number format 0.0%%, got %q (%v)", code, ok)
	}
	if f := cellAt(t, dst, "Hoja1", "C2").Formula; f != "B2+Resumen!A1" {
		t.Errorf("Expected formula kept at zero offset, got %q", f)
	}

	// the books stay independent
	dstSheet, _ := dst.Sheet("Hoja1")
	dstSheet.SetCell(1, 0, models.Cell{Value: models.String("Luis")})
	if v := srcSheet.Cell(1, 0).Value.Display(); v != "Ana" {
		t.Errorf("Source changed through the destination: %q", v)
	}
	if src.Styles.Len() != srcStyles {
		t.Errorf("Source style table grew from %d to %d", srcStyles, src.Styles.Len())
	}
	if src.HasSheet("Hoja1") {
		t.Error("Destination sheet leaked into the source workbook")
	}
}

func TestCopyRangeLayout(t *testing.T) {
	wb := people(t)
	s, _ := wb.Sheet("Datos")
	s.AddMerge(address.Range{StartRow: 3, EndRow: 3, EndCol: 1})
	s.AddMerge(address.Range{StartRow: 3, EndRow: 4, StartCol: 1, EndCol: 2}) // replaces the first
	s.AddMerge(address.Range{StartRow: 0, EndRow: 0, StartCol: 0, EndCol: 1})
	s.AddMerge(address.Range{StartRow: 1, EndRow: 9, StartCol: 5, EndCol: 5}) // outside
	s.SetColumn(0, models.Column{Width: 20, CustomWidth: true})
	s.SetColumn(7, models.Column{Width: 5, CustomWidth: true})
	s.SetRow(1, models.Row{Height: 30, CustomHeight: true})

	req := RangeRequest{SrcSheet: "Datos", DstSheet: "Copia", EndRow: 2, EndCol: 2, DstRow: 2, DstCol: 1, Layout: true}
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}
	dst, _ := wb.Sheet("Copia")

	merges := dst.Merges()
	if len(merges) != 1 || merges[0].String() != "B3:C3" {
		t.Errorf("Expected merge B3:C3, got %v", merges)
	}
	if col, ok := dst.Column(1); !ok || col.Width != 20 {
		t.Errorf("Expected column B width 20, got %+v (%v)", col, ok)
	}
	if _, ok := dst.Column(8); ok {
		t.Error("Column outside the range was copied")
	}
	if row, ok := dst.Row(3); !ok || row.Height != 30 {
		t.Errorf("Expected row 4 height 30, got %+v (%v)", row, ok)
	}

	// without Layout only cells travel
	req.DstSheet = "Solo"
	req.Layout = false
	if err := New(nil).CopyRange(wb, wb, req); err != nil {
		t.Fatalf("CopyRange failed: %v", err)
	}
	plain, _ := wb.Sheet("Solo")
	if len(plain.Merges()) != 0 || len(plain.ColumnIndexes()) != 0 || len(plain.RowIndexes()) != 0 {
		t.Errorf("Expected no layout, got merges %v cols %v rows %v",
			plain.Merges(), plain.ColumnIndexes(), plain.RowIndexes())
	}
}

func TestCopyRangeInvalid(t *testing.T) {
	wb := people(t)
	tests := []struct {
		name     string
		req      RangeRequest
		expected error
	}{
		{"rows reversed", RangeRequest{SrcSheet: "Datos", DstSheet: "X", StartRow: 2, EndRow: 1}, ErrInvalidRange},
		{"cols reversed", RangeRequest{SrcSheet: "Datos", DstSheet: "X", StartCol: 3, EndCol: 0}, ErrInvalidRange},
		{"negative row", RangeRequest{SrcSheet: "Datos", DstSheet: "X", StartRow: -1}, ErrInvalidRange},
		{"column past the sheet", RangeRequest{SrcSheet: "Datos", DstSheet: "X", EndCol: address.MaxCols}, ErrInvalidRange},
		{"missing source name", RangeRequest{DstSheet: "X"}, ErrInvalidRange},
		{"target leaves the sheet", RangeRequest{SrcSheet: "Datos", DstSheet: "X", EndRow: 1, DstRow: address.MaxRows - 1}, ErrInvalidRange},
		{"unknown source", RangeRequest{SrcSheet: "Nada", DstSheet: "X"}, models.ErrSheetNotFound},
		{"bad destination name", RangeRequest{SrcSheet: "Datos", DstSheet: "a/b"}, models.ErrInvalidSheetName},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.CopyRange(wb, wb, tt.req)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
	if names := wb.SheetNames(); len(names) != 1 {
		t.Errorf("Failed copies changed the sheet list: %v", names)
	}
}

func TestCloneSheet(t *testing.T) {
	src := people(t)
	s, _ := src.Sheet("Datos")
	s.SetCell(1, 2, models.Cell{Formula: "B2*2", Value: models.Number(50)})
	s.AddMerge(address.Range{StartRow: 4, EndRow: 4, EndCol: 3})
	s.SetColumn(0, models.Column{Width: 18, CustomWidth: true})
	s.SetRow(9, models.Row{Height: 40, CustomHeight: true})

	dst := models.NewWorkbook("")
	dst.AddSheet("Hoja1")
	e := New(nil)

	if err := e.CloneSheet(src, dst, "Datos", "Copia", true); err != nil {
		t.Fatalf("CloneSheet failed: %v", err)
	}
	clone, err := dst.Sheet("Copia")
	if err != nil {
		t.Fatalf("Clone missing: %v", err)
	}
	if clone.Cells().Len() != s.Cells().Len() {
		t.Errorf("Expected %d cells, got %d", s.Cells().Len(), clone.Cells().Len())
	}
	if clone.Dimension() != s.Dimension() {
		t.Errorf("Expected dimension %s, got %s", s.Dimension(), clone.Dimension())
	}
	if f := clone.Cell(1, 2).Formula; f != "B2*2" {
		t.Errorf("Expected formula B2*2, got %q", f)
	}
	if m := clone.Merges(); len(m) != 1 || m[0].String() != "A5:D5" {
		t.Errorf("Expected merge A5:D5, got %v", m)
	}
	if col, ok := clone.Column(0); !ok || col.Width != 18 {
		t.Errorf("Expected column width 18, got %+v", col)
	}
	if row, ok := clone.Row(9); !ok || row.Height != 40 {
		t.Errorf("Expected row height 40, got %+v", row)
	}

	// without formulas the cached value stays
	if err := e.CloneSheet(src, dst, "Datos", "Valores", false); err != nil {
		t.Fatalf("CloneSheet failed: %v", err)
	}
	vals, _ := dst.Sheet("Valores")
	if c := vals.Cell(1, 2); c.Formula != "" || c.Value.Num != 50 {
		t.Errorf("Expected cached value 50, got %+v", c)
	}
}

func TestCloneSheetErrors(t *testing.T) {
	src := people(t)
	dst := models.NewWorkbook("")
	dst.AddSheet("Hoja1")
	dst.AddSheet("Datos")
	dst.Reserve("Grafico")
	before := dst.SheetNames()
	e := New(nil)

	tests := []struct {
		name     string
		srcSheet string
		dstSheet string
		expected error
	}{
		{"collision", "Datos", "Datos", models.ErrDuplicateSheet},
		{"collision ignoring case", "Datos", "HOJA1", models.ErrDuplicateSheet},
		{"name held by a chartsheet", "Datos", "grafico", models.ErrDuplicateSheet},
		{"missing source", "Nada", "Nueva", models.ErrSheetNotFound},
		{"invalid name", "Datos", "a[1]", models.ErrInvalidSheetName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.CloneSheet(src, dst, tt.srcSheet, tt.dstSheet, true); !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}

	after := dst.SheetNames()
	if len(after) != len(before) {
		t.Fatalf("Sheet list changed from %v to %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Sheet list changed from %v to %v", before, after)
		}
	}
	if dst.Styles.Len() != 1 {
		t.Errorf("Failed clones grew the style table to %d", dst.Styles.Len())
	}
}

func TestRemoveRows(t *testing.T) {
	wb := models.NewWorkbook("")
	data, _ := wb.AddSheet("Data")
	for r := 0; r < 6; r++ {
		data.SetCell(r, 0, models.Cell{Value: models.Number(float64(r + 1))})
	}
	data.SetCell(0, 1, models.Cell{Formula: "SUM(A1:A6)", Value: models.Number(21)})
	data.SetRow(5, models.Row{Height: 25, CustomHeight: true})
	other, _ := wb.AddSheet("Resumen")
	other.SetCell(0, 0, models.Cell{Formula: "data!A6", Value: models.Number(6)})
	other.SetCell(1, 0, models.Cell{Formula: "Data!A2", Value: models.Number(2)})
	other.SetCell(2, 0, models.Cell{Formula: "A6", Value: models.Number(0)})

	if err := New(nil).RemoveRows(wb, "Data", 1, 2); err != nil {
		t.Fatalf("RemoveRows failed: %v", err)
	}

	expected := []float64{1, 4, 5, 6}
	for r, want := range expected {
		if got := data.Cell(r, 0).Value.Num; got != want {
			t.Errorf("Row %d: expected %v, got %v", r+1, want, got)
		}
	}
	if data.Cells().Has(4, 0) {
		t.Error("Expected row 5 empty after the shift")
	}
	if row, ok := data.Row(3); !ok || row.Height != 25 {
		t.Errorf("Expected row height to move to row 4, got %+v (%v)", row, ok)
	}

	formulas := []struct {
		sheet    *models.Sheet
		row, col int
		expected string
	}{
		{data, 0, 1, "SUM(A1:A4)"},
		{other, 0, 0, "data!A4"},
		{other, 1, 0, "Data!#REF!"},
		{other, 2, 0, "A6"},
	}
	for _, tt := range formulas {
		if got := tt.sheet.Cell(tt.row, tt.col).Formula; got != tt.expected {
			t.Errorf("%s row %d: expected %q, got %q", tt.sheet.Name(), tt.row+1, tt.expected, got)
		}
	}

	if err := New(nil).RemoveRows(wb, "Nada", 0, 1); !errors.Is(err, models.ErrSheetNotFound) {
		t.Errorf("Expected ErrSheetNotFound, got %v", err)
	}
	if err := New(nil).RemoveRows(wb, "Data", 0, 0); !errors.Is(err, address.ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
}
