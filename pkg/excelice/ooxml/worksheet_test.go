package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// withSheetData returns a package whose first worksheet holds rows.
func withSheetData(t *testing.T, rows string) []byte {
	t.Helper()
	base := fixture(t, func(f *excelize.File) {})
	part := xmlHeader + `<worksheet xmlns="` + nsMain + `"><dimension ref="A1"/>` +
		`<sheetData>` + rows + `</sheetData></worksheet>`

	zr, err := zip.NewReader(bytes.NewReader(base), int64(len(base)))
	if err != nil {
		t.Fatalf("Failed to read package: %v", err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatal(err)
		}
		if f.Name == "xl/worksheets/sheet1.xml" {
			w.Write([]byte(part))
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(w, rc)
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDateCellsKeepTheirType(t *testing.T) {
	data := withSheetData(t, `<row r="1"><c r="A1" t="d"><v>2024-03-15T00:00:00</v></c><c r="B1"><v>5</v></c></row>`)
	doc, err := Decode(data, "")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	s, _ := doc.Workbook.Sheet("Sheet1")
	if c := s.Cell(0, 0); c.Kind() != models.KindDate || c.Value.Interface() != "2024-03-15T00:00:00" {
		t.Fatalf("A1 = %+v, expected a date", c)
	}

	s.SetCell(0, 2, models.Cell{Value: models.Number(1)})
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	sheet := string(partOf(t, out, "xl/worksheets/sheet1.xml"))
	if !strings.Contains(sheet, `<c r="A1" t="d"><v>2024-03-15T00:00:00</v></c>`) {
		t.Errorf("date cell not written as a date: %s", sheet)
	}

	again, err := Decode(out, "")
	if err != nil {
		t.Fatalf("Decode of encoded package failed: %v", err)
	}
	s2, _ := again.Workbook.Sheet("Sheet1")
	if c := s2.Cell(0, 0); c.Kind() != models.KindDate {
		t.Errorf("A1 kind after save = %v, expected date", c.Kind())
	}
}

func TestDataTableSurvivesRewrite(t *testing.T) {
	data := withSheetData(t, `<row r="1"><c r="A1"><v>3</v></c></row>`+
		`<row r="2"><c r="B2"><f t="dataTable" ref="B2:B4" dt2D="0" dtr="0" r1="A1"/><v>10</v></c></row>`)
	doc, err := Decode(data, "")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	s, _ := doc.Workbook.Sheet("Sheet1")
	c := s.Cell(1, 1)
	if c.Table == nil || c.Table.Ref != "B2:B4" {
		t.Fatalf("B2 table = %+v", c.Table)
	}
	if r1, _ := c.Table.Attr("r1"); r1 != "A1" {
		t.Errorf("B2 table input = %q, expected A1", r1)
	}

	s.SetCell(5, 0, models.Cell{Value: models.String("otro")})
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	sheet := string(partOf(t, out, "xl/worksheets/sheet1.xml"))
	if !strings.Contains(sheet, `<f t="dataTable" ref="B2:B4" dt2D="0" dtr="0" r1="A1">`) {
		t.Errorf("data table formula lost: %s", sheet)
	}
	again, err := Decode(out, "")
	if err != nil {
		t.Fatalf("Decode of encoded package failed: %v", err)
	}
	s2, _ := again.Workbook.Sheet("Sheet1")
	if c := s2.Cell(1, 1); c.Table == nil || c.Value.Num != 10 {
		t.Errorf("B2 after save = %+v", c)
	}
}

func TestDecodeBrokenSharedFormula(t *testing.T) {
	tests := []struct {
		name string
		rows string
	}{
		{"undefined group", `<row r="1"><c r="C1"><f t="shared" si="7"/><v>2</v></c></row>`},
		{"shifted off the sheet",
			`<row r="2"><c r="C2"><f t="shared" ref="C1:C2" si="0">A1*2</f><v>2</v></c></row>` +
				`<row r="1"><c r="C1"><f t="shared" si="0"/><v>2</v></c></row>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(withSheetData(t, tt.rows), ""); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode error = %v, expected ErrCorrupt", err)
			}
		})
	}
}
