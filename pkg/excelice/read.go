package excelice

import (
	"strconv"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// ReadSheet returns the populated rows of sheet. Cells without a value or
// formula are skipped, and so are rows holding only such cells.
func (s *Session) ReadSheet(slot Slot, sheet string) ([]models.CellRow, error) {
	var rows []models.CellRow
	err := s.with(slot, func(wb *models.Workbook) error {
		sh, err := wb.Sheet(sheet)
		if err != nil {
			return err
		}
		rows = sheetRows(sh)
		return nil
	})
	return rows, opError("read sheet", slot, sheet, err)
}

// sheetRows groups the cells of a sheet by row. Indexes are 1-based.
func sheetRows(sh *models.Sheet) []models.CellRow {
	var result []models.CellRow
	var cur *models.CellRow
	for _, e := range sh.Cells().Entries() {
		if e.Cell.Value.IsEmpty() && e.Cell.Formula == "" {
			continue
		}
		if cur == nil || cur.R != e.Row+1 {
			result = append(result, models.CellRow{R: e.Row + 1, C: make(map[string]interface{})})
			cur = &result[len(result)-1]
		}
		colStr := strconv.Itoa(e.Col + 1)
		if !e.Cell.Value.IsEmpty() {
			cur.C[colStr] = e.Cell.Value.Interface()
		}
		if e.Cell.Formula != "" {
			if cur.F == nil {
				cur.F = make(map[string]string)
			}
			cur.F[colStr] = "=" + e.Cell.Formula
		}
	}
	return result
}
