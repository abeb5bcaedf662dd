package engine

import (
	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/formula"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// RemoveRows deletes count rows of sheet starting at the zero-based row
// first. Cells, row layout and merges below move up. Formulas anywhere in
// the workbook that point into the sheet are adjusted; references to a
// removed row become #REF!.
func (e *Engine) RemoveRows(wb *models.Workbook, sheet string, first, count int) error {
	s, err := wb.Sheet(sheet)
	if err != nil {
		return err
	}
	if err := s.RemoveRows(first, count); err != nil {
		return err
	}
	rewritten := 0
	for _, other := range wb.Sheets() {
		rm := formula.RowRemoval{
			Sheet:     s.Name(),
			Home:      other.Name(),
			First:     first,
			Count:     count,
			SameSheet: models.SameSheetName,
		}
		for _, en := range other.Cells().Entries() {
			if en.Cell.Formula == "" {
				continue
			}
			text := formula.RemoveRows(en.Cell.Formula, rm)
			if text == en.Cell.Formula {
				continue
			}
			cell := en.Cell
			cell.Formula = text
			other.SetCell(en.Row, en.Col, cell)
			rewritten++
		}
	}
	e.log.Debug("rows removed",
		zap.String("sheet", s.Name()), zap.Int("first", first), zap.Int("count", count),
		zap.Int("formulasRewritten", rewritten))
	return nil
}
