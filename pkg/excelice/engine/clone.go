package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// CloneSheet copies the sheet srcSheet of src into a new sheet dstSheet of
// dst: every populated cell at the same coordinates, plus columns, rows and
// merged regions. The destination name must be free; an existing sheet is
// never overwritten.
func (e *Engine) CloneSheet(src, dst *models.Workbook, srcSheet, dstSheet string, includeFormulas bool) error {
	from, err := src.Sheet(srcSheet)
	if err != nil {
		return err
	}
	if err := models.ValidateSheetName(dstSheet); err != nil {
		return err
	}
	if dst.HasSheet(dstSheet) {
		return fmt.Errorf("%w: %q", models.ErrDuplicateSheet, dstSheet)
	}

	tx, err := begin(nil, dst.Styles)
	if err != nil {
		return err
	}
	c := &copier{
		log:      e.log,
		src:      src,
		dst:      dst,
		from:     from,
		rect:     wholeSheet,
		formulas: includeFormulas,
		styles:   models.NewStyleImporter(dst.Styles, src.Styles),
		warned:   make(map[string]bool),
	}
	to := models.NewSheet(dstSheet)
	if err := c.run(to, true); err != nil {
		tx.rollback()
		return err
	}
	if err := dst.InsertSheet(to); err != nil {
		tx.rollback()
		return err
	}
	e.log.Debug("sheet cloned",
		zap.String("src", srcSheet), zap.String("dst", dstSheet),
		zap.Int("cells", to.Cells().Len()), zap.Bool("crossBook", src != dst))
	return nil
}

var wholeSheet = address.Range{EndRow: address.MaxRows - 1, EndCol: address.MaxCols - 1}
