package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/formula"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
)

// CopyRange copies the rectangle described by req from a sheet of src to a
// sheet of dst. src and dst may be the same workbook and the rectangles may
// overlap: the source is read completely before anything is written.
func (e *Engine) CopyRange(src, dst *models.Workbook, req RangeRequest) error {
	if err := e.check(req); err != nil {
		return err
	}
	from, err := src.Sheet(req.SrcSheet)
	if err != nil {
		return err
	}
	rect := req.Source()
	dRow, dCol := req.Offset()
	target, ok := rect.Offset(dRow, dCol)
	if !ok {
		return fmt.Errorf("%w: %s moved by (%d,%d) leaves the sheet", ErrInvalidRange, rect, dRow, dCol)
	}

	c := &copier{
		log:      e.log,
		src:      src,
		dst:      dst,
		from:     from,
		rect:     rect,
		dRow:     dRow,
		dCol:     dCol,
		formulas: req.IncludeFormulas,
		styles:   models.NewStyleImporter(dst.Styles, src.Styles),
		warned:   make(map[string]bool),
	}

	to, err := dst.Sheet(req.DstSheet)
	if err != nil {
		// build the new sheet detached so a failure leaves no trace
		if err := models.ValidateSheetName(req.DstSheet); err != nil {
			return err
		}
		tx, err := begin(nil, dst.Styles)
		if err != nil {
			return err
		}
		to = models.NewSheet(req.DstSheet)
		if err := c.run(to, req.Layout); err != nil {
			tx.rollback()
			return err
		}
		if err := dst.InsertSheet(to); err != nil {
			tx.rollback()
			return err
		}
		e.log.Debug("range copied to new sheet",
			zap.String("src", req.SrcSheet), zap.String("dst", req.DstSheet), zap.Stringer("range", rect))
		return nil
	}

	tx, err := begin(to, dst.Styles)
	if err != nil {
		return err
	}
	if err := c.run(to, req.Layout); err != nil {
		tx.rollback()
		return err
	}
	e.log.Debug("range copied",
		zap.String("src", req.SrcSheet), zap.String("dst", req.DstSheet),
		zap.Stringer("range", rect), zap.Stringer("target", target))
	return nil
}

// copier carries one copy operation.
type copier struct {
	log        *zap.Logger
	src, dst   *models.Workbook
	from       *models.Sheet
	rect       address.Range
	dRow, dCol int
	formulas   bool
	styles     *models.StyleImporter
	warned     map[string]bool
}

func (c *copier) crossBook() bool { return c.src != c.dst }

// run writes the copy into to. On error to may be partially written; the
// caller restores it.
func (c *copier) run(to *models.Sheet, layout bool) error {
	entries := c.from.Cells().Within(c.rect)
	target, _ := c.rect.Offset(c.dRow, c.dCol)
	var lay sourceLayout
	if layout {
		lay = c.captureLayout()
	}

	for _, old := range to.Cells().Within(target) {
		to.Cells().Delete(old.Row, old.Col)
	}
	for _, en := range entries {
		cell, err := c.translate(en.Cell)
		if err != nil {
			return fmt.Errorf("cell %s: %w", address.MustFormat(en.Row, en.Col), err)
		}
		to.SetCell(en.Row+c.dRow, en.Col+c.dCol, cell)
	}
	if layout {
		c.copyLayout(to, target, lay)
	}
	return nil
}

// translate returns the destination form of a source cell.
func (c *copier) translate(cell models.Cell) (models.Cell, error) {
	cell.Style = c.styles.Import(cell.Style)
	if cell.Table != nil {
		if c.formulas {
			cell.Table = c.moveTable(cell.Table)
		} else {
			cell.Table = nil
		}
	}
	if cell.Formula == "" {
		return cell, nil
	}
	if !c.formulas {
		cell.Formula, cell.ArrayRef = "", ""
		return cell, nil
	}
	text, err := formula.Rebase(cell.Formula, c.dRow, c.dCol)
	if err != nil {
		return cell, err
	}
	cell.Formula = text
	if ref := cell.ArrayRef; ref != "" {
		cell.ArrayRef = ""
		if r, err := address.ParseRange(ref); err == nil {
			if moved, ok := r.Offset(c.dRow, c.dCol); ok {
				cell.ArrayRef = moved.String()
			}
		}
	}
	if c.crossBook() {
		c.checkRefs(text)
	}
	return cell, nil
}

// moveTable translates the range and input cells of a data table. A table
// that would leave the sheet is dropped and the cell keeps its value.
func (c *copier) moveTable(t *models.DataTable) *models.DataTable {
	r, err := address.ParseRange(t.Ref)
	if err != nil {
		return nil
	}
	moved, ok := r.Offset(c.dRow, c.dCol)
	if !ok {
		return nil
	}
	out := &models.DataTable{Ref: moved.String(), Attrs: make([]models.Attr, len(t.Attrs))}
	for i, a := range t.Attrs {
		if a.Name == "r1" || a.Name == "r2" {
			row, col, err := address.Parse(a.Value)
			if err != nil {
				return nil
			}
			ref, err := address.Format(row+c.dRow, col+c.dCol)
			if err != nil {
				return nil
			}
			a.Value = ref
		}
		out.Attrs[i] = a
	}
	return out
}

// checkRefs warns once per sheet name a copied formula references but the
// destination workbook lacks.
func (c *copier) checkRefs(text string) {
	for _, name := range formula.SheetRefs(text) {
		if c.dst.HasSheet(name) || c.warned[name] {
			continue
		}
		c.warned[name] = true
		c.log.Warn("copied formula references a sheet missing from the destination",
			zap.String("sheet", name), zap.String("formula", text))
	}
}

// sourceLayout is the layout inside the source rectangle, read before the
// destination is touched.
type sourceLayout struct {
	merges []address.Range
	colIdx []int
	cols   []models.Column
	rowIdx []int
	rows   []models.Row
}

func (c *copier) captureLayout() sourceLayout {
	var lay sourceLayout
	for _, m := range c.from.Merges() {
		if c.rect.ContainsRange(m) {
			lay.merges = append(lay.merges, m)
		}
	}
	for _, col := range c.from.ColumnIndexes() {
		if col >= c.rect.StartCol && col <= c.rect.EndCol {
			info, _ := c.from.Column(col)
			lay.colIdx = append(lay.colIdx, col)
			lay.cols = append(lay.cols, info)
		}
	}
	for _, row := range c.from.RowIndexes() {
		if row >= c.rect.StartRow && row <= c.rect.EndRow {
			info, _ := c.from.Row(row)
			lay.rowIdx = append(lay.rowIdx, row)
			lay.rows = append(lay.rows, info)
		}
	}
	return lay
}

func (c *copier) copyLayout(to *models.Sheet, target address.Range, lay sourceLayout) {
	to.UnmergeWithin(target)
	for _, m := range lay.merges {
		if moved, ok := m.Offset(c.dRow, c.dCol); ok {
			to.AddMerge(moved)
		}
	}
	for i, info := range lay.cols {
		info.Style = c.styles.Import(info.Style)
		to.SetColumn(lay.colIdx[i]+c.dCol, info)
	}
	for i, info := range lay.rows {
		info.Style = c.styles.Import(info.Style)
		to.SetRow(lay.rowIdx[i]+c.dRow, info)
	}
}
