package engine

import "github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"

// tx holds the state an operation may touch so a failure can put it back.
type tx struct {
	sheet, sheetSnap   *models.Sheet
	styles, stylesSnap *models.StyleTable
}

// begin snapshots sheet and styles. sheet may be nil when the operation
// builds a sheet that is not attached yet.
func begin(sheet *models.Sheet, styles *models.StyleTable) (*tx, error) {
	t := &tx{sheet: sheet, styles: styles}
	var err error
	if sheet != nil {
		if t.sheetSnap, err = sheet.Snapshot(); err != nil {
			return nil, err
		}
	}
	if t.stylesSnap, err = styles.Snapshot(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tx) rollback() {
	if t.sheet != nil {
		t.sheet.Restore(t.sheetSnap)
	}
	t.styles.Restore(t.stylesSnap)
}
