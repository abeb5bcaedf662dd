package excelice

import (
	"fmt"

	"go.uber.org/zap"
)

// The methods below are the flat entry points other languages bind to.
// Each returns OK or the Code of the failure and never panics.

// OpenExcel opens or creates the default workbook.
func (s *Session) OpenExcel(path string) Code {
	return s.run("OpenExcel", func() error { return s.Open(SlotDefault, path) })
}

// OpenExcelSrc opens the source workbook, which must exist.
func (s *Session) OpenExcelSrc(path string) Code {
	return s.run("OpenExcelSrc", func() error { return s.Open(SlotSource, path) })
}

// OpenExcelDst opens the destination workbook, creating a new one when
// path does not exist.
func (s *Session) OpenExcelDst(path string) Code {
	return s.run("OpenExcelDst", func() error { return s.Open(SlotDestination, path) })
}

// WriteCell writes a plain value into the default workbook.
func (s *Session) WriteCell(sheet, addr, value string) Code {
	return s.run("WriteCell", func() error { return s.Write(SlotDefault, sheet, addr, value) })
}

// CopyRange copies a rectangle of the default workbook onto the same
// coordinates of dstSheet. Rows and columns are 1-based.
func (s *Session) CopyRange(srcSheet, dstSheet string, startRow, endRow, startCol, endCol int) Code {
	return s.run("CopyRange", func() error {
		return s.Copy(CopyRequest{
			From: SlotDefault, To: SlotDefault,
			SrcSheet: srcSheet, DstSheet: dstSheet,
			StartRow: startRow, EndRow: endRow,
			StartCol: startCol, EndCol: endCol,
			DstRow: startRow, DstCol: startCol,
			IncludeFormulas: true,
		})
	})
}

// CopyRangeBetweenBooks copies a rectangle from the source workbook to the
// destination workbook. Rows and columns are 1-based.
func (s *Session) CopyRangeBetweenBooks(srcSheet, dstSheet string, startRow, endRow, startCol, endCol, dstStartRow, dstStartCol int, includeFormulas bool) Code {
	return s.run("CopyRangeBetweenBooks", func() error {
		return s.Copy(CopyRequest{
			From: SlotSource, To: SlotDestination,
			SrcSheet: srcSheet, DstSheet: dstSheet,
			StartRow: startRow, EndRow: endRow,
			StartCol: startCol, EndCol: endCol,
			DstRow: dstStartRow, DstCol: dstStartCol,
			IncludeFormulas: includeFormulas,
		})
	})
}

// CopySheetBetweenBooks clones a sheet of the source workbook into the
// destination workbook under dstSheet.
func (s *Session) CopySheetBetweenBooks(srcSheet, dstSheet string, includeFormulas bool) Code {
	return s.run("CopySheetBetweenBooks", func() error {
		return s.CloneSheet(SlotSource, SlotDestination, srcSheet, dstSheet, includeFormulas)
	})
}

// SaveExcel saves the default workbook to path.
func (s *Session) SaveExcel(path string) Code {
	return s.run("SaveExcel", func() error { return s.Save(SlotDefault, path) })
}

// SaveExcelDst saves the destination workbook to path.
func (s *Session) SaveExcelDst(path string) Code {
	return s.run("SaveExcelDst", func() error { return s.Save(SlotDestination, path) })
}

// run calls fn and turns its error, or a panic, into a Code.
func (s *Session) run(op string, fn func() error) (code Code) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("operation panicked",
				zap.String("op", op), zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
			code = CodeInternal
		}
	}()
	err := fn()
	code = CodeOf(err)
	if err != nil {
		s.log.Warn("operation failed",
			zap.String("op", op), zap.Stringer("code", code), zap.Error(err))
	}
	return code
}
