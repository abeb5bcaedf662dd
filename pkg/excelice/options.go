// Package excelice edits spreadsheet workbooks: open and save packages,
// write cells, and copy ranges and whole sheets within or between
// workbooks while keeping formulas and formats intact.
package excelice

import "go.uber.org/zap"

// Options configures a Session.
type Options struct {
	// Logger receives operation logs. If nil, nothing is logged.
	Logger *zap.Logger
	// CreateMissing specifies whether opening a default or destination
	// workbook at a path that does not exist starts a new workbook.
	// If nil, defaults to true. Source workbooks must always exist.
	CreateMissing *bool
	// CopyLayout specifies whether range copies also carry merged regions,
	// column widths and row heights.
	// If nil, defaults to true.
	CopyLayout *bool
}

// DefaultOptions returns default session options.
func DefaultOptions() Options {
	return Options{}
}

// ShouldCreateMissing returns whether missing default and destination
// workbooks are created.
func (o Options) ShouldCreateMissing() bool {
	if o.CreateMissing != nil {
		return *o.CreateMissing
	}
	return true
}

// ShouldCopyLayout returns whether range copies carry layout.
func (o Options) ShouldCopyLayout() bool {
	if o.CopyLayout != nil {
		return *o.CopyLayout
	}
	return true
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
