// Package engine implements the operations that mutate workbooks: range
// copy with formula rebasing, sheet cloning and row removal. Every
// operation either completes or leaves the destination as it found it.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// ErrInvalidRange indicates a malformed copy rectangle.
var ErrInvalidRange = errors.New("invalid range")

// RangeRequest describes a rectangular copy. Coordinates are zero-based and
// the source rectangle is inclusive on both ends.
type RangeRequest struct {
	// SrcSheet names the sheet to copy from; it must exist.
	SrcSheet string `validate:"required"`
	// DstSheet names the sheet to copy to; it is created when absent.
	DstSheet string `validate:"required"`

	StartRow int `validate:"gte=0,lt=1048576"`
	EndRow   int `validate:"gte=0,lt=1048576,gtefield=StartRow"`
	StartCol int `validate:"gte=0,lt=16384"`
	EndCol   int `validate:"gte=0,lt=16384,gtefield=StartCol"`

	// DstRow and DstCol are the top-left destination cell.
	DstRow int `validate:"gte=0,lt=1048576"`
	DstCol int `validate:"gte=0,lt=16384"`

	// IncludeFormulas copies formula text, rebased to the destination.
	// Otherwise formula cells are copied as their last computed value.
	IncludeFormulas bool
	// Layout also copies merged regions inside the rectangle, column
	// widths and row heights.
	Layout bool
}

// Source returns the source rectangle.
func (r RangeRequest) Source() address.Range {
	return address.Range{StartRow: r.StartRow, StartCol: r.StartCol, EndRow: r.EndRow, EndCol: r.EndCol}
}

// Offset returns the translation from source to destination.
func (r RangeRequest) Offset() (dRow, dCol int) {
	return r.DstRow - r.StartRow, r.DstCol - r.StartCol
}

// Engine runs copy and edit operations on workbook models. It holds no
// workbook state; callers serialize access to the workbooks they pass in.
type Engine struct {
	log      *zap.Logger
	validate *validator.Validate
}

// New returns an engine logging to log; nil disables logging.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, validate: validator.New()}
}

func (e *Engine) check(req RangeRequest) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRange, strings.Join(msgs, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRange, err)
}
