// Package address converts between A1-style cell addresses and zero-based
// (row, column) coordinates.
package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrInvalidAddress indicates a cell or range address that cannot be parsed
// or that falls outside the sheet bounds.
var ErrInvalidAddress = errors.New("invalid cell address")

const (
	// MaxRows is the number of rows in a sheet.
	MaxRows = excelize.TotalRows
	// MaxCols is the number of columns in a sheet.
	MaxCols = excelize.MaxColumns
)

// maxColumnLetters bounds the letter run so base-26 conversion never
// overflows; "XFD" is the last column.
const maxColumnLetters = 3

var cellPattern = regexp.MustCompile(`^[A-Za-z]+[1-9][0-9]*$`)

// Parse converts an address such as "B12" into zero-based coordinates.
// Column letters are case-insensitive.
func Parse(addr string) (row, col int, err error) {
	if !cellPattern.MatchString(addr) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	if letters := strings.IndexFunc(addr, isDigit); letters > maxColumnLetters {
		return 0, 0, fmt.Errorf("%w: %q: column out of range", ErrInvalidAddress, addr)
	}
	c, r, err := excelize.CellNameToCoordinates(addr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	return r - 1, c - 1, nil
}

// Format converts zero-based coordinates back into an address.
// Format(Parse(a)) returns a with the column letters upper-cased.
func Format(row, col int) (string, error) {
	if !InBounds(row, col) {
		return "", fmt.Errorf("%w: (%d, %d) out of range", ErrInvalidAddress, row, col)
	}
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return name, nil
}

// MustFormat is like Format but panics on coordinates outside the sheet.
// It is meant for coordinates already known to be valid.
func MustFormat(row, col int) string {
	s, err := Format(row, col)
	if err != nil {
		panic(err)
	}
	return s
}

// ColumnName returns the letters for a zero-based column index.
func ColumnName(col int) (string, error) {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return "", fmt.Errorf("%w: column %d: %v", ErrInvalidAddress, col, err)
	}
	return name, nil
}

// ColumnIndex returns the zero-based index for column letters.
func ColumnIndex(letters string) (int, error) {
	if letters == "" || len(letters) > maxColumnLetters {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, letters)
	}
	n, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, fmt.Errorf("%w: column %q: %v", ErrInvalidAddress, letters, err)
	}
	return n - 1, nil
}

// InBounds reports whether zero-based coordinates address a cell of a sheet.
func InBounds(row, col int) bool {
	return row >= 0 && row < MaxRows && col >= 0 && col < MaxCols
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
