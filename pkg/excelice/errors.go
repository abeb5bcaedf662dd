package excelice

import (
	"errors"
	"fmt"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/engine"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/formula"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/ooxml"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/registry"
)

// Errors returned by Session methods, matched with errors.Is.
var (
	// ErrFileNotFound indicates a source workbook that does not exist.
	ErrFileNotFound = registry.ErrFileNotFound
	// ErrCorruptArchive indicates a file that is not a readable workbook.
	ErrCorruptArchive = ooxml.ErrCorrupt
	// ErrInvalidHandle indicates a slot with no open workbook.
	ErrInvalidHandle = registry.ErrInvalidHandle
	// ErrSheetNotFound indicates a sheet absent from the workbook.
	ErrSheetNotFound = models.ErrSheetNotFound
	// ErrDuplicateSheetName indicates a sheet name already in use.
	ErrDuplicateSheetName = models.ErrDuplicateSheet
	// ErrInvalidAddress indicates a malformed cell address or sheet name.
	ErrInvalidAddress = address.ErrInvalidAddress
	// ErrInvalidRange indicates a malformed copy rectangle.
	ErrInvalidRange = engine.ErrInvalidRange
	// ErrFormulaRebaseOutOfBounds indicates a copied formula whose
	// references would leave the sheet.
	ErrFormulaRebaseOutOfBounds = formula.ErrOutOfBounds
	// ErrWriteFailure indicates a workbook that could not be stored.
	ErrWriteFailure = registry.ErrWrite
	// ErrSerializationFailure indicates a workbook that could not be encoded.
	ErrSerializationFailure = registry.ErrEncode
)

// Code is the numeric result of a boundary operation. Values are stable.
type Code int

const (
	OK                           Code = 0
	CodeFileNotFound             Code = -1
	CodeCorruptArchive           Code = -2
	CodeInvalidHandle            Code = -3
	CodeSheetNotFound            Code = -4
	CodeDuplicateSheetName       Code = -5
	CodeInvalidAddress           Code = -6
	CodeInvalidRange             Code = -7
	CodeFormulaRebaseOutOfBounds Code = -8
	CodeWriteFailure             Code = -9
	CodeSerializationFailure     Code = -10

	// CodeInternal reports a failure outside the taxonomy.
	CodeInternal Code = -99
)

var codeNames = map[Code]string{
	OK:                           "OK",
	CodeFileNotFound:             "FileNotFound",
	CodeCorruptArchive:           "CorruptArchive",
	CodeInvalidHandle:            "InvalidHandle",
	CodeSheetNotFound:            "SheetNotFound",
	CodeDuplicateSheetName:       "DuplicateSheetName",
	CodeInvalidAddress:           "InvalidAddress",
	CodeInvalidRange:             "InvalidRange",
	CodeFormulaRebaseOutOfBounds: "FormulaRebaseOutOfBounds",
	CodeWriteFailure:             "WriteFailure",
	CodeSerializationFailure:     "SerializationFailure",
	CodeInternal:                 "Internal",
}

var codeMessages = map[Code]string{
	OK:                           "success",
	CodeFileNotFound:             "the workbook file does not exist",
	CodeCorruptArchive:           "the file is not a readable workbook package",
	CodeInvalidHandle:            "no workbook is open for this operation",
	CodeSheetNotFound:            "the sheet does not exist",
	CodeDuplicateSheetName:       "a sheet with that name already exists",
	CodeInvalidAddress:           "the cell address or sheet name is not valid",
	CodeInvalidRange:             "the cell range is not valid",
	CodeFormulaRebaseOutOfBounds: "a copied formula would reference cells outside the sheet",
	CodeWriteFailure:             "the workbook could not be written",
	CodeSerializationFailure:     "the workbook could not be encoded",
	CodeInternal:                 "internal error",
}

// String returns the taxonomy name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Message returns a human-readable description of a code.
func Message(c Code) string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeInternal]
}

// taxonomy is checked in order; the first match wins.
var taxonomy = []struct {
	err  error
	code Code
}{
	{ErrInvalidHandle, CodeInvalidHandle},
	{ErrFileNotFound, CodeFileNotFound},
	{ErrCorruptArchive, CodeCorruptArchive},
	{ErrWriteFailure, CodeWriteFailure},
	{ErrSerializationFailure, CodeSerializationFailure},
	{ErrFormulaRebaseOutOfBounds, CodeFormulaRebaseOutOfBounds},
	{ErrInvalidRange, CodeInvalidRange},
	{ErrSheetNotFound, CodeSheetNotFound},
	{ErrDuplicateSheetName, CodeDuplicateSheetName},
	{ErrInvalidAddress, CodeInvalidAddress},
	{models.ErrInvalidSheetName, CodeInvalidAddress},
}

// CodeOf maps an error to its code. nil is OK; errors outside the taxonomy
// are CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.code
		}
	}
	return CodeInternal
}

// OpError records the operation and slot of a failed call.
type OpError struct {
	Op    string
	Slot  Slot
	Sheet string
	Err   error
}

func (e *OpError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("%s on %s workbook, sheet %q: %v", e.Op, e.Slot, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s on %s workbook: %v", e.Op, e.Slot, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, slot Slot, sheet string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Slot: slot, Sheet: sheet, Err: err}
}
