// Package models defines the in-memory workbook document model.
package models

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a cell value holds.
type Kind uint8

const (
	// KindEmpty is the value of a cell that holds nothing.
	KindEmpty Kind = iota
	// KindString is a text value.
	KindString
	// KindNumber is a numeric value.
	KindNumber
	// KindBool is a boolean value.
	KindBool
	// KindError is an error literal such as #DIV/0!.
	KindError
	// KindDate is an ISO 8601 date or time stored as text.
	KindDate
	// KindFormula is reported by Cell.Kind for cells carrying formula text.
	// A Value itself never has this kind.
	KindFormula
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindError:
		return "error"
	case KindDate:
		return "date"
	case KindFormula:
		return "formula"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged cell value. Build values with the constructors below;
// the zero Value is the empty value.
type Value struct {
	// Kind selects the variant.
	Kind Kind
	// Text holds string and error content, and the persisted form of
	// numbers ("25", "1.5E-3") and booleans ("1", "0").
	Text string
	// Num holds the numeric content of a KindNumber value.
	Num float64
}

// Empty returns the empty value.
func Empty() Value { return Value{} }

// String returns a text value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Text: strconv.FormatFloat(f, 'f', -1, 64), Num: f}
}

// NumberText returns a numeric value keeping raw as its persisted form.
func NumberText(raw string) (Value, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindNumber, Text: raw, Num: f}, nil
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, Text: "1"}
	}
	return Value{Kind: KindBool, Text: "0"}
}

// Error returns an error literal value.
func Error(code string) Value { return Value{Kind: KindError, Text: code} }

// Date returns a date value holding its ISO 8601 text.
func Date(iso string) Value { return Value{Kind: KindDate, Text: iso} }

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Truth returns the content of a boolean value.
func (v Value) Truth() bool { return v.Kind == KindBool && v.Text == "1" }

// Display returns the value as a spreadsheet shows it without number
// formatting applied.
func (v Value) Display() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindBool:
		if v.Truth() {
			return "TRUE"
		}
		return "FALSE"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Text
}

// Interface returns the value as a Go value: nil, string, int64 for
// integral numbers, float64, or bool.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString, KindError, KindDate:
		return v.Text
	case KindNumber:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1<<53 {
			return int64(v.Num)
		}
		return v.Num
	case KindBool:
		return v.Truth()
	}
	return nil
}

// ParseValue turns user input into a value: integers and decimals become
// numbers, anything else is kept as text.
func ParseValue(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Value{Kind: KindNumber, Text: strconv.FormatInt(i, 10), Num: float64(i)}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !isSpecialFloat(s) {
		return Number(f)
	}
	if s == "" {
		return Empty()
	}
	return String(s)
}

// isSpecialFloat reports spellings ParseFloat accepts that a spreadsheet
// would keep as text.
func isSpecialFloat(s string) bool {
	l := strings.ToLower(strings.TrimLeft(s, "+-"))
	return strings.HasPrefix(l, "inf") || strings.HasPrefix(l, "nan") ||
		strings.HasPrefix(l, "0x") || strings.Contains(s, "_")
}
