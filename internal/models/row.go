package models

import (
	"encoding/json"
	"math"
	"time"
)

// RawValue is one spreadsheet cell before coercion. XLSX numeric cells arrive
// with IsNumber set; CSV cells are always text.
type RawValue struct {
	Text     string
	Number   float64
	IsNumber bool
	Present  bool
}

func TextCell(s string) RawValue {
	return RawValue{Text: s, Present: true}
}

func NumberCell(f float64) RawValue {
	return RawValue{Number: f, IsNumber: true, Present: true}
}

// RawRow maps a header name to its cell. Every header column has a key even
// when the cell is blank.
type RawRow map[string]RawValue

// Table is the parsed content of one uploaded file.
type Table struct {
	Header []string
	Rows   []RawRow
}

const InvalidDate = "Invalid Date"

// Date is a timezone-naive calendar date. The zero value is the invalid sentinel.
type Date struct {
	t     time.Time
	valid bool
}

func NewDate(t time.Time) Date {
	return Date{t: t.UTC(), valid: true}
}

func (d Date) Valid() bool { return d.valid }

func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if !d.valid {
		return InvalidDate
	}
	return d.t.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Value is a coerced cell. Degraded marks a cell that was absent or failed to
// parse and fell back to its zero-equivalent.
type Value struct {
	Kind     CoercionKind
	Num      float64
	Text     string
	Date     Date
	Degraded bool
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Kind.Numeric():
		return json.Marshal(Number(v.Num))
	case v.Kind == KindDate:
		return json.Marshal(v.Date)
	default:
		return json.Marshal(v.Text)
	}
}

type CoercedRow map[string]Value

// Float returns the numeric value of column, 0 when the column is missing.
func (r CoercedRow) Float(column string) float64 {
	return r[column].Num
}

// Measure is Float but reports degraded or missing cells as NaN, for views
// that exclude unparseable values instead of counting them as zero.
func (r CoercedRow) Measure(column string) float64 {
	v, ok := r[column]
	if !ok || v.Degraded {
		return math.NaN()
	}
	return v.Num
}

func (r CoercedRow) Text(column string) string {
	return r[column].Text
}

func (r CoercedRow) Date(column string) Date {
	return r[column].Date
}
