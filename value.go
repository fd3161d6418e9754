package dbf

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a decoded field value. The concrete type matches the field type;
// the zero value of every concrete type is the absent (blank) value.
type Value interface {
	Type() FieldType
	IsNull() bool
}

type Character struct {
	String string
	Valid  bool
}

type Numeric struct {
	Decimal decimal.Decimal
	Valid   bool
}

type Logical struct {
	Bool  bool
	Valid bool
}

// Date is a calendar date. Time is midnight UTC.
type Date struct {
	Time  time.Time
	Valid bool
}

type Float struct {
	Float64 float64
	Valid   bool
}

// Currency is a fixed-point amount in ten-thousandths.
type Currency struct {
	Units int64
	Valid bool
}

// DateTime has millisecond precision and no zone; Time is expressed in UTC.
type DateTime struct {
	Time  time.Time
	Valid bool
}

type Integer struct {
	Int32 int32
	Valid bool
}

type Double struct {
	Float64 float64
	Valid   bool
}

// Memo references a block of the companion memo file. Content is fetched
// with Reader.Memo.
type Memo struct {
	Block uint32
	Valid bool
}

func (Character) Type() FieldType { return TypeCharacter }
func (Numeric) Type() FieldType   { return TypeNumeric }
func (Logical) Type() FieldType   { return TypeLogical }
func (Date) Type() FieldType      { return TypeDate }
func (Float) Type() FieldType     { return TypeFloat }
func (Currency) Type() FieldType  { return TypeCurrency }
func (DateTime) Type() FieldType  { return TypeDateTime }
func (Integer) Type() FieldType   { return TypeInteger }
func (Double) Type() FieldType    { return TypeDouble }
func (Memo) Type() FieldType      { return TypeMemo }

func (v Character) IsNull() bool { return !v.Valid }
func (v Numeric) IsNull() bool   { return !v.Valid }
func (v Logical) IsNull() bool   { return !v.Valid }
func (v Date) IsNull() bool      { return !v.Valid }
func (v Float) IsNull() bool     { return !v.Valid }
func (v Currency) IsNull() bool  { return !v.Valid }
func (v DateTime) IsNull() bool  { return !v.Valid }
func (v Integer) IsNull() bool   { return !v.Valid }
func (v Double) IsNull() bool    { return !v.Valid }
func (v Memo) IsNull() bool      { return !v.Valid }

func NewCharacter(s string) Character { return Character{String: s, Valid: true} }

func NewNumeric(d decimal.Decimal) Numeric { return Numeric{Decimal: d, Valid: true} }

func NewNumericInt(i int64) Numeric { return NewNumeric(decimal.NewFromInt(i)) }

func NewNumericFloat(f float64) Numeric { return NewNumeric(decimal.NewFromFloat(f)) }

// ParseNumeric parses a decimal literal such as "-12.50".
func ParseNumeric(s string) (Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Numeric{}, err
	}
	return NewNumeric(d), nil
}

func NewLogical(b bool) Logical { return Logical{Bool: b, Valid: true} }

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

func NewFloat(f float64) Float { return Float{Float64: f, Valid: true} }

func NewCurrency(units int64) Currency { return Currency{Units: units, Valid: true} }

// NewCurrencyDecimal rounds d to four decimal places.
func NewCurrencyDecimal(d decimal.Decimal) Currency {
	return NewCurrency(d.Shift(currencyScale).Round(0).IntPart())
}

// Decimal converts the fixed-point amount.
func (v Currency) Decimal() decimal.Decimal { return decimal.New(v.Units, -currencyScale) }

// NewDateTime truncates t to milliseconds and converts it to UTC wall time.
func NewDateTime(t time.Time) DateTime {
	t = t.UTC().Truncate(time.Millisecond)
	return DateTime{Time: t, Valid: true}
}

func NewInteger(i int32) Integer { return Integer{Int32: i, Valid: true} }

func NewDouble(f float64) Double { return Double{Float64: f, Valid: true} }

func NewMemo(block uint32) Memo { return Memo{Block: block, Valid: block != 0} }

const currencyScale = 4

// Null returns the absent value for a field type.
func Null(t FieldType) Value {
	switch t {
	case TypeCharacter:
		return Character{}
	case TypeNumeric:
		return Numeric{}
	case TypeLogical:
		return Logical{}
	case TypeDate:
		return Date{}
	case TypeFloat:
		return Float{}
	case TypeCurrency:
		return Currency{}
	case TypeDateTime:
		return DateTime{}
	case TypeInteger:
		return Integer{}
	case TypeDouble:
		return Double{}
	case TypeMemo:
		return Memo{}
	}
	return nil
}

// Format renders a value the way xBase tools display it. Absent values render
// as an empty string.
func Format(v Value) string {
	if v == nil || v.IsNull() {
		return ""
	}
	switch v := v.(type) {
	case Character:
		return v.String
	case Numeric:
		return v.Decimal.String()
	case Logical:
		if v.Bool {
			return "T"
		}
		return "F"
	case Date:
		return v.Time.Format("2006-01-02")
	case Float:
		return fmt.Sprint(v.Float64)
	case Currency:
		return v.Decimal().StringFixed(currencyScale)
	case DateTime:
		return v.Time.Format("2006-01-02T15:04:05.000")
	case Integer:
		return fmt.Sprint(v.Int32)
	case Double:
		return fmt.Sprint(v.Float64)
	case Memo:
		return fmt.Sprintf("memo@%d", v.Block)
	}
	return fmt.Sprint(v)
}

// julianDay returns the Julian day number of a Gregorian date.
func julianDay(year int, month time.Month, day int) int32 {
	a := (14 - int(month)) / 12
	y := year + 4800 - a
	m := int(month) + 12*a - 3
	return int32(day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045)
}

// fromJulianDay is the inverse of julianDay.
func fromJulianDay(jdn int32) (int, time.Month, int) {
	a := int(jdn) + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return year, time.Month(month), day
}
