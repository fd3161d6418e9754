package dbf

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	SPACE = 0x20
	EOF   = 0x1A
	NUL   = 0x00
)

const msPerDay = 24 * 60 * 60 * 1000

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != SPACE && c != NUL {
			return false
		}
	}
	return true
}

func allBytes(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}

func trimField(b []byte, trim TrimOption) []byte {
	switch trim {
	case TrimNone:
		return b
	case TrimBoth:
		return bytes.Trim(b, " \x00")
	default:
		return bytes.TrimRight(b, " \x00")
	}
}

func invalidValue(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidFieldValue, format, args...)
}

// decodeValue turns the raw bytes of one field into a Value. raw must be
// exactly f.Length bytes long.
func decodeValue(f *Field, raw []byte, trim TrimOption, enc Encoding) (Value, error) {
	switch f.Type {
	case TypeCharacter:
		if isBlank(raw) {
			return Character{}, nil
		}
		s, err := enc.Decode(trimField(raw, trim))
		if err != nil {
			return Character{}, errors.Wrap(ErrInvalidFieldValue, err.Error())
		}
		return NewCharacter(s), nil

	case TypeNumeric:
		s, ok := numericText(raw)
		if !ok {
			return Numeric{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Numeric{}, nil
		}
		return NewNumeric(d), nil

	case TypeFloat:
		s, ok := numericText(raw)
		if !ok {
			return Float{}, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Float{}, nil
		}
		return NewFloat(v), nil

	case TypeLogical:
		switch raw[0] {
		case 'T', 't', 'Y', 'y':
			return NewLogical(true), nil
		case 'F', 'f', 'N', 'n':
			return NewLogical(false), nil
		case '?', SPACE, NUL:
			return Logical{}, nil
		}
		return Logical{}, invalidValue("logical byte %q", raw[0])

	case TypeDate:
		return decodeDate(raw)

	case TypeCurrency:
		if allBytes(raw, SPACE) {
			return Currency{}, nil
		}
		return NewCurrency(int64(binary.LittleEndian.Uint64(raw))), nil

	case TypeDateTime:
		if allBytes(raw, SPACE) || allBytes(raw, NUL) {
			return DateTime{}, nil
		}
		jdn := int32(binary.LittleEndian.Uint32(raw[0:4]))
		ms := int32(binary.LittleEndian.Uint32(raw[4:8]))
		if ms < 0 || ms >= msPerDay {
			return DateTime{}, invalidValue("datetime milliseconds %d out of range", ms)
		}
		y, m, d := fromJulianDay(jdn)
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(ms) * time.Millisecond)
		return DateTime{Time: t, Valid: true}, nil

	case TypeInteger:
		if allBytes(raw, SPACE) {
			return Integer{}, nil
		}
		return NewInteger(int32(binary.LittleEndian.Uint32(raw))), nil

	case TypeDouble:
		if allBytes(raw, SPACE) {
			return Double{}, nil
		}
		return NewDouble(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil

	case TypeMemo:
		return decodeMemoRef(raw)
	}
	return nil, invalidValue("unsupported field type %s", f.Type)
}

// numericText returns the trimmed text of a Numeric/Float field, false when
// the field is blank or holds the '*' overflow marker.
func numericText(raw []byte) (string, bool) {
	s := strings.TrimSpace(string(bytes.Trim(raw, " \x00")))
	if s == "" || strings.Trim(s, "*") == "" {
		return "", false
	}
	return s, true
}

func decodeDate(raw []byte) (Value, error) {
	if isBlank(raw) || allBytes(raw, '0') {
		return Date{}, nil
	}
	if len(raw) != 8 {
		return Date{}, invalidValue("date field of %d bytes", len(raw))
	}
	var parts [3]int
	for i, span := range [3][2]int{{0, 4}, {4, 6}, {6, 8}} {
		n := 0
		for _, c := range raw[span[0]:span[1]] {
			if c < '0' || c > '9' {
				return Date{}, invalidValue("date %q", raw)
			}
			n = n*10 + int(c-'0')
		}
		parts[i] = n
	}
	year, month, day := parts[0], time.Month(parts[1]), parts[2]
	d := NewDate(year, month, day)
	if month < time.January || month > time.December || d.Time.Day() != day || d.Time.Month() != month {
		return Date{}, invalidValue("date %q", raw)
	}
	return d, nil
}

func decodeMemoRef(raw []byte) (Value, error) {
	if len(raw) == 4 {
		if allBytes(raw, SPACE) {
			return Memo{}, nil
		}
		return NewMemo(binary.LittleEndian.Uint32(raw)), nil
	}
	s := strings.TrimSpace(string(bytes.Trim(raw, " \x00")))
	if s == "" {
		return Memo{}, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return Memo{}, invalidValue("memo block %q", s)
	}
	return NewMemo(uint32(n)), nil
}

// encodeValue serializes v into exactly f.Length bytes.
func encodeValue(f *Field, v Value, enc Encoding) ([]byte, error) {
	if v == nil {
		return nil, invalidValue("missing value for %s field", f.Type)
	}
	if v.Type() != f.Type {
		return nil, invalidValue("%s value for %s field", v.Type(), f.Type)
	}
	out := bytes.Repeat([]byte{SPACE}, f.Length)
	if v.IsNull() {
		if f.Type == TypeMemo && f.Length == 4 {
			return make([]byte, 4), nil
		}
		if f.Type == TypeLogical {
			out[0] = '?'
		}
		return out, nil
	}

	switch v := v.(type) {
	case Character:
		b, err := enc.Encode(v.String)
		if err != nil {
			return nil, err
		}
		if len(b) > f.Length {
			return nil, errors.Wrapf(ErrValueTooLong, "%d bytes into %d", len(b), f.Length)
		}
		copy(out, b)

	case Numeric:
		return rightJustify(out, v.Decimal.StringFixed(int32(f.Decimal)))

	case Float:
		if math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
			return nil, invalidValue("float %v", v.Float64)
		}
		return rightJustify(out, strconv.FormatFloat(v.Float64, 'f', f.Decimal, 64))

	case Logical:
		if v.Bool {
			out[0] = 'T'
		} else {
			out[0] = 'F'
		}

	case Date:
		year := v.Time.Year()
		if year < 0 || year > 9999 {
			return nil, invalidValue("date year %d", year)
		}
		copy(out, v.Time.Format("20060102"))

	case Currency:
		binary.LittleEndian.PutUint64(out, uint64(v.Units))
		return notBlank(f, out)

	case DateTime:
		t := v.Time.UTC()
		y, m, d := t.Date()
		ms := t.Hour()*3600000 + t.Minute()*60000 + t.Second()*1000 + t.Nanosecond()/int(time.Millisecond)
		binary.LittleEndian.PutUint32(out[0:4], uint32(julianDay(y, m, d)))
		binary.LittleEndian.PutUint32(out[4:8], uint32(ms))
		return notBlank(f, out)

	case Integer:
		binary.LittleEndian.PutUint32(out, uint32(v.Int32))
		return notBlank(f, out)

	case Double:
		binary.LittleEndian.PutUint64(out, math.Float64bits(v.Float64))
		return notBlank(f, out)

	case Memo:
		if f.Length == 4 {
			binary.LittleEndian.PutUint32(out, v.Block)
			return out, nil
		}
		return rightJustify(out, strconv.FormatUint(uint64(v.Block), 10))

	default:
		return nil, invalidValue("unsupported value %T", v)
	}
	return out, nil
}

// notBlank rejects a present binary value whose bytes are the pattern
// decodeValue reads as absent.
func notBlank(f *Field, out []byte) ([]byte, error) {
	if allBytes(out, SPACE) || (f.Type == TypeDateTime && allBytes(out, NUL)) {
		return nil, invalidValue("%s value % x reads back as blank", f.Type, out)
	}
	return out, nil
}

func rightJustify(out []byte, s string) ([]byte, error) {
	if len(s) > len(out) {
		return nil, errors.Wrapf(ErrValueTooLong, "%q into %d bytes", s, len(out))
	}
	copy(out[len(out)-len(s):], s)
	return out, nil
}
