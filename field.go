package dbf

import (
	"fmt"
	"strings"
)

// FieldType is the one byte type tag of a field descriptor.
type FieldType byte

const (
	TypeCharacter FieldType = 'C'
	TypeNumeric   FieldType = 'N'
	TypeLogical   FieldType = 'L'
	TypeDate      FieldType = 'D'
	TypeFloat     FieldType = 'F'
	TypeCurrency  FieldType = 'Y'
	TypeDateTime  FieldType = 'T'
	TypeInteger   FieldType = 'I'
	TypeDouble    FieldType = 'B'
	TypeMemo      FieldType = 'M'

	typeGeneral   FieldType = 'G'
	typePicture   FieldType = 'P'
	typeNullFlags FieldType = '0'
)

func (t FieldType) String() string {
	switch t {
	case TypeCharacter:
		return "Character"
	case TypeNumeric:
		return "Numeric"
	case TypeLogical:
		return "Logical"
	case TypeDate:
		return "Date"
	case TypeFloat:
		return "Float"
	case TypeCurrency:
		return "Currency"
	case TypeDateTime:
		return "DateTime"
	case TypeInteger:
		return "Integer"
	case TypeDouble:
		return "Double"
	case TypeMemo:
		return "Memo"
	default:
		return fmt.Sprintf("FieldType(%q)", byte(t))
	}
}

// canonicalWidth returns the fixed width of a type, or 0 when the width is
// taken from the descriptor.
func (t FieldType) canonicalWidth() int {
	switch t {
	case TypeLogical:
		return 1
	case TypeDate:
		return 8
	case TypeInteger:
		return 4
	case TypeDouble, TypeDateTime, TypeCurrency:
		return 8
	default:
		return 0
	}
}

func (t FieldType) foxProOnly() bool {
	switch t {
	case TypeInteger, TypeCurrency, TypeDateTime, TypeDouble:
		return true
	}
	return false
}

// resolveFieldType maps a stored tag to a field type for the given dialect.
func resolveFieldType(tag byte, variant Variant, length int) (FieldType, bool) {
	t := FieldType(tag)
	switch t {
	case TypeCharacter, TypeNumeric, TypeLogical, TypeDate, TypeFloat, TypeMemo:
		return t, true
	case typeGeneral, typePicture:
		return TypeMemo, true
	case TypeInteger, TypeCurrency, TypeDateTime:
		return t, variant == VisualFoxPro
	case TypeDouble:
		if variant == VisualFoxPro {
			return TypeDouble, true
		}
		// dBase IV binary memo
		return TypeMemo, length == 10
	case typeNullFlags:
		return typeNullFlags, variant == VisualFoxPro
	}
	return 0, false
}

// Field describes one column of a table.
type Field struct {
	Name    string
	Type    FieldType
	Length  int
	Decimal int
	Flags   uint8

	offset  int
	hidden  bool
	nullBit int
}

// Offset is the byte position of the field inside a row, the deletion flag
// being byte 0.
func (f Field) Offset() int { return f.offset }

// Nullable reports the VisualFoxPro "can store null" flag.
func (f Field) Nullable() bool { return hasFlag(f.Flags, FieldNullable) }

func (f Field) String() string {
	if f.Decimal > 0 {
		return fmt.Sprintf("%s %c(%d,%d)", f.Name, byte(f.Type), f.Length, f.Decimal)
	}
	return fmt.Sprintf("%s %c(%d)", f.Name, byte(f.Type), f.Length)
}

// Schema is the ordered list of fields of a table. Offsets are computed once
// when the schema is built and shared by every record decode.
type Schema struct {
	all    []Field
	fields []Field
	index  map[string]int
	length int

	// position of the VisualFoxPro _NullFlags bytes, nullLength 0 when absent
	nullOffset int
	nullLength int
}

func newSchema(fields []Field) *Schema {
	s := &Schema{index: make(map[string]int, len(fields))}
	pos, bits := 1, 0
	for _, f := range fields {
		f.offset = pos
		pos += f.Length
		if f.Type == typeNullFlags {
			s.nullOffset, s.nullLength = f.offset, f.Length
		}
		if f.Nullable() && !f.hidden {
			f.nullBit = bits
			bits++
		}
		s.all = append(s.all, f)
		if f.hidden {
			continue
		}
		key := strings.ToUpper(f.Name)
		if _, dup := s.index[key]; !dup {
			s.index[key] = len(s.fields)
		}
		s.fields = append(s.fields, f)
	}
	s.length = pos
	return s
}

// nullMask locates the null bit of f inside a row. ok is false when f is
// not nullable or the table has no _NullFlags field covering it.
func (s *Schema) nullMask(f *Field) (at int, mask byte, ok bool) {
	if !f.Nullable() || f.nullBit/8 >= s.nullLength {
		return 0, 0, false
	}
	return s.nullOffset + f.nullBit/8, 1 << uint(f.nullBit%8), true
}

// Fields returns a copy of the visible fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// NumFields is the number of visible fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns the field at position i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// FieldIndex looks a field up by name, ignoring case.
func (s *Schema) FieldIndex(name string) (int, bool) {
	i, ok := s.index[strings.ToUpper(strings.TrimSpace(name))]
	return i, ok
}

// FieldByName looks a field up by name, ignoring case.
func (s *Schema) FieldByName(name string) (Field, bool) {
	i, ok := s.FieldIndex(name)
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// RecordLength is the row size including the deletion flag.
func (s *Schema) RecordLength() int { return s.length }

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

