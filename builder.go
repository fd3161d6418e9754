package dbf

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxRecordLength = math.MaxUint16

// TableWriterBuilder collects and validates a schema for a new table. No
// byte is written before Build.
type TableWriterBuilder struct {
	opts       *Options
	variant    Variant
	variantSet bool
	charset    string
	fields     []Field
	length     int
}

func NewTableWriterBuilder(opts *Options) *TableWriterBuilder {
	return &TableWriterBuilder{opts: opts.withDefaults(), variant: DBase3, length: 1}
}

// SetVariant selects the dialect. Fields that only exist in VisualFoxPro
// switch the variant automatically, so asking for another dialect after
// adding one is an error.
func (b *TableWriterBuilder) SetVariant(v Variant) error {
	if v != VisualFoxPro {
		for _, f := range b.fields {
			if f.Type.foxProOnly() {
				return schemaError(f.Name, "%s fields require %s", f.Type, VisualFoxPro)
			}
		}
	}
	b.variant = v
	b.variantSet = true
	return nil
}

// SetCodepage selects the charset used for names and Character values and
// recorded in the header.
func (b *TableWriterBuilder) SetCodepage(name string) error {
	if _, err := NewEncoding(name); err != nil {
		return err
	}
	b.charset = name
	return nil
}

// FromSchema adds every visible field of s, picking VisualFoxPro when s
// uses its types.
func (b *TableWriterBuilder) FromSchema(s *Schema) error {
	for _, f := range s.fields {
		if err := b.AddField(Field{Name: f.Name, Type: f.Type, Length: f.Length, Decimal: f.Decimal, Flags: f.Flags}); err != nil {
			return err
		}
	}
	return nil
}

// AddField validates f against the fields added so far and appends it.
func (b *TableWriterBuilder) AddField(f Field) error {
	name := f.Name
	switch {
	case name == "":
		return schemaError(name, "empty name")
	case len(name) > maxNameLength:
		return schemaError(name, "name longer than %d bytes", maxNameLength)
	case strings.IndexByte(name, NUL) >= 0:
		return schemaError(name, "name contains NUL")
	}
	for _, other := range b.fields {
		if strings.EqualFold(other.Name, name) {
			return schemaError(name, "duplicate name")
		}
	}

	switch f.Type {
	case TypeCharacter, TypeNumeric, TypeFloat, TypeLogical, TypeDate,
		TypeCurrency, TypeDateTime, TypeInteger, TypeDouble:
	case TypeMemo:
		return schemaError(name, "memo fields cannot be written")
	default:
		return schemaError(name, "unknown type %s", f.Type)
	}

	if w := f.Type.canonicalWidth(); w != 0 {
		if f.Length != 0 && f.Length != w {
			return schemaError(name, "%s width must be %d", f.Type, w)
		}
		f.Length = w
	}
	if f.Length <= 0 || f.Length > math.MaxUint8 {
		return schemaError(name, "width %d out of range 1..255", f.Length)
	}

	switch f.Type {
	case TypeNumeric, TypeFloat:
		if f.Decimal < 0 || (f.Decimal > 0 && f.Decimal > f.Length-2) {
			return schemaError(name, "%d decimals do not fit width %d", f.Decimal, f.Length)
		}
	default:
		if f.Decimal != 0 {
			return schemaError(name, "%s fields have no decimals", f.Type)
		}
	}

	if hasFlag(f.Flags, FieldNullable) {
		return schemaError(name, "nullable fields are not supported")
	}
	if f.Type.foxProOnly() {
		if b.variantSet && b.variant != VisualFoxPro {
			return schemaError(name, "%s fields require %s", f.Type, VisualFoxPro)
		}
		b.variant = VisualFoxPro
	}
	if b.length+f.Length > maxRecordLength {
		return schemaError(name, "record length exceeds %d bytes", maxRecordLength)
	}

	b.length += f.Length
	b.fields = append(b.fields, Field{Name: name, Type: f.Type, Length: f.Length, Decimal: f.Decimal, Flags: f.Flags})
	return nil
}

func (b *TableWriterBuilder) AddCharacterField(name string, length int) error {
	return b.AddField(Field{Name: name, Type: TypeCharacter, Length: length})
}

func (b *TableWriterBuilder) AddNumericField(name string, length, decimal int) error {
	return b.AddField(Field{Name: name, Type: TypeNumeric, Length: length, Decimal: decimal})
}

func (b *TableWriterBuilder) AddFloatField(name string, length, decimal int) error {
	return b.AddField(Field{Name: name, Type: TypeFloat, Length: length, Decimal: decimal})
}

func (b *TableWriterBuilder) AddLogicalField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeLogical})
}

func (b *TableWriterBuilder) AddDateField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeDate})
}

func (b *TableWriterBuilder) AddIntegerField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeInteger})
}

func (b *TableWriterBuilder) AddDoubleField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeDouble})
}

func (b *TableWriterBuilder) AddCurrencyField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeCurrency})
}

func (b *TableWriterBuilder) AddDateTimeField(name string) error {
	return b.AddField(Field{Name: name, Type: TypeDateTime})
}

// Variant is the dialect Build will write.
func (b *TableWriterBuilder) Variant() Variant { return b.variant }

func (b *TableWriterBuilder) encoding() (Encoding, error) {
	switch {
	case b.charset != "":
		return NewEncoding(b.charset)
	case b.opts.Encoding != nil:
		return b.opts.Encoding, nil
	}
	return NewEncoding(defaultCharset)
}

func (b *TableWriterBuilder) version() byte {
	switch b.variant {
	case VisualFoxPro:
		return VersionVFP
	case DBase4:
		return VersionDBase4
	default:
		return VersionDBase3
	}
}

// Build validates the schema, writes the header of an empty table to
// fileName, replacing any existing file, and returns a writer on it.
func (b *TableWriterBuilder) Build(fileName string) (*Writer, error) {
	if len(b.fields) == 0 {
		return nil, schemaError("", "no fields")
	}
	enc, err := b.encoding()
	if err != nil {
		return nil, err
	}

	fields := make([]Field, len(b.fields))
	descriptors := make([]FieldDescriptor, len(b.fields))
	offset := 1
	for i, f := range b.fields {
		if b.variant != VisualFoxPro {
			f.Name = strings.ToUpper(f.Name)
		}
		name, err := enc.Encode(f.Name)
		if err != nil {
			return nil, schemaError(f.Name, "name not representable in %s", enc.Name())
		}
		if len(name) > maxNameLength {
			return nil, schemaError(f.Name, "encoded name longer than %d bytes", maxNameLength)
		}
		d := &descriptors[i]
		copy(d.Name[:], name)
		d.Type = byte(f.Type)
		d.Offset = uint32(offset)
		d.Length = byte(f.Length)
		d.Decimal = byte(f.Decimal)
		d.Flags = f.Flags
		fields[i] = f
		offset += f.Length
	}

	headerLength := headerSize + descriptorSize*len(fields) + 1
	if b.variant == VisualFoxPro {
		headerLength += backlinkSize
	}
	if headerLength > math.MaxUint16 {
		return nil, schemaError("", "too many fields")
	}
	header := DBFHeader{
		Version:          b.version(),
		HeaderLength:     uint16(headerLength),
		RecordLength:     uint16(b.length),
		LanguageDriverID: CodepageMark(enc.Name()),
	}
	header.setModified(time.Now())

	buf := bytes.NewBuffer(make([]byte, 0, headerLength+1))
	if err := binary.Write(buf, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, descriptors); err != nil {
		return nil, err
	}
	buf.WriteByte(headerTerminator)
	if b.variant == VisualFoxPro {
		buf.Write(make([]byte, backlinkSize))
	}
	buf.WriteByte(EOF)

	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return nil, ioError("write header", 0, err)
	}

	h := &DBFHandler{
		fileName: fileName,
		f:        f,
		fileSize: int64(buf.Len()),
		opts:     b.opts,
		enc:      enc,
		header:   header,
		schema:   newSchema(fields),
	}
	b.opts.Logger.WithFields(log.Fields{
		"file":    fileName,
		"variant": b.variant,
		"fields":  len(fields),
	}).Debug("table created")
	return newWriter(h), nil
}

// Schema previews the schema Build will write.
func (b *TableWriterBuilder) Schema() *Schema {
	return newSchema(b.fields)
}
