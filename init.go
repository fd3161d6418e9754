package dbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Quirk is a non-fatal irregularity found while parsing a header.
type Quirk struct {
	Field   string
	Message string
}

func (q Quirk) String() string {
	if q.Field == "" {
		return q.Message
	}
	return fmt.Sprintf("field %s: %s", q.Field, q.Message)
}

type tableMeta struct {
	header   DBFHeader
	fields   []Field
	quirks   []Quirk
	backlink []byte
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedHeader, format, args...)
}

// parseHeader decodes the header prefix, the descriptor table and the
// VisualFoxPro backlink from raw, which holds at least the declared header
// length. Field names are decoded with enc.
func parseHeader(raw []byte, enc Encoding) (*tableMeta, error) {
	if len(raw) < headerSize {
		return nil, malformed("file is %d bytes, shorter than a header", len(raw))
	}
	meta := &tableMeta{}
	if err := binary.Read(bytes.NewReader(raw[:headerSize]), binary.LittleEndian, &meta.header); err != nil {
		return nil, malformed("%v", err)
	}
	h := &meta.header
	headerLength := int(h.HeaderLength)
	if headerLength < headerSize+1 {
		return nil, malformed("header length %d", headerLength)
	}
	if len(raw) < headerLength {
		return nil, malformed("header length %d exceeds file size %d", headerLength, len(raw))
	}
	variant := h.Variant()

	pos := headerSize
	terminated := false
	for pos < headerLength {
		if raw[pos] == headerTerminator {
			terminated = true
			break
		}
		if pos+descriptorSize > headerLength {
			break
		}
		var d FieldDescriptor
		if err := binary.Read(bytes.NewReader(raw[pos:pos+descriptorSize]), binary.LittleEndian, &d); err != nil {
			return nil, malformed("%v", err)
		}
		f, err := meta.initField(&d, variant, enc)
		if err != nil {
			return nil, err
		}
		meta.fields = append(meta.fields, f)
		pos += descriptorSize
	}
	if !terminated {
		return nil, malformed("descriptor terminator not found within %d bytes", headerLength)
	}

	derived := 1
	seen := make(map[string]bool, len(meta.fields))
	for _, f := range meta.fields {
		derived += f.Length
		key := strings.ToUpper(f.Name)
		if seen[key] && !f.hidden {
			meta.quirk(f.Name, "duplicate field name")
		}
		seen[key] = true
	}
	if derived > int(h.RecordLength) {
		return nil, malformed("fields need %d bytes, record length is %d", derived, h.RecordLength)
	}
	if derived < int(h.RecordLength) {
		meta.quirk("", fmt.Sprintf("record length %d has %d bytes of padding", h.RecordLength, int(h.RecordLength)-derived))
	}

	if variant == VisualFoxPro {
		start := pos + 1
		end := start + backlinkSize
		if end > headerLength {
			end = headerLength
		}
		if start < end {
			meta.backlink = append([]byte(nil), raw[start:end]...)
		}
	}
	return meta, nil
}

func (m *tableMeta) quirk(field, msg string) {
	m.quirks = append(m.quirks, Quirk{Field: field, Message: msg})
}

func (m *tableMeta) initField(d *FieldDescriptor, variant Variant, enc Encoding) (Field, error) {
	index := bytes.IndexByte(d.Name[:], NUL)
	if index == -1 {
		index = len(d.Name)
	}
	name, err := enc.Decode(d.Name[:index])
	if err != nil {
		return Field{}, malformed("field name: %v", err)
	}
	name = strings.TrimSpace(name)

	length := int(d.Length)
	t, ok := resolveFieldType(d.Type, variant, length)
	if !ok {
		return Field{}, malformed("field %s has unknown type %q for %s", name, d.Type, variant)
	}
	if w := t.canonicalWidth(); w != 0 && length != w {
		m.quirk(name, fmt.Sprintf("%s width %d replaced by %d", t, length, w))
		length = w
	}
	return Field{
		Name:    name,
		Type:    t,
		Length:  length,
		Decimal: int(d.Decimal),
		Flags:   d.Flags,
		hidden:  t == typeNullFlags,
	}, nil
}

// resolveEncoding picks the Encoding for a table: an explicit override, else
// the codepage mark. Unknown marks fall back to UTF-8 unless strict.
func resolveEncoding(opts *Options, mark byte) (Encoding, error) {
	if opts.Encoding != nil {
		return opts.Encoding, nil
	}
	enc, err := EncodingForCodepage(mark)
	if err == nil {
		return enc, nil
	}
	if opts.Strict {
		return nil, errors.Wrap(ErrMalformedHeader, err.Error())
	}
	opts.Logger.WithFields(log.Fields{
		"codepage": fmt.Sprintf("0x%02X", mark),
	}).Warn("unknown codepage, falling back to utf-8")
	return NewEncoding(defaultCharset)
}

// countRecords derives the number of complete rows from the file size.
// partial is the byte count of a trailing incomplete row, excluding a
// possible EOF marker.
func countRecords(fileSize int64, headerLength, recordLength int) (n uint32, partial int64) {
	data := fileSize - int64(headerLength)
	if data <= 0 || recordLength <= 0 {
		return 0, 0
	}
	n = uint32(data / int64(recordLength))
	rem := data % int64(recordLength)
	if rem > 1 {
		partial = rem
	}
	return n, partial
}

func (dbf *DBFHandler) initMetaData() error {
	if dbf.fileSize < headerSize {
		return malformed("file is %d bytes, shorter than a header", dbf.fileSize)
	}
	prefix := make([]byte, headerSize)
	if _, err := dbf.f.ReadAt(prefix, 0); err != nil {
		return ioError("read header", 0, err)
	}
	headerLength := int64(binary.LittleEndian.Uint16(prefix[8:10]))
	if headerLength > dbf.fileSize {
		return malformed("header length %d exceeds file size %d", headerLength, dbf.fileSize)
	}
	if headerLength < headerSize+1 {
		return malformed("header length %d", headerLength)
	}
	raw := make([]byte, headerLength)
	if _, err := dbf.f.ReadAt(raw, 0); err != nil {
		return ioError("read header", 0, err)
	}

	enc, err := resolveEncoding(dbf.opts, prefix[29])
	if err != nil {
		return err
	}
	meta, err := parseHeader(raw, enc)
	if err != nil {
		return err
	}
	for _, q := range meta.quirks {
		dbf.opts.Logger.WithField("file", dbf.fileName).Warn(q.String())
	}

	dbf.enc = enc
	dbf.header = meta.header
	dbf.schema = newSchema(meta.fields)
	dbf.quirks = meta.quirks
	dbf.backlink = meta.backlink
	return dbf.initNumRecords()
}

// initNumRecords reconciles the header counter with the file length.
func (dbf *DBFHandler) initNumRecords() error {
	n, partial := countRecords(dbf.fileSize, int(dbf.header.HeaderLength), int(dbf.header.RecordLength))
	logger := dbf.opts.Logger.WithField("file", dbf.fileName)
	if partial > 0 {
		if dbf.opts.Strict {
			return malformed("trailing partial record of %d bytes", partial)
		}
		logger.WithField("bytes", partial).Warn("dropping trailing partial record")
	}
	if n != dbf.header.NumRecords {
		if dbf.opts.Strict {
			return malformed("header counts %d records, file holds %d", dbf.header.NumRecords, n)
		}
		logger.WithFields(log.Fields{
			"header": dbf.header.NumRecords,
			"file":   n,
		}).Warn("record counter disagrees with file length, trusting the file")
	}
	dbf.numRecords = n
	return nil
}
