package dbf

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peopleFields = []rawField{
	{name: "NAME", typ: 'C', length: 10},
	{name: "AGE", typ: 'N', length: 3},
}

func TestParseHeader(t *testing.T) {
	enc := utf8Encoding(t)
	raw := rawHeader(VersionDBase3, peopleFields, 2, 0)

	meta, err := parseHeader(raw, enc)
	require.NoError(t, err)
	assert.Equal(t, DBase3, meta.header.Variant())
	assert.EqualValues(t, 2, meta.header.NumRecords)
	assert.EqualValues(t, 14, meta.header.RecordLength)
	assert.EqualValues(t, 2024, meta.header.Modified().Year())
	assert.Empty(t, meta.quirks)

	s := newSchema(meta.fields)
	require.Equal(t, 2, s.NumFields())
	assert.Equal(t, []string{"NAME", "AGE"}, s.Names())
	assert.Equal(t, 1, s.Field(0).Offset())
	assert.Equal(t, 11, s.Field(1).Offset())
	assert.Equal(t, 14, s.RecordLength())

	f, ok := s.FieldByName("age")
	require.True(t, ok)
	assert.Equal(t, TypeNumeric, f.Type)
}

func TestParseHeaderMalformed(t *testing.T) {
	enc := utf8Encoding(t)

	good := rawHeader(VersionDBase3, peopleFields, 0, 0)
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short file", func(b []byte) []byte { return b[:20] }},
		{"header length too small", func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[8:10], 32)
			return b
		}},
		{"header length past end", func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[8:10], uint16(len(b)+40))
			return b
		}},
		{"no terminator", func(b []byte) []byte {
			b[len(b)-1] = ' '
			return b
		}},
		{"unknown type", func(b []byte) []byte {
			b[headerSize+11] = 'X'
			return b
		}},
		{"record length too small", func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[10:12], 5)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.mutate(append([]byte(nil), good...))
			_, err := parseHeader(raw, enc)
			assert.True(t, errors.Is(err, ErrMalformedHeader), "got %v", err)
		})
	}
}

func TestParseHeaderDialects(t *testing.T) {
	enc := utf8Encoding(t)

	fox := []rawField{
		{name: "ID", typ: 'I', length: 4},
		{name: "PRICE", typ: 'Y', length: 8},
		{name: "STAMP", typ: 'T', length: 8},
		{name: "RATIO", typ: 'B', length: 8},
		{name: "NOTES", typ: 'M', length: 4},
		{name: "_NullFlags", typ: '0', length: 1, flags: FieldSystem | FieldBinary},
	}
	raw := rawHeader(VersionVFP, fox, 0, 0)
	copy(raw[len(raw)-backlinkSize:], "..\\data\\sales.dbc")
	meta, err := parseHeader(raw, enc)
	require.NoError(t, err)
	assert.Equal(t, VisualFoxPro, meta.header.Variant())
	assert.Len(t, meta.backlink, backlinkSize)
	assert.Equal(t, "..\\data\\sales.dbc", string(meta.backlink[:17]))

	s := newSchema(meta.fields)
	assert.Equal(t, []string{"ID", "PRICE", "STAMP", "RATIO", "NOTES"}, s.Names())
	types := []FieldType{TypeInteger, TypeCurrency, TypeDateTime, TypeDouble, TypeMemo}
	for i, want := range types {
		assert.Equal(t, want, s.Field(i).Type)
	}
	assert.Equal(t, 34, s.RecordLength())

	_, err = parseHeader(rawHeader(VersionDBase3, fox[:1], 0, 0), enc)
	assert.True(t, errors.Is(err, ErrMalformedHeader), "integer outside VisualFoxPro")

	binMemo := []rawField{{name: "BLOB", typ: 'B', length: 10}, {name: "PIC", typ: 'G', length: 10}}
	meta, err = parseHeader(rawHeader(VersionDBase4Memo, binMemo, 0, 0), enc)
	require.NoError(t, err)
	assert.Equal(t, TypeMemo, meta.fields[0].Type)
	assert.Equal(t, TypeMemo, meta.fields[1].Type)

	_, err = parseHeader(rawHeader(VersionDBase4, []rawField{{name: "X", typ: 'B', length: 8}}, 0, 0), enc)
	assert.True(t, errors.Is(err, ErrMalformedHeader), "dBase IV B must be a 10 byte memo")
}

func TestParseHeaderQuirks(t *testing.T) {
	enc := utf8Encoding(t)
	fields := []rawField{
		{name: "ID", typ: 'I', length: 8},
		{name: "OK", typ: 'L', length: 1},
	}
	meta, err := parseHeader(rawHeader(VersionVFP, fields, 0, 0), enc)
	require.NoError(t, err)
	require.Len(t, meta.fields, 2)
	assert.Equal(t, 4, meta.fields[0].Length)
	s := newSchema(meta.fields)
	assert.Equal(t, 5, s.Field(1).Offset())

	require.Len(t, meta.quirks, 2)
	assert.Equal(t, "ID", meta.quirks[0].Field)
	assert.Contains(t, meta.quirks[1].String(), "padding")
}

func TestCountRecords(t *testing.T) {
	n, partial := countRecords(100+3*10+1, 100, 10)
	assert.EqualValues(t, 3, n)
	assert.Zero(t, partial)

	n, partial = countRecords(100+3*10, 100, 10)
	assert.EqualValues(t, 3, n)
	assert.Zero(t, partial)

	n, partial = countRecords(100+3*10+6, 100, 10)
	assert.EqualValues(t, 3, n)
	assert.EqualValues(t, 6, partial)

	n, _ = countRecords(50, 100, 10)
	assert.Zero(t, n)
}

func TestOpenUnknownCodepage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.dbf")
	writeRawTable(t, path, rawHeader(VersionDBase3, peopleFields, 0, 0xEE))

	opts, hook := testOptions()
	r, err := Open(path, opts)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", r.Encoding().Name())
	require.NoError(t, r.Close())
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "table opened")

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "unknown codepage, falling back to utf-8" {
			found = true
		}
	}
	assert.True(t, found)

	opts.Strict = true
	_, err = Open(path, opts)
	assert.True(t, errors.Is(err, ErrMalformedHeader))
}

func TestOpenCodepageOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.dbf")
	writeRawTable(t, path, rawHeader(VersionDBase3, peopleFields, 0, 0x03))

	opts, _ := testOptions()
	r, err := Open(path, opts)
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", r.Encoding().Name())
	require.NoError(t, r.Close())

	opts.Encoding, err = NewEncoding("gbk")
	require.NoError(t, err)
	r, err = Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "gbk", r.Encoding().Name())
}
