package dbf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(name string, age int64) *Record {
	return NewRecord().Set("NAME", NewCharacter(name)).Set("AGE", NewNumericInt(age))
}

func fixedClock(w *Writer) {
	w.now = func() time.Time { return time.Date(2023, time.June, 5, 10, 0, 0, 0, time.UTC) }
}

func TestFinalizeIdempotent(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()
	w, err := OpenForWrite(path, opts)
	require.NoError(t, err)
	fixedClock(w)

	for _, p := range []*Record{person("Alice", 30), person("Bob", 25), person("Carol", 41)} {
		require.NoError(t, w.WriteRecord(p))
	}
	require.NoError(t, w.Finalize())
	first := getFileBuffer(t, path)
	require.NoError(t, w.Finalize())
	second := getFileBuffer(t, path)
	assert.Empty(t, CompareBytes(first, second))

	h := w.Header()
	assert.EqualValues(t, 3, h.NumRecords)
	assert.Equal(t, time.Date(2023, time.June, 5, 0, 0, 0, 0, time.UTC), h.Modified())
	assert.Equal(t, []byte{123, 6, 5}, first[1:4])
	assert.Equal(t, byte(EOF), first[len(first)-1])
	assert.Equal(t, int(h.HeaderLength)+3*int(h.RecordLength)+1, len(first))

	require.NoError(t, w.Close())
	assert.Empty(t, CompareBytes(first, getFileBuffer(t, path)))
}

func TestWriteRecordCounterBeforeFinalize(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()
	w, err := OpenForWrite(path, opts)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteRecord(person("Alice", 30)))
	assert.EqualValues(t, 1, w.NumRecords())

	// the stored counter is only patched by Finalize
	data := getFileBuffer(t, path)
	assert.Equal(t, []byte{0, 0, 0, 0}, data[4:8])
	assert.Equal(t, byte(EOF), data[len(data)-1])

	r, err := Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, 1, r.NumRecords())
}

func TestUpdateRecord(t *testing.T) {
	path := newPeopleTable(t, map[string]int64{"Alice": 30, "Bob": 25}, "Alice", "Bob")
	before := getFileBuffer(t, path)

	opts, _ := testOptions()
	err := Update(path, opts, func(w *Writer) error {
		fixedClock(w)
		return w.UpdateRecord(0, NewRecord().Set("age", NewNumericInt(31)))
	})
	require.NoError(t, err)
	after := getFileBuffer(t, path)

	r, err := Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	h := r.Header()
	age, _ := r.Schema().FieldByName("AGE")
	start := int(h.HeaderLength) + age.Offset()
	for _, diff := range CompareBytes(before, after) {
		pos := diff[0]
		inHeaderDate := pos >= 1 && pos <= 3
		inAge := pos >= start && pos < start+age.Length
		assert.True(t, inHeaderDate || inAge, "unexpected change at %d", pos)
	}

	rec, err := r.RecordAt(0)
	require.NoError(t, err)
	v, _ := rec.Get("AGE")
	assert.Equal(t, "31", v.(Numeric).Decimal.String())
	name, _ := rec.Get("NAME")
	assert.Equal(t, NewCharacter("Alice"), name)

	rec, err = r.RecordAt(1)
	require.NoError(t, err)
	v, _ = rec.Get("AGE")
	assert.Equal(t, "25", v.(Numeric).Decimal.String())
}

func TestUpdateRecordErrors(t *testing.T) {
	path := newPeopleTable(t, map[string]int64{"Alice": 30}, "Alice")
	opts, _ := testOptions()
	w, err := OpenForWrite(path, opts)
	require.NoError(t, err)
	defer w.Close()

	err = w.UpdateRecord(1, NewRecord().Set("AGE", NewNumericInt(1)))
	assert.True(t, errors.Is(err, ErrRecordOutOfRange))

	err = w.UpdateRecord(0, NewRecord().Set("SALARY", NewNumericInt(1)))
	assert.True(t, errors.Is(err, ErrInvalidFieldValue))

	before := getFileBuffer(t, path)
	err = w.UpdateRecord(0, NewRecord().Set("NAME", NewCharacter("Zed")).Set("AGE", NewNumericInt(1000)))
	assert.True(t, errors.Is(err, ErrValueTooLong))
	assert.Empty(t, CompareBytes(before, getFileBuffer(t, path)), "a rejected update writes nothing")
}

func TestWriteRecordRejected(t *testing.T) {
	path := newPeopleTable(t, map[string]int64{"Alice": 30}, "Alice")
	opts, _ := testOptions()
	w, err := OpenForWrite(path, opts)
	require.NoError(t, err)
	defer w.Close()
	before := getFileBuffer(t, path)

	tests := []struct {
		name string
		rec  *Record
		want error
	}{
		{"missing field", NewRecord().Set("NAME", NewCharacter("Bob")), ErrInvalidFieldValue},
		{"unknown field", person("Bob", 1).Set("CITY", NewCharacter("Oslo")), ErrInvalidFieldValue},
		{"wrong type", NewRecord().Set("NAME", NewCharacter("Bob")).Set("AGE", NewCharacter("1")), ErrInvalidFieldValue},
		{"too long", person("Bartholomew", 1), ErrValueTooLong},
		{"too wide", person("Bob", 1000), ErrValueTooLong},
		{"nil", nil, ErrInvalidFieldValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.WriteRecord(tt.rec)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.EqualValues(t, 1, w.NumRecords())
	assert.Empty(t, CompareBytes(before, getFileBuffer(t, path)))

	require.NoError(t, w.WriteRecord(NewRecord().Set("NAME", Character{}).Set("AGE", Numeric{})))
	assert.EqualValues(t, 2, w.NumRecords())
}

func TestDeleteAndRecall(t *testing.T) {
	path := newPeopleTable(t, map[string]int64{"Alice": 30, "Bob": 25}, "Alice", "Bob")
	opts, _ := testOptions()
	require.NoError(t, Update(path, opts, func(w *Writer) error {
		return w.DeleteRecord(0)
	}))

	r, err := Open(path, opts)
	require.NoError(t, err)
	it := r.Records()
	rec, err := it.Next()
	require.NoError(t, err)
	name, _ := rec.Get("NAME")
	assert.Equal(t, NewCharacter("Bob"), name)
	require.NoError(t, r.Close())

	require.NoError(t, Update(path, opts, func(w *Writer) error {
		assert.True(t, errors.Is(w.DeleteRecord(2), ErrRecordOutOfRange))
		return w.RecallRecord(0)
	}))
	r, err = Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	rec, err = r.Records().Next()
	require.NoError(t, err)
	name, _ = rec.Get("NAME")
	assert.Equal(t, NewCharacter("Alice"), name)
}

func TestWriteDeletedRecord(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()
	require.NoError(t, Update(path, opts, func(w *Writer) error {
		rec := person("Gone", 1)
		rec.Deleted = true
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
		return w.WriteRecord(person("Here", 2))
	}))

	r, err := Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	records, err := r.ReadRange(0, 2, 2)
	require.NoError(t, err)
	assert.True(t, records[0].Deleted)
	assert.False(t, records[1].Deleted)
}

func TestUpdateClosesOnError(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()
	boom := errors.New("boom")

	err := Update(path, opts, func(w *Writer) error {
		if err := w.WriteRecord(person("Alice", 30)); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	r, err := Open(path, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.Header().NumRecords)
	require.NoError(t, r.Close())
}

func TestUpdateClosesOnPanic(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()

	var writer *Writer
	assert.Panics(t, func() {
		_ = Update(path, opts, func(w *Writer) error {
			writer = w
			if err := w.WriteRecord(person("Alice", 30)); err != nil {
				return err
			}
			panic("writer blew up")
		})
	})
	require.NotNil(t, writer)
	assert.True(t, errors.Is(writer.WriteRecord(person("Bob", 1)), ErrClosed))

	r, err := Open(path, opts)
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, 1, r.Header().NumRecords)
}

func TestWriterClosed(t *testing.T) {
	path := newPeopleTable(t, nil)
	opts, _ := testOptions()
	w, err := OpenForWrite(path, opts)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.True(t, errors.Is(w.WriteRecord(person("A", 1)), ErrClosed))
	assert.True(t, errors.Is(w.UpdateRecord(0, person("A", 1)), ErrClosed))
	assert.True(t, errors.Is(w.DeleteRecord(0), ErrClosed))
	assert.True(t, errors.Is(w.Finalize(), ErrClosed))
}

func TestFinalizeTruncatesTrailingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dbf")
	data := rawHeader(VersionDBase3, peopleFields, 9, 0)
	data = append(data, " Alice      30"...)
	data = append(data, " Bo"...)
	require.NoError(t, os.WriteFile(path, data, 0644))

	opts, _ := testOptions()
	require.NoError(t, Update(path, opts, func(w *Writer) error {
		return w.WriteRecord(person("Bob", 25))
	}))

	out := getFileBuffer(t, path)
	h := rawHeader(VersionDBase3, peopleFields, 0, 0)
	assert.Len(t, out, len(h)+2*14+1)
	assert.Equal(t, []byte{2, 0, 0, 0}, out[4:8])
	assert.Equal(t, " Bob        25", string(out[len(h)+14:len(h)+28]))
}

func TestCreateFromSchema(t *testing.T) {
	src := newPeopleTable(t, map[string]int64{"Alice": 30}, "Alice")
	opts, _ := testOptions()
	r, err := Open(src, opts)
	require.NoError(t, err)
	defer r.Close()

	dst := filepath.Join(t.TempDir(), "copy.dbf")
	w, err := Create(dst, r.Schema(), opts)
	require.NoError(t, err)
	it := r.Records()
	for {
		rec, err := it.Next()
		if err != nil {
			break
		}
		require.NoError(t, w.WriteRecord(rec))
	}
	require.NoError(t, w.Close())

	c, err := Open(dst, opts)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, r.Schema().Fields(), c.Schema().Fields())
	rec, err := c.RecordAt(0)
	require.NoError(t, err)
	name, _ := rec.Get("NAME")
	assert.Equal(t, NewCharacter("Alice"), name)
}
