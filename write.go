package dbf

import (
	"encoding/binary"
	stderrors "errors"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Writer is a table session that mutates the file in place. Every method
// holds the handle's exclusive lock for its duration.
type Writer struct {
	*DBFHandler

	// now is the clock used for the last-update date.
	now func() time.Time
}

// OpenForWrite opens an existing table for appending and updating rows.
func OpenForWrite(fileName string, opts *Options) (*Writer, error) {
	h, err := openHandler(fileName, os.O_RDWR, opts)
	if err != nil {
		return nil, err
	}
	return newWriter(h), nil
}

func newWriter(h *DBFHandler) *Writer {
	return &Writer{DBFHandler: h, now: time.Now}
}

// Create writes a new, empty table laid out like schema.
func Create(fileName string, schema *Schema, opts *Options) (*Writer, error) {
	b := NewTableWriterBuilder(opts)
	if err := b.FromSchema(schema); err != nil {
		return nil, err
	}
	return b.Build(fileName)
}

// WriteRecord appends rec. Every field of the schema must be present; an
// absent value is stored blank. A rejected record leaves the file untouched.
func (w *Writer) WriteRecord(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	row, err := w.encodeRecord(rec)
	if err != nil {
		return err
	}
	return w.saveRecord(row)
}

// Append writes the tagged struct pointed to by model as a new row.
func (w *Writer) Append(model interface{}) error {
	rec, err := w.schema.RecordFromStruct(model)
	if err != nil {
		return err
	}
	return w.WriteRecord(rec)
}

// saveRecord writes row and a trailing EOF marker at the end of the record
// area. On failure the file is cut back to its previous end.
func (w *Writer) saveRecord(row []byte) error {
	if w.numRecords == math.MaxUint32 {
		return errors.Wrap(ErrRecordOutOfRange, "table is full")
	}
	off := w.rowOffset(w.numRecords)
	buf := make([]byte, 0, len(row)+1)
	buf = append(buf, row...)
	buf = append(buf, EOF)
	if _, err := w.f.WriteAt(buf, off); err != nil {
		if rerr := w.rollbackRecord(); rerr != nil {
			w.opts.Logger.WithError(rerr).WithField("file", w.fileName).Error("rollback failed")
		}
		return ioError("write record", off, err)
	}
	w.numRecords++
	if end := off + int64(len(buf)); end > w.fileSize {
		w.fileSize = end
	}
	return nil
}

func (w *Writer) rollbackRecord() error {
	end := w.rowOffset(w.numRecords)
	if err := w.f.Truncate(end); err != nil {
		return ioError("truncate", end, err)
	}
	if _, err := w.f.WriteAt([]byte{EOF}, end); err != nil {
		return ioError("write eof", end, err)
	}
	w.fileSize = end + 1
	return nil
}

// UpdateRecord re-encodes the fields present in partial and writes each at
// its offset inside row index. Other bytes of the row are left untouched.
// partial.Deleted is ignored; use DeleteRecord and RecallRecord.
func (w *Writer) UpdateRecord(index uint32, partial *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if index >= w.numRecords {
		return errors.Wrapf(ErrRecordOutOfRange, "record %d of %d", index, w.numRecords)
	}
	if partial == nil {
		return nil
	}
	if err := w.checkNames(partial); err != nil {
		return err
	}

	type patch struct {
		off  int64
		data []byte
	}
	patches := make([]patch, 0, partial.Len()+1)
	base := w.rowOffset(index)
	var nulls []byte
	for _, name := range partial.names {
		i, _ := w.schema.FieldIndex(name)
		f := &w.schema.fields[i]
		v := partial.values[recordKey(name)]
		b, err := encodeValue(f, v, w.enc)
		if err != nil {
			return &FieldError{Record: int64(index), Field: f.Name, Err: err}
		}
		patches = append(patches, patch{off: base + int64(f.offset), data: b})

		at, mask, ok := w.schema.nullMask(f)
		if !ok {
			continue
		}
		if nulls == nil {
			nulls = make([]byte, w.schema.nullLength)
			off := base + int64(w.schema.nullOffset)
			if _, err := w.f.ReadAt(nulls, off); err != nil {
				return ioError("read null flags", off, err)
			}
		}
		if v.IsNull() {
			nulls[at-w.schema.nullOffset] |= mask
		} else {
			nulls[at-w.schema.nullOffset] &^= mask
		}
	}
	if nulls != nil {
		patches = append(patches, patch{off: base + int64(w.schema.nullOffset), data: nulls})
	}
	for _, p := range patches {
		if _, err := w.f.WriteAt(p.data, p.off); err != nil {
			return ioError("update record", p.off, err)
		}
	}
	return nil
}

// DeleteRecord marks row index as deleted.
func (w *Writer) DeleteRecord(index uint32) error {
	return w.setDeleted(index, deletedFlag)
}

// RecallRecord clears the deletion mark of row index.
func (w *Writer) RecallRecord(index uint32) error {
	return w.setDeleted(index, SPACE)
}

func (w *Writer) setDeleted(index uint32, flag byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if index >= w.numRecords {
		return errors.Wrapf(ErrRecordOutOfRange, "record %d of %d", index, w.numRecords)
	}
	off := w.rowOffset(index)
	_, err := w.f.WriteAt([]byte{flag}, off)
	return ioError("write deletion flag", off, err)
}

// Finalize brings the header in line with the record area: it stores the
// record counter and the last-update date, terminates the record area with
// the EOF marker, drops anything after it and syncs. Calling it again
// without intervening writes rewrites the same bytes.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.finalize()
}

func (w *Writer) finalize() error {
	if err := w.saveNumRecords(); err != nil {
		return staleHeader(err)
	}
	if err := w.saveUpdateTime(w.now()); err != nil {
		return staleHeader(err)
	}
	end := w.rowOffset(w.numRecords)
	if _, err := w.f.WriteAt([]byte{EOF}, end); err != nil {
		return staleHeader(ioError("write eof", end, err))
	}
	if err := w.f.Truncate(end + 1); err != nil {
		return staleHeader(ioError("truncate", end+1, err))
	}
	w.fileSize = end + 1
	if err := w.f.Sync(); err != nil {
		return staleHeader(ioError("sync", 0, err))
	}
	w.opts.Logger.WithFields(log.Fields{
		"file":    w.fileName,
		"records": w.numRecords,
	}).Debug("table finalized")
	return nil
}

func staleHeader(err error) error {
	return errors.Wrap(err, "finalize failed, header counters may be stale")
}

func (w *Writer) saveNumRecords() error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, w.numRecords)
	if _, err := w.f.WriteAt(buf, 4); err != nil {
		return ioError("write record count", 4, err)
	}
	w.header.NumRecords = w.numRecords
	return nil
}

func (w *Writer) saveUpdateTime(t time.Time) error {
	h := w.header
	h.setModified(t)
	if _, err := w.f.WriteAt([]byte{h.LastUpdateYear, h.LastUpdateMonth, h.LastUpdateDay}, 1); err != nil {
		return ioError("write update date", 1, err)
	}
	w.header = h
	return nil
}

// Close finalizes the table and releases its handles. Closing twice is a
// no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	ferr := w.finalize()
	return joinErrors(ferr, w.close())
}

// Update opens fileName for writing, runs fn and closes the writer on every
// path out of fn, panics included.
func Update(fileName string, opts *Options, fn func(*Writer) error) error {
	w, err := OpenForWrite(fileName, opts)
	if err != nil {
		return err
	}
	return runWriter(w, fn)
}

// CreateWith builds a new table with b, runs fn and closes the writer on
// every path out of fn.
func CreateWith(fileName string, b *TableWriterBuilder, fn func(*Writer) error) error {
	w, err := b.Build(fileName)
	if err != nil {
		return err
	}
	return runWriter(w, fn)
}

func runWriter(w *Writer, fn func(*Writer) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = w.Close()
			panic(p)
		}
		err = joinErrors(err, w.Close())
	}()
	return fn(w)
}

// joinErrors combines the non-nil errors of a call and its cleanup.
func joinErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	return stderrors.Join(nonNil...)
}
