package dbf

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DBF is the part of a table session shared by readers and writers.
type DBF interface {
	Header() DBFHeader
	Schema() *Schema
	NumRecords() uint32
	Close() error
}

// DBFHandler owns an open table file and the metadata parsed from it.
// Reader and Writer embed it.
type DBFHandler struct {
	mu       sync.RWMutex
	fileName string
	f        *os.File
	fileSize int64
	opts     *Options
	enc      Encoding
	header   DBFHeader
	schema   *Schema
	quirks   []Quirk
	backlink []byte
	memo     *memoFile

	// numRecords is the number of rows in the record area, which may differ
	// from header.NumRecords until the next finalize.
	numRecords uint32
	closed     bool
}

func openHandler(fileName string, flag int, opts *Options) (*DBFHandler, error) {
	opts = opts.withDefaults()
	f, err := os.OpenFile(fileName, flag, 0)
	if err != nil {
		return nil, err
	}
	fileStat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	dbf := &DBFHandler{
		fileName: fileName,
		f:        f,
		fileSize: fileStat.Size(),
		opts:     opts,
	}
	if err = dbf.initMetaData(); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, fileName)
	}
	if err = dbf.initMemo(); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, fileName)
	}
	opts.Logger.WithFields(log.Fields{
		"file":    fileName,
		"variant": dbf.header.Variant(),
		"fields":  dbf.schema.NumFields(),
		"records": dbf.numRecords,
	}).Debug("table opened")
	return dbf, nil
}

func (dbf *DBFHandler) initMemo() error {
	hasMemoField := false
	for _, f := range dbf.schema.fields {
		if f.Type == TypeMemo {
			hasMemoField = true
			break
		}
	}
	if !hasMemoField && !dbf.header.HasMemo() {
		return nil
	}
	m, err := openMemo(dbf.fileName, dbf.header.Version)
	if err != nil {
		return err
	}
	if m == nil {
		dbf.opts.Logger.WithField("file", dbf.fileName).Warn("table references a memo file that was not found")
	}
	dbf.memo = m
	return nil
}

// ReloadFromFile re-reads the metadata, picking up changes made through
// another handle.
func (dbf *DBFHandler) ReloadFromFile() error {
	dbf.mu.Lock()
	defer dbf.mu.Unlock()
	if dbf.closed {
		return ErrClosed
	}
	fileStat, err := dbf.f.Stat()
	if err != nil {
		return err
	}
	dbf.fileSize = fileStat.Size()
	return dbf.initMetaData()
}

func (dbf *DBFHandler) FileName() string { return dbf.fileName }

// Header returns a copy of the header as last read or written.
func (dbf *DBFHandler) Header() DBFHeader {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return dbf.header
}

func (dbf *DBFHandler) Schema() *Schema { return dbf.schema }

func (dbf *DBFHandler) Variant() Variant { return dbf.header.Variant() }

func (dbf *DBFHandler) Encoding() Encoding { return dbf.enc }

// Quirks lists the irregularities tolerated while parsing the header.
func (dbf *DBFHandler) Quirks() []Quirk {
	return append([]Quirk(nil), dbf.quirks...)
}

// NumRecords is the number of rows in the record area, deleted ones included.
func (dbf *DBFHandler) NumRecords() uint32 {
	dbf.mu.RLock()
	defer dbf.mu.RUnlock()
	return dbf.numRecords
}

func (dbf *DBFHandler) rowOffset(index uint32) int64 {
	return int64(dbf.header.HeaderLength) + int64(index)*int64(dbf.header.RecordLength)
}

// readRow reads one physical row with a positional read. Callers hold mu.
func (dbf *DBFHandler) readRow(index uint32, buf []byte) error {
	if dbf.closed {
		return ErrClosed
	}
	if index >= dbf.numRecords {
		return errors.Wrapf(ErrRecordOutOfRange, "record %d of %d", index, dbf.numRecords)
	}
	off := dbf.rowOffset(index)
	if _, err := dbf.f.ReadAt(buf, off); err != nil {
		return ioError("read record", off, err)
	}
	return nil
}

func (dbf *DBFHandler) close() error {
	if dbf.closed {
		return nil
	}
	dbf.closed = true
	var err error
	if dbf.memo != nil {
		err = dbf.memo.Close()
	}
	if cerr := dbf.f.Close(); cerr != nil {
		err = joinErrors(err, cerr)
	}
	return err
}

// Close releases the table and memo handles.
func (dbf *DBFHandler) Close() error {
	dbf.mu.Lock()
	defer dbf.mu.Unlock()
	return dbf.close()
}
