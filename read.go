package dbf

import (
	"bufio"
	"io"
	"os"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Reader is a read-only table session.
type Reader struct {
	*DBFHandler
}

// Open opens a table for reading. A nil opts selects DefaultOptions.
func Open(fileName string, opts *Options) (*Reader, error) {
	h, err := openHandler(fileName, os.O_RDONLY, opts)
	if err != nil {
		return nil, err
	}
	return &Reader{DBFHandler: h}, nil
}

// RecordAt decodes the physical row at index, deleted or not.
func (r *Reader) RecordAt(index uint32) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getRecord(index, make([]byte, r.header.RecordLength))
}

func (dbf *DBFHandler) getRecord(index uint32, buf []byte) (*Record, error) {
	if err := dbf.readRow(index, buf); err != nil {
		return nil, err
	}
	return dbf.decodeRecord(buf, int64(index))
}

// GetRecord decodes the row at index into the struct pointed to by v.
func (r *Reader) GetRecord(index uint32, v interface{}) error {
	rec, err := r.RecordAt(index)
	if err != nil {
		return err
	}
	return rec.Scan(v)
}

type workerArgs struct {
	index uint32
	slot  int
}

type workerResult struct {
	slot   int
	record *Record
	err    error
}

func (dbf *DBFHandler) startWorker(workerChan []chan workerArgs, resultChan chan<- workerResult, wg *sync.WaitGroup) {
	for i := 0; i < len(workerChan); i++ {
		workerChan[i] = make(chan workerArgs, 16)
		go dbf.work(workerChan[i], resultChan, wg)
	}
}

func (dbf *DBFHandler) work(taskChan <-chan workerArgs, resultChan chan<- workerResult, wg *sync.WaitGroup) {
	buf := make([]byte, dbf.header.RecordLength)
	for args := range taskChan {
		rec, err := dbf.getRecord(args.index, buf)
		resultChan <- workerResult{slot: args.slot, record: rec, err: err}
		wg.Done()
	}
}

// ReadRange decodes rows [start, end) with workerNums goroutines. Deleted rows
// are included and flagged. Results keep file order.
func (r *Reader) ReadRange(start, end uint32, workerNums int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if start > end || end > r.numRecords {
		return nil, errors.Wrapf(ErrRecordOutOfRange, "range [%d, %d) of %d", start, end, r.numRecords)
	}
	if workerNums < 1 {
		workerNums = 1
	}
	total := int(end - start)
	records := make([]*Record, total)
	if total == 0 {
		return records, nil
	}

	wg := sync.WaitGroup{}
	workerChan := make([]chan workerArgs, workerNums)
	resultChan := make(chan workerResult, total)
	r.startWorker(workerChan, resultChan, &wg)
	for i := 0; i < total; i++ {
		wg.Add(1)
		workerChan[i%workerNums] <- workerArgs{index: start + uint32(i), slot: i}
	}
	for i := 0; i < workerNums; i++ {
		close(workerChan[i])
	}
	wg.Wait()
	close(resultChan)

	var firstErr error
	firstSlot := total
	for res := range resultChan {
		if res.err != nil {
			if res.slot < firstSlot {
				firstErr, firstSlot = res.err, res.slot
			}
			continue
		}
		records[res.slot] = res.record
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// GetRecords decodes rows [start, end) into the slice of structs pointed to
// by v, which must hold at least end-start elements.
func (r *Reader) GetRecords(start, end uint32, v interface{}, workerNums int) error {
	rt := reflect.TypeOf(v)
	if rt == nil || rt.Kind() != reflect.Ptr {
		return errors.Errorf("GetRecords requires a pointer to a slice, not a %v", rt)
	}
	if rt.Elem().Kind() != reflect.Slice {
		return errors.Errorf("GetRecords requires a pointer to a slice, not a %s", rt.Elem().Kind())
	}
	if rt.Elem().Elem().Kind() != reflect.Struct {
		return errors.Errorf("GetRecords requires a pointer to a slice of struct, not a %s", rt.Elem().Elem().Kind())
	}
	rv := reflect.ValueOf(v).Elem()
	if end >= start && rv.Len() < int(end-start) {
		return errors.New("slice is shorter than the requested range")
	}

	records, err := r.ReadRange(start, end, workerNums)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if err := rec.scanInto(rv.Index(i)); err != nil {
			return errors.Wrapf(err, "record %d", start+uint32(i))
		}
	}
	return nil
}

// Memo returns the raw content a memo reference points to. An absent
// reference yields nil.
func (r *Reader) Memo(ref Memo) ([]byte, error) {
	if ref.IsNull() {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.memo == nil {
		return nil, ErrMemoFileMissing
	}
	return r.memo.read(ref.Block)
}

// MemoText returns memo content decoded with the table encoding.
func (r *Reader) MemoText(ref Memo) (string, error) {
	b, err := r.Memo(ref)
	if err != nil || b == nil {
		return "", err
	}
	return r.enc.Decode(b)
}

// Records returns an iterator over the live (not deleted) rows.
func (r *Reader) Records() *Iterator {
	it := &Iterator{h: r.DBFHandler, last: -1}
	it.row = make([]byte, r.header.RecordLength)
	it.br = bufio.NewReaderSize(nil, 64*1024)
	_ = it.Seek(0)
	return it
}

// Iterator walks the record area sequentially. It is not safe for
// concurrent use.
type Iterator struct {
	h    *DBFHandler
	br   *bufio.Reader
	row  []byte
	next uint32
	end  uint32
	last int64
	err  error
}

// Next returns the next live record, or io.EOF after the last one.
func (it *Iterator) Next() (*Record, error) {
	if it.err != nil {
		return nil, it.err
	}
	for it.next < it.end {
		index := it.next
		if _, err := io.ReadFull(it.br, it.row); err != nil {
			it.err = ioError("read record", it.h.rowOffset(index), err)
			return nil, it.err
		}
		it.next++
		if it.row[0] == deletedFlag {
			continue
		}
		it.last = int64(index)
		return it.h.decodeRecord(it.row, int64(index))
	}
	return nil, io.EOF
}

// Index is the physical index of the record last returned, or -1.
func (it *Iterator) Index() int64 { return it.last }

// Reset rewinds to the first row.
func (it *Iterator) Reset() {
	_ = it.Seek(0)
}

// Seek positions the iterator so the next call to Next starts at the
// physical row index.
func (it *Iterator) Seek(index uint32) error {
	it.h.mu.RLock()
	end := it.h.numRecords
	it.h.mu.RUnlock()
	if index > end {
		return errors.Wrapf(ErrRecordOutOfRange, "record %d of %d", index, end)
	}
	stride := int64(it.h.header.RecordLength)
	it.br.Reset(io.NewSectionReader(it.h.f, it.h.rowOffset(index), int64(end-index)*stride))
	it.next = index
	it.end = end
	it.last = -1
	it.err = nil
	return nil
}
