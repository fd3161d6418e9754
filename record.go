package dbf

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// Record is an ordered mapping of field names to values plus the deletion
// flag. Names are matched case-insensitively. A Record holds no reference
// to the table it came from.
type Record struct {
	Deleted bool

	names  []string
	values map[string]Value
}

func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

func recordKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Set stores v under name, keeping the position of an existing entry.
func (r *Record) Set(name string, v Value) *Record {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	key := recordKey(name)
	if _, ok := r.values[key]; !ok {
		r.names = append(r.names, name)
	}
	r.values[key] = v
	return r
}

func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[recordKey(name)]
	return v, ok
}

// Names returns the field names in insertion order.
func (r *Record) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Record) Len() int { return len(r.names) }

// Values returns the values in the order of Names.
func (r *Record) Values() []Value {
	out := make([]Value, len(r.names))
	for i, n := range r.names {
		out[i] = r.values[recordKey(n)]
	}
	return out
}

// decodeRecord decodes one physical row. index is used for error reports.
func (dbf *DBFHandler) decodeRecord(row []byte, index int64) (*Record, error) {
	fields := dbf.schema.fields
	rec := &Record{
		Deleted: row[0] == deletedFlag,
		names:   make([]string, 0, len(fields)),
		values:  make(map[string]Value, len(fields)),
	}
	for i := range fields {
		f := &fields[i]
		if at, mask, ok := dbf.schema.nullMask(f); ok && row[at]&mask != 0 {
			rec.Set(f.Name, Null(f.Type))
			continue
		}
		v, err := decodeValue(f, row[f.offset:f.offset+f.Length], dbf.opts.Trim, dbf.enc)
		if err != nil {
			fe := &FieldError{Record: index, Field: f.Name, Err: err}
			if dbf.opts.Strict {
				return nil, fe
			}
			dbf.opts.Logger.WithError(fe).Debug("field read as absent")
			v = Null(f.Type)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}

// encodeRecord serializes a complete record into a row of the table's
// record length. Every visible field must be present.
func (dbf *DBFHandler) encodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.Wrap(ErrInvalidFieldValue, "nil record")
	}
	if err := dbf.checkNames(rec); err != nil {
		return nil, err
	}
	row := bytes.Repeat([]byte{SPACE}, int(dbf.header.RecordLength))
	if rec.Deleted {
		row[0] = deletedFlag
	}
	for _, f := range dbf.schema.all {
		if f.hidden {
			copy(row[f.offset:f.offset+f.Length], make([]byte, f.Length))
		}
	}
	for i := range dbf.schema.fields {
		f := &dbf.schema.fields[i]
		v, ok := rec.Get(f.Name)
		if !ok {
			return nil, &FieldError{Record: -1, Field: f.Name, Err: errors.Wrap(ErrInvalidFieldValue, "missing")}
		}
		b, err := encodeValue(f, v, dbf.enc)
		if err != nil {
			return nil, &FieldError{Record: -1, Field: f.Name, Err: err}
		}
		copy(row[f.offset:], b)
		if at, mask, ok := dbf.schema.nullMask(f); ok && v.IsNull() {
			row[at] |= mask
		}
	}
	return row, nil
}

func (dbf *DBFHandler) checkNames(rec *Record) error {
	for _, name := range rec.names {
		if _, ok := dbf.schema.FieldIndex(name); !ok {
			return &FieldError{Record: -1, Field: name, Err: errors.Wrap(ErrInvalidFieldValue, "no such field")}
		}
	}
	return nil
}
