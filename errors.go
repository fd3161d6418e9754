package dbf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMalformedHeader      = errors.New("malformed header")
	ErrInvalidSchema        = errors.New("invalid schema")
	ErrInvalidFieldValue    = errors.New("invalid field value")
	ErrValueTooLong         = errors.New("value too long for field")
	ErrMemoFileMissing      = errors.New("memo file missing")
	ErrInvalidMemoReference = errors.New("invalid memo reference")
	ErrRecordOutOfRange     = errors.New("record index out of range")
	ErrClosed               = errors.New("table is closed")
)

// IOError is a storage failure annotated with the operation and the byte
// offset it happened at.
type IOError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioError(op string, offset int64, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Offset: offset, Err: err}
}

// FieldError reports a value that could not be decoded or encoded.
// Record is -1 when the value is not tied to a row.
type FieldError struct {
	Record int64
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("record %d field %s: %v", e.Record, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// SchemaError names the field that made a schema invalid.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: field %q: %s", ErrInvalidSchema, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

func schemaError(field, format string, args ...interface{}) error {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
