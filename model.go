package dbf

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Struct fields are mapped to columns through the `dbf:"NAME"` tag. Untagged
// fields use the Go field name, a tag of "-" skips the field.

var (
	modelCache sync.Map // reflect.Type -> map[string]int
	valueType  = reflect.TypeOf((*Value)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	decType    = reflect.TypeOf(decimal.Decimal{})
)

func modelColumnIndex(rt reflect.Type) map[string]int {
	if cached, ok := modelCache.Load(rt); ok {
		return cached.(map[string]int)
	}
	index := make(map[string]int, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue
		}
		column := field.Tag.Get("dbf")
		if column == "-" {
			continue
		}
		if column == "" {
			column = field.Name
		}
		index[recordKey(column)] = i
	}
	modelCache.Store(rt, index)
	return index
}

func structValue(v interface{}, op string) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, errors.Errorf("%s requires a non-nil pointer to a struct", op)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Errorf("%s requires a pointer to a struct, not a %s", op, rv.Kind())
	}
	return rv, nil
}

// Scan copies the record values into the tagged fields of the struct
// pointed to by v. Columns without a struct field are ignored.
func (r *Record) Scan(v interface{}) error {
	rv, err := structValue(v, "Scan")
	if err != nil {
		return err
	}
	return r.scanInto(rv)
}

func (r *Record) scanInto(rv reflect.Value) error {
	index := modelColumnIndex(rv.Type())
	for _, name := range r.names {
		i, ok := index[recordKey(name)]
		if !ok {
			continue
		}
		if err := assignValue(rv.Field(i), r.values[recordKey(name)]); err != nil {
			return &FieldError{Record: -1, Field: name, Err: err}
		}
	}
	return nil
}

func assignValue(dst reflect.Value, v Value) error {
	if v == nil || v.IsNull() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if reflect.TypeOf(v).AssignableTo(dst.Type()) {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch dst.Type() {
	case timeType:
		switch v := v.(type) {
		case Date:
			dst.Set(reflect.ValueOf(v.Time))
			return nil
		case DateTime:
			dst.Set(reflect.ValueOf(v.Time))
			return nil
		}
		return cannotAssign(v, dst)
	case decType:
		d, ok := decimalOf(v)
		if !ok {
			return cannotAssign(v, dst)
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(Format(v))
	case reflect.Bool:
		l, ok := v.(Logical)
		if !ok {
			return cannotAssign(v, dst)
		}
		dst.SetBool(l.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		d, ok := decimalOf(v)
		if !ok {
			return cannotAssign(v, dst)
		}
		n := d.IntPart()
		if dst.OverflowInt(n) {
			return errors.Wrapf(ErrInvalidFieldValue, "%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		d, ok := decimalOf(v)
		if !ok || d.Sign() < 0 {
			return cannotAssign(v, dst)
		}
		n := uint64(d.IntPart())
		if dst.OverflowUint(n) {
			return errors.Wrapf(ErrInvalidFieldValue, "%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		switch v := v.(type) {
		case Float:
			dst.SetFloat(v.Float64)
		case Double:
			dst.SetFloat(v.Float64)
		default:
			d, ok := decimalOf(v)
			if !ok {
				return cannotAssign(v, dst)
			}
			dst.SetFloat(d.InexactFloat64())
		}
	default:
		return cannotAssign(v, dst)
	}
	return nil
}

func decimalOf(v Value) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case Numeric:
		return v.Decimal, true
	case Currency:
		return v.Decimal(), true
	case Integer:
		return decimal.NewFromInt32(v.Int32), true
	case Float:
		return finiteDecimal(v.Float64)
	case Double:
		return finiteDecimal(v.Float64)
	}
	return decimal.Decimal{}, false
}

func cannotAssign(v Value, dst reflect.Value) error {
	return errors.Wrapf(ErrInvalidFieldValue, "cannot store %s in %s", v.Type(), dst.Type())
}

// RecordFromStruct builds a record holding every field of the schema from
// the tagged struct pointed to by v.
func (s *Schema) RecordFromStruct(v interface{}) (*Record, error) {
	rv, err := structValue(v, "RecordFromStruct")
	if err != nil {
		return nil, err
	}
	index := modelColumnIndex(rv.Type())
	rec := NewRecord()
	for i := range s.fields {
		f := &s.fields[i]
		fieldIndex, ok := index[recordKey(f.Name)]
		if !ok {
			return nil, errors.Errorf("column %s not found", f.Name)
		}
		val, err := valueFromGo(f, rv.Field(fieldIndex))
		if err != nil {
			return nil, &FieldError{Record: -1, Field: f.Name, Err: err}
		}
		rec.Set(f.Name, val)
	}
	return rec, nil
}

func valueFromGo(f *Field, src reflect.Value) (Value, error) {
	if src.Kind() == reflect.Ptr {
		if src.IsNil() {
			return Null(f.Type), nil
		}
		src = src.Elem()
	}
	if src.Type().Implements(valueType) {
		v := src.Interface().(Value)
		if v.Type() == f.Type {
			return v, nil
		}
	}

	switch f.Type {
	case TypeCharacter:
		if src.Kind() == reflect.String {
			return NewCharacter(src.String()), nil
		}
		return NewCharacter(fmt.Sprint(src.Interface())), nil
	case TypeLogical:
		if src.Kind() == reflect.Bool {
			return NewLogical(src.Bool()), nil
		}
	case TypeDate, TypeDateTime:
		if src.Type() == timeType {
			t := src.Interface().(time.Time)
			if t.IsZero() {
				return Null(f.Type), nil
			}
			if f.Type == TypeDate {
				y, m, d := t.Date()
				return NewDate(y, m, d), nil
			}
			return NewDateTime(t), nil
		}
	case TypeNumeric, TypeCurrency:
		d, ok := goDecimal(src)
		if !ok {
			break
		}
		if f.Type == TypeCurrency {
			return NewCurrencyDecimal(d), nil
		}
		return NewNumeric(d), nil
	case TypeFloat, TypeDouble:
		x, ok := goFloat(src)
		if !ok {
			break
		}
		if f.Type == TypeFloat {
			return NewFloat(x), nil
		}
		return NewDouble(x), nil
	case TypeInteger:
		d, ok := goDecimal(src)
		if !ok {
			break
		}
		n := d.IntPart()
		if !d.Equal(decimal.NewFromInt(n)) || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Wrapf(ErrInvalidFieldValue, "%s does not fit an Integer", d)
		}
		return NewInteger(int32(n)), nil
	}
	return nil, errors.Wrapf(ErrInvalidFieldValue, "cannot store %s in a %s field", src.Type(), f.Type)
}

func goFloat(src reflect.Value) (float64, bool) {
	if src.Kind() == reflect.Float32 || src.Kind() == reflect.Float64 {
		return src.Float(), true
	}
	d, ok := goDecimal(src)
	return d.InexactFloat64(), ok
}

func goDecimal(src reflect.Value) (decimal.Decimal, bool) {
	if src.Type() == decType {
		return src.Interface().(decimal.Decimal), true
	}
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(src.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(src.Uint()), 0), true
	case reflect.Float32, reflect.Float64:
		return finiteDecimal(src.Float())
	case reflect.String:
		d, err := decimal.NewFromString(strings.TrimSpace(src.String()))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func finiteDecimal(x float64) (decimal.Decimal, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(x), true
}
