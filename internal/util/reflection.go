// Package util provides the member accessor used by table metadata: cached
// get/set bindings for struct fields, db tag parsing, and identity write-back.
package util

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TagOptions holds the comma-separated options following the column name in a db tag.
type TagOptions map[string]bool

// Has reports whether the tag carried the named option.
func (o TagOptions) Has(name string) bool {
	return o[name]
}

// ParseDBTag parses a db tag into a column name and its options.
//
// Supported formats:
//   - "column"             -> column="column"
//   - "column,key"         -> key member ("pk" is accepted as an alias)
//   - ",identity"          -> column name defaults to the field name
//   - "column,readonly"    -> neither inserted nor updated
//   - "-"                  -> column="-" (skip field)
func ParseDBTag(tag string) (column string, opts TagOptions) {
	parts := strings.Split(tag, ",")
	column = strings.TrimSpace(parts[0])
	opts = make(TagOptions, len(parts)-1)

	for _, part := range parts[1:] {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == "pk" {
			part = "key"
		}
		opts[part] = true
	}

	return column, opts
}

// Accessor is a compiled get/set binding for one struct field. It is resolved once
// when table metadata is built, so reads and writes only walk a cached index path.
type Accessor struct {
	Name  string       // Go field name
	Index []int        // field index path, including embedded structs
	Type  reflect.Type // field type
}

// NewAccessor creates an accessor for field reached through the given index path.
func NewAccessor(field reflect.StructField, index []int) Accessor {
	return Accessor{
		Name:  field.Name,
		Index: append([]int(nil), index...),
		Type:  field.Type,
	}
}

// Indirect dereferences v until it reaches a struct.
func Indirect(v reflect.Value) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, errors.New("Indirect: nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.New("Indirect: expected struct, got " + v.Kind().String())
	}
	return v, nil
}

// field walks the index path. When alloc is true nil embedded pointers are
// allocated, otherwise an invalid value is returned for them.
func (a Accessor) field(row reflect.Value, alloc bool) reflect.Value {
	v := row
	for i, idx := range a.Index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !alloc || !v.CanSet() {
					return reflect.Value{}
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	return v
}

// Value returns the reflect.Value of the field in row, or an invalid value when
// an embedded pointer on the path is nil.
func (a Accessor) Value(row reflect.Value) reflect.Value {
	return a.field(row, false)
}

// Get returns the field's current value from row (a struct value).
func (a Accessor) Get(row reflect.Value) interface{} {
	v := a.field(row, false)
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// Pointer returns the address of the field in row for scanning, allocating
// nil embedded pointers on the way. Row must be addressable.
func (a Accessor) Pointer(row reflect.Value) (interface{}, error) {
	v := a.field(row, true)
	if !v.IsValid() || !v.CanAddr() {
		return nil, fmt.Errorf("Pointer: field %s is not addressable", a.Name)
	}
	return v.Addr().Interface(), nil
}

// Set assigns value to the field in row. Row must be addressable.
// Values are converted when their type is convertible to the field type.
func (a Accessor) Set(row reflect.Value, value interface{}) error {
	v := a.field(row, true)
	if !v.IsValid() || !v.CanSet() {
		return fmt.Errorf("Set: field %s is not settable", a.Name)
	}

	if value == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}

	src := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr && src.Type() != v.Type() {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	switch {
	case src.Type().AssignableTo(v.Type()):
		v.Set(src)
	case src.Type().ConvertibleTo(v.Type()):
		v.Set(src.Convert(v.Type()))
	default:
		return fmt.Errorf("Set: cannot assign %s to field %s of type %s", src.Type(), a.Name, v.Type())
	}
	return nil
}

// SetInt64 writes a generated identity value into the field in row.
func (a Accessor) SetInt64(row reflect.Value, id int64) error {
	v := a.field(row, true)
	if err := SetIdentityValue(v, id); err != nil {
		return fmt.Errorf("field %s: %w", a.Name, err)
	}
	return nil
}

// SetIdentityValue sets a generated identity value using reflection.
//
// Handles:
//   - int types: int, int8, int16, int32, int64
//   - uint types: uint, uint8, uint16, uint32, uint64
//   - pointers: allocate if nil, then set
//
// Returns error on:
//   - overflow (e.g., int64(1000000) -> int8)
//   - unsupported type
//   - non-settable field
//
//nolint:gocognit,cyclop,gocyclo,funlen // One case per integer width.
func SetIdentityValue(field reflect.Value, id int64) error {
	if !field.IsValid() {
		return errors.New("SetIdentityValue: invalid field")
	}

	if !field.CanSet() {
		return errors.New("SetIdentityValue: field is not settable")
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return SetIdentityValue(field.Elem(), id)
	}

	switch field.Kind() {
	case reflect.Int:
		const maxInt = int(^uint(0) >> 1)
		const minInt = -maxInt - 1
		if id < int64(minInt) || id > int64(maxInt) {
			return errors.New("SetIdentityValue: int overflow")
		}
		field.SetInt(id)
	case reflect.Int8:
		if id < -128 || id > 127 {
			return errors.New("SetIdentityValue: int8 overflow")
		}
		field.SetInt(id)
	case reflect.Int16:
		if id < -32768 || id > 32767 {
			return errors.New("SetIdentityValue: int16 overflow")
		}
		field.SetInt(id)
	case reflect.Int32:
		if id < -2147483648 || id > 2147483647 {
			return errors.New("SetIdentityValue: int32 overflow")
		}
		field.SetInt(id)
	case reflect.Int64:
		field.SetInt(id)
	case reflect.Uint:
		if id < 0 {
			return errors.New("SetIdentityValue: uint overflow")
		}
		field.SetUint(uint64(id))
	case reflect.Uint8:
		if id < 0 || id > 255 {
			return errors.New("SetIdentityValue: uint8 overflow")
		}
		field.SetUint(uint64(id))
	case reflect.Uint16:
		if id < 0 || id > 65535 {
			return errors.New("SetIdentityValue: uint16 overflow")
		}
		field.SetUint(uint64(id))
	case reflect.Uint32:
		if id < 0 || id > 4294967295 {
			return errors.New("SetIdentityValue: uint32 overflow")
		}
		field.SetUint(uint64(id))
	case reflect.Uint64:
		if id < 0 {
			return errors.New("SetIdentityValue: uint64 overflow (negative value)")
		}
		field.SetUint(uint64(id))
	default:
		return errors.New("SetIdentityValue: unsupported type " + field.Kind().String())
	}

	return nil
}
