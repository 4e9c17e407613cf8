package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlmap/internal/schema"
)

// scanPlan maps result columns to table columns for one result set.
// Unmapped result columns are scanned and discarded.
type scanPlan struct {
	table   *schema.Table
	targets []*schema.Column // nil entries are discarded
}

// newScanPlan matches result column names, ignoring case, against each
// column's alias, SQL name and Go field name, in that order.
func newScanPlan(t *schema.Table, columns []string) *scanPlan {
	byName := make(map[string]*schema.Column, len(t.Columns)*2)
	add := func(name string, col *schema.Column) {
		if name == "" {
			return
		}
		name = strings.ToLower(name)
		if _, taken := byName[name]; !taken {
			byName[name] = col
		}
	}
	for _, col := range t.Columns {
		add(col.Alias, col)
	}
	for _, col := range t.Columns {
		if !col.Expr {
			add(col.RawName, col)
		}
	}
	for _, col := range t.Columns {
		add(col.Field, col)
	}

	p := &scanPlan{table: t, targets: make([]*schema.Column, len(columns))}
	for i, name := range columns {
		p.targets[i] = byName[strings.ToLower(name)]
	}
	return p
}

// scan reads the current row into row, an addressable struct value.
func (p *scanPlan) scan(rows *sql.Rows, row reflect.Value) error {
	dests := make([]interface{}, len(p.targets))
	for i, col := range p.targets {
		if col == nil {
			var discard interface{}
			dests[i] = &discard
			continue
		}
		ptr, err := col.Accessor.Pointer(row)
		if err != nil {
			return err
		}
		dests[i] = ptr
	}
	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// sliceTarget validates dest as a pointer to a slice of structs or struct
// pointers and returns the slice and its element row type.
func sliceTarget(dest interface{}) (slice reflect.Value, elem reflect.Type, isPtr bool, err error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: dest must be a pointer to a slice, got %T", ErrInvalidRowType, dest)
	}
	slice = v.Elem()
	if slice.Kind() != reflect.Slice {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: dest must be a pointer to a slice, got %T", ErrInvalidRowType, dest)
	}
	elem = slice.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem, isPtr = elem.Elem(), true
	}
	if elem.Kind() != reflect.Struct {
		return reflect.Value{}, nil, false, fmt.Errorf("%w: slice element must be struct or *struct, got %s", ErrInvalidRowType, elem)
	}
	return slice, elem, isPtr, nil
}

// structTarget validates dest as a non-nil pointer to a struct.
func structTarget(dest interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: dest must be a pointer to a struct, got %T", ErrInvalidRowType, dest)
	}
	return v.Elem(), nil
}

// scanAll appends every row of rows to slice.
func scanAll(rows *sql.Rows, t *schema.Table, slice reflect.Value, isPtr bool) (int64, error) {
	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("scanner: failed to get columns: %w", err)
	}
	plan := newScanPlan(t, columns)

	var n int64
	for rows.Next() {
		elem := reflect.New(t.Type).Elem()
		if err := plan.scan(rows, elem); err != nil {
			return n, err
		}
		if isPtr {
			slice.Set(reflect.Append(slice, elem.Addr()))
		} else {
			slice.Set(reflect.Append(slice, elem))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return n, nil
}

// scanOne reads the first row of rows into row. It returns ErrNoRows when
// the result set is empty.
func scanOne(rows *sql.Rows, t *schema.Table, row reflect.Value) error {
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("scanner: rows iteration failed: %w", err)
		}
		return ErrNoRows
	}
	return newScanPlan(t, columns).scan(rows, row)
}
