package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/schema"
)

// InsertList builds the statements inserting every row of rows (a slice or
// array of the row type or pointers to it). Dialects using BulkPerRow get one
// parameterized insert per row, each retrieving its identity. Dialects using
// BulkLiterals get multi-row inserts with literal value tuples, starting a new
// statement whenever the next tuple would exceed the maximum statement length.
// A row type with no insertable column falls back to one "default values"
// insert per row.
func (b *Builder) InsertList(rows interface{}, opts ...StatementOption) ([]*Statement, error) {
	rv, err := sliceValue(rows)
	if err != nil {
		return nil, err
	}
	if rv.Len() == 0 {
		return nil, nil
	}

	perRow, err := b.rowByRow(rv.Type().Elem(), opts)
	if err != nil {
		return nil, err
	}
	if perRow {
		stmts := make([]*Statement, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			stmt, err := b.Insert(rv.Index(i).Interface(), opts...)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			stmts = append(stmts, stmt)
		}
		return stmts, nil
	}

	t, err := b.Describe(rv.Type().Elem())
	if err != nil {
		return nil, err
	}
	cols, _, err := insertColumns(t, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return b.insertLiterals(t, rv, cols)
}

// rowByRow reports whether rows of type elem are inserted one statement per
// row. A multi-row insert needs at least one column to name.
func (b *Builder) rowByRow(elem reflect.Type, opts []StatementOption) (bool, error) {
	if b.dialect.BulkInsert() == dialects.BulkPerRow {
		return true, nil
	}
	t, err := b.Describe(elem)
	if err != nil {
		return false, err
	}
	cols, _, err := insertColumns(t, applyOptions(opts))
	if err != nil {
		return false, err
	}
	return len(cols) == 0, nil
}

// sliceValue dereferences rows down to the slice or array it holds.
func sliceValue(rows interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(rows)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("%w: InsertList needs a slice, got %T", ErrInvalidRowType, rows)
	}
	return rv, nil
}

func (b *Builder) insertLiterals(t *schema.Table, rows reflect.Value, cols []*schema.Column) ([]*Statement, error) {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	head := "insert into " + t.Name + "(" + strings.Join(names, ",") + ") values "
	limit := b.dialect.MaxStatementLength()

	var (
		stmts []*Statement
		sb    strings.Builder
		count int
	)
	flush := func() {
		if count > 0 {
			stmts = append(stmts, &Statement{SQL: sb.String(), Kind: KindInsert, Table: t})
		}
		sb.Reset()
		count = 0
	}

	for i := 0; i < rows.Len(); i++ {
		rv, err := rowValue(t, rows.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		tuple, err := b.tuple(rv, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		// A tuple that does not fit on its own still gets a statement of its own.
		if count > 0 && sb.Len()+len(",")+len(tuple) > limit {
			flush()
		}
		if count == 0 {
			sb.WriteString(head)
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
		count++
	}
	flush()
	return stmts, nil
}

// tuple renders one row as a parenthesized list of SQL literals.
func (b *Builder) tuple(rv reflect.Value, cols []*schema.Column) (string, error) {
	values := make([]string, len(cols))
	for i, col := range cols {
		if col.InsertSQL != "" {
			values[i] = col.InsertSQL
			continue
		}
		lit, err := b.dialect.Literal(col.Accessor.Get(rv))
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Field, err)
		}
		values[i] = lit
	}
	return "(" + strings.Join(values, ", ") + ")", nil
}
