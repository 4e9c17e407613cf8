// Package schema reflects mapped row types into cached table descriptors:
// table name, ordered columns, key membership, insert/update eligibility and
// the generated identity column.
package schema

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/coregx/sqlmap/internal/util"
)

// Errors returned while describing row types.
var (
	// ErrConfiguration is returned when a type's metadata contradicts itself.
	ErrConfiguration = errors.New("invalid table configuration")
	// ErrColumnNotFound is returned when a field name is absent from a table.
	ErrColumnNotFound = errors.New("column not found")
	// ErrInvalidRowType is returned for non-struct row types.
	ErrInvalidRowType = errors.New("invalid row type")
)

// SelectOptions customizes the select statements generated for a type.
// Row types provide it through a SelectOptions() method.
type SelectOptions struct {
	// Prefix replaces the leading "select" keyword, e.g. "select distinct".
	Prefix string
	// Trailing is appended when the caller supplies no trailing clause.
	Trailing string
	// GroupByKey appends "group by" over the projected key columns.
	GroupByKey bool
}

// Column describes one mapped field.
type Column struct {
	Field    string        // Go field name
	Accessor util.Accessor // cached get/set binding
	Key      bool          // participates in row identification
	Identity bool          // generated value retrieved after insert

	Name    string // SQL-side name: quoted identifier or raw expression
	RawName string // unquoted identifier, used to name parameters
	Alias   string // select alias when Name does not read back as Field
	Expr    bool   // Name is a raw SQL expression

	Insertable bool
	InsertSQL  string // literal SQL used instead of a bound parameter
	Updatable  bool
	UpdateSQL  string
}

// ParamName returns the default bound parameter name for the column.
func (c *Column) ParamName() string {
	if c.Expr || c.RawName == "" {
		return c.Field
	}
	return c.RawName
}

// Table describes a mapped row type.
type Table struct {
	Type     reflect.Type
	Name     string // quoted table name
	From     string // raw from clause, overrides Name in selects
	Columns  []*Column
	Identity *Column
	Select   SelectOptions

	byField map[string]*Column
}

// FromSQL returns the text used after "from".
func (t *Table) FromSQL() string {
	if t.From != "" {
		return t.From
	}
	return t.Name
}

// Lookup returns the column mapped to the given field name. Unquoted SQL column
// names are accepted as a fallback.
func (t *Table) Lookup(field string) (*Column, error) {
	if c, ok := t.byField[field]; ok {
		return c, nil
	}
	for _, c := range t.Columns {
		if !c.Expr && c.RawName == field {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no field %q", ErrColumnNotFound, t.Type, field)
}

// KeyColumns returns the key columns in declaration order.
func (t *Table) KeyColumns() []*Column {
	var keys []*Column
	for _, c := range t.Columns {
		if c.Key {
			keys = append(keys, c)
		}
	}
	return keys
}

// validate indexes the columns and checks the identity invariant.
func (t *Table) validate() error {
	t.byField = make(map[string]*Column, len(t.Columns))
	t.Identity = nil

	for _, c := range t.Columns {
		if _, dup := t.byField[c.Field]; dup {
			return fmt.Errorf("%w: %s maps field %s twice", ErrConfiguration, t.Type, c.Field)
		}
		t.byField[c.Field] = c

		if !c.Identity {
			continue
		}
		if t.Identity != nil {
			return fmt.Errorf("%w: %s has more than one identity column (%s, %s)",
				ErrConfiguration, t.Type, t.Identity.Field, c.Field)
		}
		t.Identity = c
	}
	return nil
}
