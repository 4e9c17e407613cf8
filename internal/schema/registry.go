package schema

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-openapi/inflect"
	"golang.org/x/sync/singleflight"

	"github.com/coregx/sqlmap/internal/util"
)

// Optional methods a row type may implement to customize its table.
type (
	tableNamer      interface{ TableName() string }
	fromClauser     interface{ FromClause() string }
	selectOptioner  interface{ SelectOptions() SelectOptions }
	quoteIdentifier = func(string) string
)

// Registry caches table descriptors per row type. Entries are built once,
// published only when complete and never evicted.
type Registry struct {
	quote  quoteIdentifier
	plural bool

	tables sync.Map // reflect.Type -> *Table
	group  singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPluralTableNames derives default table names by pluralizing the type name
// (User -> Users, Category -> Categories).
func WithPluralTableNames() RegistryOption {
	return func(r *Registry) {
		r.plural = true
	}
}

// NewRegistry creates an empty registry that escapes identifiers with quote.
func NewRegistry(quote func(string) string, opts ...RegistryOption) *Registry {
	r := &Registry{quote: quote}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the lazily created process-wide registry using ANSI
// double-quoted identifiers.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(func(s string) string {
			return `"` + s + `"`
		})
	})
	return defaultRegistry
}

// DescribeValue describes the type of v (a struct, pointer to struct, or slice of either).
func (r *Registry) DescribeValue(v interface{}) (*Table, error) {
	if t, ok := v.(reflect.Type); ok {
		return r.Describe(t)
	}
	return r.Describe(reflect.TypeOf(v))
}

// Describe returns the cached descriptor for t, building it on first use.
// Concurrent first-time callers share one build.
func (r *Registry) Describe(t reflect.Type) (*Table, error) {
	t = rowType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRowType, t)
	}

	if v, ok := r.tables.Load(t); ok {
		return v.(*Table), nil
	}

	v, err, _ := r.group.Do(t.PkgPath()+"|"+t.String(), func() (interface{}, error) {
		if v, ok := r.tables.Load(t); ok {
			return v, nil
		}
		tbl, err := r.build(t)
		if err != nil {
			return nil, err
		}
		actual, _ := r.tables.LoadOrStore(t, tbl)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}

	tbl := v.(*Table)
	if tbl.Type != t {
		// Distinct local types can share a name; build without the group.
		built, err := r.build(t)
		if err != nil {
			return nil, err
		}
		actual, _ := r.tables.LoadOrStore(t, built)
		tbl = actual.(*Table)
	}
	return tbl, nil
}

// Register stores a hand-built descriptor, replacing any cached one.
func (r *Registry) Register(tbl *Table) error {
	if tbl == nil || tbl.Type == nil {
		return fmt.Errorf("%w: table without type", ErrConfiguration)
	}
	tbl.Type = rowType(tbl.Type)
	if err := tbl.validate(); err != nil {
		return err
	}
	r.tables.Store(tbl.Type, tbl)
	return nil
}

// rowType strips pointers and slices down to the element type.
func rowType(t reflect.Type) reflect.Type {
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		t = t.Elem()
	}
	return t
}

// build reflects t into a complete Table.
func (r *Registry) build(t reflect.Type) (*Table, error) {
	tbl := &Table{Type: t}

	name := t.Name()
	if r.plural && name != "" {
		name = inflect.Pluralize(name)
	}
	tbl.Name = r.quote(name)

	zero := reflect.New(t)
	for _, candidate := range []interface{}{zero.Elem().Interface(), zero.Interface()} {
		if tn, ok := candidate.(tableNamer); ok {
			tbl.Name = r.quote(tn.TableName())
		}
		if fc, ok := candidate.(fromClauser); ok {
			tbl.From = fc.FromClause()
		}
		if so, ok := candidate.(selectOptioner); ok {
			tbl.Select = so.SelectOptions()
		}
	}

	tbl.Columns = r.columns(t, nil)

	keyed := false
	for _, c := range tbl.Columns {
		keyed = keyed || c.Key
	}
	if !keyed {
		// Fallback: a field named ID or Id identifies the row.
		for _, fallback := range []string{"ID", "Id"} {
			if c := findField(tbl.Columns, fallback); c != nil {
				c.Key = true
				c.Updatable = c.UpdateSQL != ""
				break
			}
		}
	}

	if err := tbl.validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func findField(cols []*Column, field string) *Column {
	for _, c := range cols {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// columns collects mapped fields in declaration order, flattening embedded structs.
func (r *Registry) columns(t reflect.Type, index []int) []*Column {
	var cols []*Column

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldIndex := append(append([]int{}, index...), i)

		tag, hasTag := field.Tag.Lookup("db")

		if field.Anonymous && !hasTag {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				cols = append(cols, r.columns(ft, fieldIndex)...)
				continue
			}
		}

		if !field.IsExported() || tag == "-" {
			continue
		}

		cols = append(cols, r.column(field, fieldIndex, tag))
	}

	return cols
}

// column builds the descriptor for one field from its tags.
func (r *Registry) column(field reflect.StructField, index []int, tag string) *Column {
	raw, opts := util.ParseDBTag(tag)
	if raw == "" {
		raw = field.Name
	}

	c := &Column{
		Field:      field.Name,
		Accessor:   util.NewAccessor(field, index),
		Key:        opts.Has("key"),
		Identity:   opts.Has("identity"),
		RawName:    raw,
		Name:       r.quote(raw),
		Insertable: true,
		Updatable:  true,
	}

	if expr := field.Tag.Get("sql"); expr != "" {
		c.Name = expr
		c.Expr = true
		c.Insertable = false
		c.Updatable = false
	}
	if c.Expr || raw != field.Name {
		c.Alias = field.Name
	}

	if c.Identity {
		c.Key = true
		c.Insertable = false
	}
	if c.Key {
		c.Updatable = false
	}
	if opts.Has("readonly") {
		c.Insertable = false
		c.Updatable = false
	}

	if v, ok := field.Tag.Lookup("insert"); ok {
		c.Insertable = v != "-"
		if v != "-" {
			c.InsertSQL = v
		}
	}
	if v, ok := field.Tag.Lookup("update"); ok {
		c.Updatable = v != "-"
		if v != "-" {
			c.UpdateSQL = v
		}
	}

	return c
}
