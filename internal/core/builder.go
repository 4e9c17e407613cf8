package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/eval"
	"github.com/coregx/sqlmap/internal/schema"
)

// Kind identifies the statement operation.
type Kind string

// Statement kinds.
const (
	KindSelect   Kind = "SELECT"
	KindCount    Kind = "COUNT"
	KindExists   Kind = "EXISTS"
	KindInsert   Kind = "INSERT"
	KindUpsert   Kind = "UPSERT"
	KindUpdate   Kind = "UPDATE"
	KindDelete   Kind = "DELETE"
	KindTruncate Kind = "TRUNCATE"
)

// Statement is generated SQL with its named parameters. Parameters appear in
// SQL as @name markers; Bind converts them for a driver.
type Statement struct {
	SQL    string
	Params Params
	Kind   Kind
	Table  *schema.Table
	// Identity is set when SQL ends with IdentitySuffix, whose result is the
	// generated value of this column.
	Identity       *schema.Column
	IdentitySuffix string
}

// Split separates a trailing secondary identity statement (";select ...") from
// the insert. Suffixes that are part of the insert, like "returning", are kept.
func (s *Statement) Split() (main, secondary string) {
	if s.Identity == nil || !strings.HasPrefix(s.IdentitySuffix, ";") {
		return s.SQL, ""
	}
	return strings.TrimSuffix(s.SQL, s.IdentitySuffix), strings.TrimPrefix(s.IdentitySuffix, ";")
}

// String returns the SQL text.
func (s *Statement) String() string {
	return s.SQL
}

// Assignments maps field names to new values for UpdateWhere. A value may be
// an eval.Node, evaluated when the statement is built, or RawSQL.
type Assignments map[string]interface{}

// Builder generates statements for mapped row types in one dialect. It holds
// no per-call state and is safe for concurrent use.
type Builder struct {
	dialect  dialects.Dialect
	registry *schema.Registry
	rawCheck func(string) error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistry sets the table metadata registry. The registry must quote
// identifiers the way the dialect does.
func WithRegistry(r *schema.Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = r
	}
}

// WithRawSQLCheck makes the builder reject statements whose verbatim SQL
// (RawSQL values, Eval and InSQL predicates) fails check.
func WithRawSQLCheck(check func(string) error) BuilderOption {
	return func(b *Builder) {
		b.rawCheck = check
	}
}

// NewBuilder creates a statement builder for d.
func NewBuilder(d dialects.Dialect, opts ...BuilderOption) *Builder {
	b := &Builder{dialect: d}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = schema.NewRegistry(d.QuoteIdentifier)
	}
	return b
}

func (b *Builder) newCompiler(t *schema.Table) *compiler {
	c := newCompiler(t)
	c.check = b.rawCheck
	return c
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() dialects.Dialect {
	return b.dialect
}

// Describe returns the table metadata for rowType (a struct value, pointer,
// slice or reflect.Type).
func (b *Builder) Describe(rowType interface{}) (*schema.Table, error) {
	return b.registry.DescribeValue(rowType)
}

type statementOptions struct {
	columns  []string
	trailing string
}

// StatementOption customizes a generated statement.
type StatementOption func(*statementOptions)

// Columns restricts the statement to the named fields. For inserts and updates
// it also requests fields that are not eligible by default.
func Columns(fields ...string) StatementOption {
	return func(o *statementOptions) {
		o.columns = append(o.columns, fields...)
	}
}

// Trailing appends a clause such as "order by ... limit ..." to a select,
// replacing the row type's default trailing clause.
func Trailing(clause string) StatementOption {
	return func(o *statementOptions) {
		o.trailing = clause
	}
}

func applyOptions(opts []StatementOption) statementOptions {
	var o statementOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// requested resolves the Columns option. A nil result means no restriction.
func requested(t *schema.Table, o statementOptions) (map[*schema.Column]bool, []*schema.Column, error) {
	if len(o.columns) == 0 {
		return nil, t.Columns, nil
	}
	set := make(map[*schema.Column]bool, len(o.columns))
	cols := make([]*schema.Column, 0, len(o.columns))
	for _, field := range o.columns {
		c, err := t.Lookup(field)
		if err != nil {
			return nil, nil, err
		}
		if !set[c] {
			set[c] = true
			cols = append(cols, c)
		}
	}
	return set, cols, nil
}

func appendWhere(sb *strings.Builder, frag string) {
	if frag != "" {
		sb.WriteString(" where ")
		sb.WriteString(frag)
	}
}

// Select builds "select <cols> from <table>" filtered by where. The row type's
// select options supply the statement prefix, "group by" over the projected
// key columns and a default trailing clause.
func (b *Builder) Select(rowType interface{}, where Predicate, opts ...StatementOption) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	_, cols, err := requested(t, o)
	if err != nil {
		return nil, err
	}

	c := b.newCompiler(t)
	frag, err := c.where(where)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	prefix := t.Select.Prefix
	if prefix == "" {
		prefix = "select"
	}
	sb.WriteString(prefix)
	sb.WriteByte(' ')
	var keys []string
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		if col.Alias != "" {
			sb.WriteString(" as ")
			sb.WriteString(b.dialect.QuoteIdentifier(col.Alias))
		}
		if col.Key {
			keys = append(keys, col.Name)
		}
	}
	sb.WriteString(" from ")
	sb.WriteString(t.FromSQL())
	appendWhere(&sb, frag)

	if t.Select.GroupByKey && len(keys) > 0 {
		sb.WriteString(" group by ")
		sb.WriteString(strings.Join(keys, ", "))
	}

	trailing := o.trailing
	if trailing == "" {
		trailing = t.Select.Trailing
	}
	if trailing != "" {
		sb.WriteByte(' ')
		sb.WriteString(trailing)
	}

	return &Statement{SQL: sb.String(), Params: c.params, Kind: KindSelect, Table: t}, nil
}

// SelectByKey selects the row identified by key: a value of the row type, a
// scalar for a single-column key, or an eval.Node resolving to either.
func (b *Builder) SelectByKey(rowType interface{}, key interface{}, opts ...StatementOption) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	if key, err = eval.Evaluate(eval.Value(key)); err != nil {
		return nil, err
	}

	var where Predicate
	if rv := reflect.Indirect(reflect.ValueOf(key)); rv.IsValid() && rv.Type() == t.Type {
		where, err = KeyPredicate(t, key)
		if err != nil {
			return nil, err
		}
	} else {
		keys := t.KeyColumns()
		if len(keys) != 1 {
			return nil, fmt.Errorf("%w: %s has %d key columns, a scalar key needs exactly one",
				ErrNoKey, t.Type, len(keys))
		}
		where = Eq(Col(keys[0].Field), key)
	}
	return b.Select(t.Type, where, opts...)
}

// Count builds "select count(*) from <table>" filtered by where.
func (b *Builder) Count(rowType interface{}, where Predicate) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	c := b.newCompiler(t)
	frag, err := c.where(where)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("select count(*) from ")
	sb.WriteString(t.FromSQL())
	appendWhere(&sb, frag)
	return &Statement{SQL: sb.String(), Params: c.params, Kind: KindCount, Table: t}, nil
}

// Exists builds a statement returning 1 when a row matches where, else 0.
func (b *Builder) Exists(rowType interface{}, where Predicate) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	c := b.newCompiler(t)
	frag, err := c.where(where)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("select case when exists(select 1 from ")
	sb.WriteString(t.FromSQL())
	appendWhere(&sb, frag)
	sb.WriteString(") then 1 else 0 end")
	return &Statement{SQL: sb.String(), Params: c.params, Kind: KindExists, Table: t}, nil
}

// insertColumns returns the columns written by an insert and whether the
// identity value should be retrieved. Without Columns every insertable column
// is written and the identity is retrieved.
func insertColumns(t *schema.Table, o statementOptions) ([]*schema.Column, bool, error) {
	set, _, err := requested(t, o)
	if err != nil {
		return nil, false, err
	}

	identity := t.Identity != nil && (set == nil || set[t.Identity])
	var cols []*schema.Column
	for _, c := range t.Columns {
		switch {
		case c.Identity && !c.Insertable:
			continue
		case set == nil && !c.Insertable:
			continue
		case set != nil && !set[c]:
			continue
		case c.Expr:
			return nil, false, fmt.Errorf("%w: %s.%s is a SQL expression and cannot be inserted",
				ErrConfiguration, t.Type, c.Field)
		}
		cols = append(cols, c)
	}
	return cols, identity, nil
}

// Insert builds an insert of row. Columns with override SQL emit it verbatim;
// the rest bind the row's field values. When the identity column is part of the
// request the dialect's retrieval clause is appended.
func (b *Builder) Insert(row interface{}, opts ...StatementOption) (*Statement, error) {
	t, err := b.Describe(row)
	if err != nil {
		return nil, err
	}
	rv, err := rowValue(t, row)
	if err != nil {
		return nil, err
	}
	cols, identity, err := insertColumns(t, applyOptions(opts))
	if err != nil {
		return nil, err
	}

	c := b.newCompiler(t)
	stmt := &Statement{Kind: KindInsert, Table: t}
	stmt.SQL = b.insertSQL(c, t, rv, cols)
	stmt.Params = c.params

	if identity {
		stmt.Identity = t.Identity
		stmt.IdentitySuffix = b.dialect.IdentityClause(t.Name, t.Identity.Name)
		stmt.SQL += stmt.IdentitySuffix
	}
	return stmt, nil
}

func (b *Builder) insertSQL(c *compiler, t *schema.Table, rv reflect.Value, cols []*schema.Column) string {
	var sb strings.Builder
	sb.WriteString("insert into ")
	sb.WriteString(t.Name)
	if len(cols) == 0 {
		sb.WriteString(" default values")
		return sb.String()
	}

	names := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
		if col.InsertSQL != "" {
			values[i] = col.InsertSQL
		} else {
			values[i] = c.bind(col.ParamName(), col.Accessor.Get(rv))
		}
	}
	sb.WriteByte('(')
	sb.WriteString(strings.Join(names, ","))
	sb.WriteString(") values (")
	sb.WriteString(strings.Join(values, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// Upsert builds an insert of row that updates the written non-key columns when
// a row with the same key exists.
func (b *Builder) Upsert(row interface{}, opts ...StatementOption) (*Statement, error) {
	t, err := b.Describe(row)
	if err != nil {
		return nil, err
	}
	rv, err := rowValue(t, row)
	if err != nil {
		return nil, err
	}
	cols, _, err := insertColumns(t, applyOptions(opts))
	if err != nil {
		return nil, err
	}

	var conflict, update []string
	for _, k := range t.KeyColumns() {
		conflict = append(conflict, k.Name)
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, t.Type)
	}
	for _, col := range cols {
		if !col.Key && col.Updatable {
			update = append(update, col.Name)
		}
	}

	clause := b.dialect.UpsertSQL(t.Name, conflict, update)
	if clause == "" {
		return nil, fmt.Errorf("%w: upsert on %s", ErrUnsupported, b.dialect.Name())
	}

	c := b.newCompiler(t)
	return &Statement{
		SQL:    b.insertSQL(c, t, rv, cols) + clause,
		Params: c.params,
		Kind:   KindUpsert,
		Table:  t,
	}, nil
}

// Update builds an update of row's updatable columns, filtered by its key.
// Columns restricts the set list and may name columns that are not updatable
// by default.
func (b *Builder) Update(row interface{}, opts ...StatementOption) (*Statement, error) {
	t, err := b.Describe(row)
	if err != nil {
		return nil, err
	}
	rv, err := rowValue(t, row)
	if err != nil {
		return nil, err
	}
	set, _, err := requested(t, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	key, err := KeyPredicate(t, row)
	if err != nil {
		return nil, err
	}

	c := b.newCompiler(t)
	var assignments []string
	for _, col := range t.Columns {
		if (set == nil && !col.Updatable) || (set != nil && !set[col]) {
			continue
		}
		if col.Expr {
			return nil, fmt.Errorf("%w: %s.%s is a SQL expression and cannot be updated",
				ErrConfiguration, t.Type, col.Field)
		}
		value := col.UpdateSQL
		if value == "" {
			value = c.bind(col.ParamName(), col.Accessor.Get(rv))
		}
		assignments = append(assignments, col.Name+"="+value)
	}
	return b.update(c, t, assignments, key)
}

// UpdateWhere builds an update assigning values to fields of rowType for every
// row matching where.
func (b *Builder) UpdateWhere(rowType interface{}, values Assignments, where Predicate) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}

	targets := make(map[*schema.Column]interface{}, len(values))
	for field, v := range values {
		col, err := t.Lookup(field)
		if err != nil {
			return nil, err
		}
		if col.Expr {
			return nil, fmt.Errorf("%w: %s.%s is a SQL expression and cannot be updated",
				ErrConfiguration, t.Type, col.Field)
		}
		targets[col] = v
	}

	c := b.newCompiler(t)
	var assignments []string
	for _, col := range t.Columns {
		v, ok := targets[col]
		if !ok {
			continue
		}
		if v, err = eval.Evaluate(eval.Value(v)); err != nil {
			return nil, err
		}
		if raw, ok := v.(RawSQL); ok {
			text, err := c.verbatim(string(raw))
			if err != nil {
				return nil, err
			}
			assignments = append(assignments, col.Name+"="+text)
			continue
		}
		assignments = append(assignments, col.Name+"="+c.bind(col.ParamName(), v))
	}
	return b.update(c, t, assignments, where)
}

func (b *Builder) update(c *compiler, t *schema.Table, assignments []string, where Predicate) (*Statement, error) {
	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: nothing to update in %s", ErrConfiguration, t.Type)
	}
	frag, err := c.where(where)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("update ")
	sb.WriteString(t.Name)
	sb.WriteString(" set ")
	sb.WriteString(strings.Join(assignments, ", "))
	appendWhere(&sb, frag)
	return &Statement{SQL: sb.String(), Params: c.params, Kind: KindUpdate, Table: t}, nil
}

// Delete builds a delete of row by its key.
func (b *Builder) Delete(row interface{}) (*Statement, error) {
	t, err := b.Describe(row)
	if err != nil {
		return nil, err
	}
	key, err := KeyPredicate(t, row)
	if err != nil {
		return nil, err
	}
	return b.DeleteWhere(t.Type, key)
}

// DeleteWhere builds a delete of every row matching where. A nil predicate
// deletes all rows.
func (b *Builder) DeleteWhere(rowType interface{}, where Predicate) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	c := b.newCompiler(t)
	frag, err := c.where(where)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("delete from ")
	sb.WriteString(t.Name)
	appendWhere(&sb, frag)
	return &Statement{SQL: sb.String(), Params: c.params, Kind: KindDelete, Table: t}, nil
}

// Truncate empties the table, falling back to an unconditional delete when the
// dialect has no truncate statement.
func (b *Builder) Truncate(rowType interface{}) (*Statement, error) {
	t, err := b.Describe(rowType)
	if err != nil {
		return nil, err
	}
	if !b.dialect.SupportsTruncate() {
		return &Statement{SQL: "delete from " + t.Name, Kind: KindDelete, Table: t}, nil
	}
	return &Statement{SQL: "truncate table " + t.Name, Kind: KindTruncate, Table: t}, nil
}
