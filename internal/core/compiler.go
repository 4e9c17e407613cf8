package core

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlmap/internal/eval"
	"github.com/coregx/sqlmap/internal/schema"
	"github.com/coregx/sqlmap/internal/util"
)

// Param is a named bound value. Generated SQL refers to it as @Name.
type Param struct {
	Name  string
	Value interface{}
}

// Params is an ordered set of bound values.
type Params []Param

// Lookup returns the value bound to name.
func (p Params) Lookup(name string) (interface{}, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return nil, false
}

// Names returns the parameter names in binding order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}
	return names
}

// Values returns the parameter values in binding order.
func (p Params) Values() []interface{} {
	values := make([]interface{}, len(p))
	for i, param := range p {
		values[i] = param.Value
	}
	return values
}

// Compiled is a SQL boolean fragment with its parameters. An empty SQL means
// no filter.
type Compiled struct {
	SQL    string
	Params Params
}

const (
	sqlTrue  = "true"
	sqlFalse = "false"
)

// Compile converts p into a SQL fragment for table t. Identifiers come out
// quoted the way t's registry quotes them. A nil predicate, or one that folds
// to true, compiles to an empty fragment.
func Compile(t *schema.Table, p Predicate) (Compiled, error) {
	c := newCompiler(t)
	frag, err := c.where(p)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{SQL: frag, Params: c.params}, nil
}

// KeyPredicate builds an equality predicate over every key column of t, taking
// the values from row. Key columns are joined with "and" in declaration order.
func KeyPredicate(t *schema.Table, row interface{}) (Predicate, error) {
	rv, err := rowValue(t, row)
	if err != nil {
		return nil, err
	}

	keys := t.KeyColumns()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, t.Type)
	}

	var p Predicate
	for _, k := range keys {
		eq := Eq(Col(k.Field), k.Accessor.Get(rv))
		if p == nil {
			p = eq
		} else {
			p = AndExp{Left: p, Right: eq}
		}
	}
	return p, nil
}

// rowValue dereferences row and checks that it is an instance of t.
func rowValue(t *schema.Table, row interface{}) (reflect.Value, error) {
	rv, err := util.Indirect(reflect.ValueOf(row))
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrInvalidRowType, err)
	}
	if rv.Type() != t.Type {
		return reflect.Value{}, fmt.Errorf("%w: got %s, want %s", ErrInvalidRowType, rv.Type(), t.Type)
	}
	return rv, nil
}

// compiler accumulates parameters for one statement. Parameter names are
// unique within the statement.
type compiler struct {
	table  *schema.Table
	params Params
	used   map[string]bool
	check  func(string) error // applied to verbatim SQL, may be nil
}

func newCompiler(t *schema.Table) *compiler {
	return &compiler{table: t, used: make(map[string]bool)}
}

// verbatim returns caller-supplied SQL text once it passes the check.
func (c *compiler) verbatim(sql string) (string, error) {
	if c.check != nil {
		if err := c.check(sql); err != nil {
			return "", err
		}
	}
	return sql, nil
}

// where compiles a top-level predicate. A constant true result is dropped.
func (c *compiler) where(p Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	frag, err := c.compile(p)
	if err != nil {
		return "", err
	}
	if frag == sqlTrue {
		return "", nil
	}
	return frag, nil
}

// bind registers value under a unique name derived from base and returns the
// parameter marker.
func (c *compiler) bind(base string, value interface{}) string {
	base = paramName(base)
	name := base
	for n := 1; c.used[name]; n++ {
		name = fmt.Sprintf("%sP%02d", base, n)
	}
	c.used[name] = true
	c.params = append(c.params, Param{Name: name, Value: value})
	return "@" + name
}

// paramName maps a column name to a marker-safe identifier.
func paramName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "p"
	}
	return sb.String()
}

func (c *compiler) column(ref ColumnRef) (*schema.Column, error) {
	return c.table.Lookup(ref.Field)
}

//nolint:cyclop // One case per predicate variant.
func (c *compiler) compile(p Predicate) (string, error) {
	switch x := p.(type) {
	case CompareExp:
		return c.compare(x)
	case AndExp:
		return c.and(x)
	case OrExp:
		return c.or(x)
	case NotExp:
		return c.not(x)
	case InExp:
		return c.in(x)
	case LikeExp:
		return c.like(x)
	case BetweenExp:
		return c.between(x)
	case EvalExp:
		text, err := c.verbatim(x.SQL)
		if err != nil {
			return "", err
		}
		return "(" + text + ")", nil
	case TestExp:
		return c.constant(x)
	case nil:
		return "", fmt.Errorf("%w: nil operand", ErrUnsupportedPredicate)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedPredicate, p)
}

// constant folds a row-independent predicate to the literal true or false.
func (c *compiler) constant(p Predicate) (string, error) {
	v, err := staticValue(p)
	if err != nil {
		return "", err
	}
	if v {
		return sqlTrue, nil
	}
	return sqlFalse, nil
}

func (c *compiler) and(x AndExp) (string, error) {
	if x.Left == nil || x.Right == nil {
		return "", fmt.Errorf("%w: and with nil operand", ErrUnsupportedPredicate)
	}
	if independent(x.Left) {
		v, err := staticValue(x.Left)
		if err != nil {
			return "", err
		}
		if !v {
			return sqlFalse, nil
		}
		// The folded result may still sit next to another "and".
		return c.operand(x.Right)
	}

	l, err := c.operand(x.Left)
	if err != nil {
		return "", err
	}
	r, err := c.operand(x.Right)
	if err != nil {
		return "", err
	}
	return l + " and " + r, nil
}

// operand compiles one side of an "and". A disjunction is wrapped so that it
// keeps its grouping next to "and". A folded "and" already wraps what it
// returns through operand, so only OrExp is checked here.
func (c *compiler) operand(p Predicate) (string, error) {
	frag, err := c.compile(p)
	if err != nil {
		return "", err
	}
	if _, ok := p.(OrExp); ok && frag != sqlTrue && frag != sqlFalse {
		return "(" + frag + ")", nil
	}
	return frag, nil
}

// or folds only a statically true left side; a false left side still compiles
// the right side.
func (c *compiler) or(x OrExp) (string, error) {
	if x.Left == nil || x.Right == nil {
		return "", fmt.Errorf("%w: or with nil operand", ErrUnsupportedPredicate)
	}

	var l string
	if independent(x.Left) {
		v, err := staticValue(x.Left)
		if err != nil {
			return "", err
		}
		if v {
			return sqlTrue, nil
		}
		l = sqlFalse
	} else {
		var err error
		if l, err = c.compile(x.Left); err != nil {
			return "", err
		}
	}

	r, err := c.compile(x.Right)
	if err != nil {
		return "", err
	}
	return "(" + l + ") or (" + r + ")", nil
}

func (c *compiler) not(x NotExp) (string, error) {
	switch inner := x.Exp.(type) {
	case InExp:
		inner.Not = !inner.Not
		return c.in(inner)
	case LikeExp:
		inner.Not = !inner.Not
		return c.like(inner)
	case BetweenExp:
		inner.Not = !inner.Not
		return c.between(inner)
	case nil:
		return "", fmt.Errorf("%w: not with nil operand", ErrUnsupportedPredicate)
	}

	if independent(x.Exp) {
		return c.constant(x)
	}
	frag, err := c.compile(x.Exp)
	if err != nil {
		return "", err
	}
	return "not(" + frag + ")", nil
}

var flipped = map[string]string{
	OpEq: OpEq, OpNe: OpNe, OpLt: OpGt, OpGt: OpLt, OpLe: OpGe, OpGe: OpLe,
}

func (c *compiler) compare(x CompareExp) (string, error) {
	if _, ok := flipped[x.Op]; !ok {
		return "", fmt.Errorf("%w: operator %q", ErrUnsupportedPredicate, x.Op)
	}

	lref, lcol := x.Left.(ColumnRef)
	rref, rcol := x.Right.(ColumnRef)

	switch {
	case !lcol && !rcol:
		return c.constant(x)
	case lcol && rcol:
		l, err := c.column(lref)
		if err != nil {
			return "", err
		}
		r, err := c.column(rref)
		if err != nil {
			return "", err
		}
		return l.Name + x.Op + r.Name, nil
	}

	ref, value, op := lref, x.Right, x.Op
	if !lcol {
		ref, value, op = rref, x.Left, flipped[x.Op]
	}

	col, err := c.column(ref)
	if err != nil {
		return "", err
	}
	node, ok := value.(eval.Node)
	if !ok {
		return "", fmt.Errorf("%w: operand %T", ErrUnsupportedPredicate, value)
	}
	v, err := eval.Evaluate(node)
	if err != nil {
		return "", err
	}

	if raw, ok := v.(RawSQL); ok {
		text, err := c.verbatim(string(raw))
		if err != nil {
			return "", err
		}
		return col.Name + op + text, nil
	}
	if eval.IsNull(v) {
		switch op {
		case OpEq:
			return col.Name + " is null", nil
		case OpNe:
			return col.Name + " is not null", nil
		}
	}
	if _, ok := collectionLen(v); ok {
		return "", fmt.Errorf("%w: %s compared with a collection, use In", ErrUnsupportedPredicate, ref.Field)
	}
	return col.Name + op + c.bind(col.ParamName(), v), nil
}

func (c *compiler) in(x InExp) (string, error) {
	col, err := c.column(x.Col)
	if err != nil {
		return "", err
	}
	v, err := eval.Evaluate(x.Values)
	if err != nil {
		return "", err
	}

	op := " in "
	if x.Not {
		op = " not in "
	}

	if raw, ok := v.(RawSQL); ok {
		text, err := c.verbatim(string(raw))
		if err != nil {
			return "", err
		}
		return col.Name + op + "(" + text + ")", nil
	}

	n, ok := collectionLen(v)
	if !ok {
		v, n = []interface{}{v}, 1
	}
	if n == 0 {
		if x.Not {
			return "1=1", nil
		}
		return "0=1", nil
	}
	return col.Name + op + "(" + c.bind(col.ParamName(), v) + ")", nil
}

// collectionLen reports the length of v when it is a slice or array bound as
// a list of values. Byte slices and driver.Valuer types are scalars.
func collectionLen(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	if _, ok := v.(driver.Valuer); ok {
		return 0, false
	}
	if _, ok := v.([]byte); ok {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}

func (c *compiler) like(x LikeExp) (string, error) {
	col, err := c.column(x.Col)
	if err != nil {
		return "", err
	}
	v, err := eval.Evaluate(x.Pattern)
	if err != nil {
		return "", err
	}
	op := " like "
	if x.Not {
		op = " not like "
	}
	return col.Name + op + c.bind(col.ParamName(), v), nil
}

func (c *compiler) between(x BetweenExp) (string, error) {
	col, err := c.column(x.Col)
	if err != nil {
		return "", err
	}
	lo, err := eval.Evaluate(x.Lo)
	if err != nil {
		return "", err
	}
	hi, err := eval.Evaluate(x.Hi)
	if err != nil {
		return "", err
	}
	op := " between "
	if x.Not {
		op = " not between "
	}
	return col.Name + op + c.bind(col.ParamName(), lo) + " and " + c.bind(col.ParamName(), hi), nil
}

// independent reports whether p can be evaluated without a row.
func independent(p Predicate) bool {
	switch x := p.(type) {
	case TestExp:
		return true
	case CompareExp:
		_, l := x.Left.(ColumnRef)
		_, r := x.Right.(ColumnRef)
		return !l && !r
	case AndExp:
		return x.Left != nil && x.Right != nil && independent(x.Left) && independent(x.Right)
	case OrExp:
		return x.Left != nil && x.Right != nil && independent(x.Left) && independent(x.Right)
	case NotExp:
		return x.Exp != nil && independent(x.Exp)
	}
	return false
}

// staticValue evaluates a row-independent predicate.
func staticValue(p Predicate) (bool, error) {
	switch x := p.(type) {
	case TestExp:
		v, err := eval.Evaluate(x.Value)
		if err != nil {
			return false, err
		}
		return eval.Bool(v)
	case CompareExp:
		l, err := evalOperand(x.Left)
		if err != nil {
			return false, err
		}
		r, err := evalOperand(x.Right)
		if err != nil {
			return false, err
		}
		return eval.Compare(x.Op, l, r)
	case AndExp:
		l, err := staticValue(x.Left)
		if err != nil || !l {
			return false, err
		}
		return staticValue(x.Right)
	case OrExp:
		l, err := staticValue(x.Left)
		if err != nil || l {
			return l, err
		}
		return staticValue(x.Right)
	case NotExp:
		v, err := staticValue(x.Exp)
		return !v, err
	}
	return false, fmt.Errorf("%w: %T depends on the row", ErrUnsupportedPredicate, p)
}

func evalOperand(v interface{}) (interface{}, error) {
	node, ok := v.(eval.Node)
	if !ok {
		return nil, fmt.Errorf("%w: operand %T", ErrUnsupportedPredicate, v)
	}
	return eval.Evaluate(node)
}
