// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"github.com/coregx/sqlmap/internal/eval"
)

// Predicate is a typed boolean condition over a row type. It is compiled
// against the row type's table metadata into a SQL fragment and parameters.
//
// Example:
//
//	sqlmap.And(
//	    sqlmap.Col("Region").Eq("east"),
//	    sqlmap.Or(sqlmap.Col("Total").Gt(100), sqlmap.In("Code", []string{"a", "b"})),
//	)
type Predicate interface {
	predicate()
}

// ColumnRef refers to a mapped field of the row type by its Go field name.
type ColumnRef struct {
	Field string
}

// Col references a field of the row type.
func Col(field string) ColumnRef {
	return ColumnRef{Field: field}
}

// RawSQL is SQL text inserted verbatim, e.g. a sub-select inside IN. Callers
// are responsible for its correctness and injection safety.
type RawSQL string

// Comparison operators.
const (
	OpEq = "="
	OpNe = "<>"
	OpLt = "<"
	OpGt = ">"
	OpLe = "<="
	OpGe = ">="
)

// CompareExp compares two operands. Each operand is a ColumnRef or an eval.Node.
type CompareExp struct {
	Left  interface{}
	Op    string
	Right interface{}
}

// AndExp is a logical conjunction.
type AndExp struct {
	Left, Right Predicate
}

// OrExp is a logical disjunction.
type OrExp struct {
	Left, Right Predicate
}

// NotExp negates a predicate.
type NotExp struct {
	Exp Predicate
}

// InExp tests column membership in a collection value, or in a RawSQL sub-select.
type InExp struct {
	Col    ColumnRef
	Values eval.Node
	Not    bool
}

// LikeExp matches a column against a pattern.
type LikeExp struct {
	Col     ColumnRef
	Pattern eval.Node
	Not     bool
}

// BetweenExp tests that a column lies in an inclusive range.
type BetweenExp struct {
	Col    ColumnRef
	Lo, Hi eval.Node
	Not    bool
}

// EvalExp is raw SQL inserted verbatim and parenthesized.
type EvalExp struct {
	SQL string
}

// TestExp is a boolean value expression that does not reference the row.
type TestExp struct {
	Value eval.Node
}

func (CompareExp) predicate() {}
func (AndExp) predicate()     {}
func (OrExp) predicate()      {}
func (NotExp) predicate()     {}
func (InExp) predicate()      {}
func (LikeExp) predicate()    {}
func (BetweenExp) predicate() {}
func (EvalExp) predicate()    {}
func (TestExp) predicate()    {}

// operand keeps column references and value nodes, wrapping anything else as a constant.
func operand(v interface{}) interface{} {
	switch x := v.(type) {
	case ColumnRef:
		return x
	case *ColumnRef:
		return *x
	}
	return eval.Value(v)
}

func compare(a interface{}, op string, b interface{}) Predicate {
	return CompareExp{Left: operand(a), Op: op, Right: operand(b)}
}

// Eq compares two operands for equality. A nil value renders "is null".
func Eq(a, b interface{}) Predicate { return compare(a, OpEq, b) }

// NotEq compares two operands for inequality. A nil value renders "is not null".
func NotEq(a, b interface{}) Predicate { return compare(a, OpNe, b) }

// Lt generates a < comparison.
func Lt(a, b interface{}) Predicate { return compare(a, OpLt, b) }

// Gt generates a > comparison.
func Gt(a, b interface{}) Predicate { return compare(a, OpGt, b) }

// Le generates a <= comparison.
func Le(a, b interface{}) Predicate { return compare(a, OpLe, b) }

// Ge generates a >= comparison.
func Ge(a, b interface{}) Predicate { return compare(a, OpGe, b) }

// Eq compares the column with a value or another column.
func (c ColumnRef) Eq(v interface{}) Predicate { return Eq(c, v) }

// NotEq compares the column with a value or another column.
func (c ColumnRef) NotEq(v interface{}) Predicate { return NotEq(c, v) }

// Lt compares the column with a value or another column.
func (c ColumnRef) Lt(v interface{}) Predicate { return Lt(c, v) }

// Gt compares the column with a value or another column.
func (c ColumnRef) Gt(v interface{}) Predicate { return Gt(c, v) }

// Le compares the column with a value or another column.
func (c ColumnRef) Le(v interface{}) Predicate { return Le(c, v) }

// Ge compares the column with a value or another column.
func (c ColumnRef) Ge(v interface{}) Predicate { return Ge(c, v) }

// And joins predicates with "and", left to right. Nil predicates are skipped.
func And(left, right Predicate, more ...Predicate) Predicate {
	return fold(func(l, r Predicate) Predicate { return AndExp{Left: l, Right: r} }, left, right, more)
}

// Or joins predicates with "or", left to right. Nil predicates are skipped.
func Or(left, right Predicate, more ...Predicate) Predicate {
	return fold(func(l, r Predicate) Predicate { return OrExp{Left: l, Right: r} }, left, right, more)
}

func fold(join func(l, r Predicate) Predicate, left, right Predicate, more []Predicate) Predicate {
	var out Predicate
	for _, p := range append([]Predicate{left, right}, more...) {
		switch {
		case p == nil:
		case out == nil:
			out = p
		default:
			out = join(out, p)
		}
	}
	return out
}

// Not negates p. Over IN, LIKE and BETWEEN it renders "not in", "not like" and
// "not between".
func Not(p Predicate) Predicate {
	return NotExp{Exp: p}
}

// In tests membership of the field in values (a slice or array), bound as one
// collection parameter. A RawSQL value is inserted verbatim as a sub-select.
func In(field string, values interface{}) Predicate {
	return InExp{Col: Col(field), Values: eval.Value(values)}
}

// NotIn is the negation of In.
func NotIn(field string, values interface{}) Predicate {
	return InExp{Col: Col(field), Values: eval.Value(values), Not: true}
}

// InSQL tests membership of the field in the rows of a raw sub-select.
func InSQL(field string, subquery RawSQL) Predicate {
	return In(field, subquery)
}

// Like matches the field against pattern. Wildcards are the caller's.
func Like(field string, pattern interface{}) Predicate {
	return LikeExp{Col: Col(field), Pattern: eval.Value(pattern)}
}

// NotLike is the negation of Like.
func NotLike(field string, pattern interface{}) Predicate {
	return LikeExp{Col: Col(field), Pattern: eval.Value(pattern), Not: true}
}

// Between tests lo <= field <= hi.
func Between(field string, lo, hi interface{}) Predicate {
	return BetweenExp{Col: Col(field), Lo: eval.Value(lo), Hi: eval.Value(hi)}
}

// NotBetween is the negation of Between.
func NotBetween(field string, lo, hi interface{}) Predicate {
	return BetweenExp{Col: Col(field), Lo: eval.Value(lo), Hi: eval.Value(hi), Not: true}
}

// Eval inserts raw SQL, parenthesized, with no parameters.
func Eval(sql string) Predicate {
	return EvalExp{SQL: sql}
}

// Test wraps a row-independent boolean value (a bool, closure or eval.Node).
// It is folded at compile time.
func Test(v interface{}) Predicate {
	return TestExp{Value: eval.Value(v)}
}

// True and False are constant predicates.
var (
	True  Predicate = TestExp{Value: eval.Const{Value: true}}
	False Predicate = TestExp{Value: eval.Const{Value: false}}
)
