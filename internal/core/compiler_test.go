package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlmap/internal/eval"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		pred       Predicate
		wantSQL    string
		wantParams Params
	}{
		{
			name:       "equality",
			pred:       Col("Name").Eq("Alice"),
			wantSQL:    `"Name"=@Name`,
			wantParams: params("Name", "Alice"),
		},
		{
			name:    "column against column",
			pred:    Col("Total").Gt(Col("Limit")),
			wantSQL: `"Total">"Limit"`,
		},
		{
			name:       "value on the left flips the operator",
			pred:       Lt(10, Col("Total")),
			wantSQL:    `"Total">@Total`,
			wantParams: params("Total", 10),
		},
		{
			name:    "nil equality",
			pred:    Col("Email").Eq(nil),
			wantSQL: `"Email" is null`,
		},
		{
			name:    "nil inequality",
			pred:    Col("Email").NotEq(nil),
			wantSQL: `"Email" is not null`,
		},
		{
			name:       "in binds one collection parameter",
			pred:       In("Code", []string{"a", "b"}),
			wantSQL:    `"Code" in (@Code)`,
			wantParams: params("Code", []string{"a", "b"}),
		},
		{
			name:       "negated in",
			pred:       Not(In("Code", []string{"a", "b"})),
			wantSQL:    `"Code" not in (@Code)`,
			wantParams: params("Code", []string{"a", "b"}),
		},
		{
			name:       "not in helper",
			pred:       NotIn("Code", []int{1}),
			wantSQL:    `"Code" not in (@Code)`,
			wantParams: params("Code", []int{1}),
		},
		{
			name:    "empty in matches nothing",
			pred:    In("Code", []string{}),
			wantSQL: "0=1",
		},
		{
			name:    "empty not in matches everything",
			pred:    NotIn("Code", []string{}),
			wantSQL: "1=1",
		},
		{
			name:    "in over a sub-select",
			pred:    InSQL("Code", "select code from promo"),
			wantSQL: `"Code" in (select code from promo)`,
		},
		{
			name:       "like",
			pred:       Like("Name", "A%"),
			wantSQL:    `"Name" like @Name`,
			wantParams: params("Name", "A%"),
		},
		{
			name:       "negated like",
			pred:       Not(Like("Name", "A%")),
			wantSQL:    `"Name" not like @Name`,
			wantParams: params("Name", "A%"),
		},
		{
			name:       "between uses two parameters",
			pred:       Between("Total", 1, 5),
			wantSQL:    `"Total" between @Total and @TotalP01`,
			wantParams: params("Total", 1, "TotalP01", 5),
		},
		{
			name:       "negated between",
			pred:       Not(Between("Total", 1, 5)),
			wantSQL:    `"Total" not between @Total and @TotalP01`,
			wantParams: params("Total", 1, "TotalP01", 5),
		},
		{
			name:    "eval is parenthesized",
			pred:    Eval(`length("Name") > 3`),
			wantSQL: `(length("Name") > 3)`,
		},
		{
			name:       "and with repeated column",
			pred:       And(Col("Total").Gt(1), Col("Total").Lt(9)),
			wantSQL:    `"Total">@Total and "Total"<@TotalP01`,
			wantParams: params("Total", 1, "TotalP01", 9),
		},
		{
			name:       "or",
			pred:       Or(Col("Name").Eq("x"), Col("Code").Eq("y")),
			wantSQL:    `("Name"=@Name) or ("Code"=@Code)`,
			wantParams: params("Name", "x", "Code", "y"),
		},
		{
			name:       "or inside and keeps its grouping",
			pred:       And(Col("Region").Eq("east"), Or(Col("Total").Gt(1), Col("Total").Lt(0))),
			wantSQL:    `"Region"=@Region and (("Total">@Total) or ("Total"<@TotalP01))`,
			wantParams: params("Region", "east", "Total", 1, "TotalP01", 0),
		},
		{
			name:       "not",
			pred:       Not(Col("Total").Gt(1)),
			wantSQL:    `not("Total">@Total)`,
			wantParams: params("Total", 1),
		},
		{
			name:       "raw value is inserted verbatim",
			pred:       Col("Total").Gt(RawSQL(`"Limit" * 2`)),
			wantSQL:    `"Total">"Limit" * 2`,
		},
		{
			name:       "node value is evaluated",
			pred:       Col("Total").Eq(eval.Call{Fn: func(a, b int) int { return a * b }, Args: eval.Values(6, 7)}),
			wantSQL:    `"Total"=@Total`,
			wantParams: params("Total", 42),
		},
		{
			name: "nil predicate",
			pred: nil,
		},
	}

	tbl := describe(t, Account{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tbl, tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got.SQL)
			assert.Equal(t, tt.wantParams, got.Params)
		})
	}
}

func TestCompile_ConstantFolding(t *testing.T) {
	flag := false
	name := Col("Name").Eq("x")

	tests := []struct {
		name    string
		pred    Predicate
		wantSQL string
		params  int
	}{
		{"true folds away", True, "", 0},
		{"false", False, "false", 0},
		{"closure", Test(func() interface{} { return flag }), "false", 0},
		{"constant comparison true", Eq(1, 1), "", 0},
		{"constant comparison false", Eq(1, 2), "false", 0},
		{"false and x", And(False, name), "false", 0},
		{"true and x", And(True, name), `"Name"=@Name`, 1},
		{"x and true keeps the literal", And(name, True), `"Name"=@Name and true`, 1},
		{"true or x", Or(True, name), "", 0},
		{"false or x still compiles x", Or(False, name), `(false) or ("Name"=@Name)`, 1},
		{"true and (x or y) keeps the grouping",
			And(True, Or(name, Col("Code").Eq("y"))),
			`(("Name"=@Name) or ("Code"=@Code))`, 2},
		{"folded and around or, then and",
			And(And(True, Or(name, Col("Code").Eq("y"))), Col("Total").Gt(1)),
			`(("Name"=@Name) or ("Code"=@Code)) and "Total">@Total`, 3},
		{"and, then folded and around or",
			And(Col("Total").Gt(1), And(Test(true), Or(name, Col("Code").Eq("y")))),
			`"Total">@Total and (("Name"=@Name) or ("Code"=@Code))`, 3},
		{"nested folds around or",
			And(And(True, And(Test(true), Or(name, Col("Code").Eq("y")))), Col("Total").Gt(1)),
			`(("Name"=@Name) or ("Code"=@Code)) and "Total">@Total`, 3},
		{"not true", Not(True), "false", 0},
		{"not false", Not(False), "", 0},
	}

	tbl := describe(t, Account{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tbl, tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got.SQL)
			assert.Len(t, got.Params, tt.params)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	type bogus struct{ Predicate }

	tests := []struct {
		name string
		pred Predicate
		want error
	}{
		{"unknown column", Col("Missing").Eq(1), ErrColumnNotFound},
		{"unknown column in in", In("Missing", []int{1}), ErrColumnNotFound},
		{"unknown predicate", bogus{}, ErrUnsupportedPredicate},
		{"unknown operator", CompareExp{Left: Col("Name"), Op: "~", Right: eval.Const{Value: "x"}}, ErrUnsupportedPredicate},
		{"and with nil side", AndExp{Left: Col("Name").Eq("x")}, ErrUnsupportedPredicate},
		{"unevaluable value", Col("Name").Eq(eval.Static{Name: "nowhere.Value"}), ErrUnevaluable},
		{"collection compared with =", Col("Code").Eq([]string{"a", "b"}), ErrUnsupportedPredicate},
		{"collection compared with >", Col("Total").Gt([]int{1, 2}), ErrUnsupportedPredicate},
	}

	tbl := describe(t, Account{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tbl, tt.pred)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKeyPredicate(t *testing.T) {
	tbl := describe(t, Account{})

	p, err := KeyPredicate(tbl, &Account{Id: 5, Region: "east", Name: "ignored"})
	require.NoError(t, err)

	got, err := Compile(tbl, p)
	require.NoError(t, err)
	assert.Equal(t, `"Id"=@Id and "Region"=@Region`, got.SQL)
	assert.Equal(t, params("Id", int64(5), "Region", "east"), got.Params)
}

func TestKeyPredicate_Errors(t *testing.T) {
	_, err := KeyPredicate(describe(t, Tag{}), Tag{Label: "x"})
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = KeyPredicate(describe(t, Account{}), Customer{})
	assert.ErrorIs(t, err, ErrInvalidRowType)
}

func TestParams(t *testing.T) {
	p := params("Id", 1, "Name", "x")

	v, ok := p.Lookup("Name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = p.Lookup("Missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"Id", "Name"}, p.Names())
	assert.Equal(t, []interface{}{1, "x"}, p.Values())
}
