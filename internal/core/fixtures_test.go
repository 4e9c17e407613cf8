package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/schema"
)

func ansiQuote(s string) string { return `"` + s + `"` }

// Account has a composite key and no identity.
type Account struct {
	Id     int64  `db:",key"`
	Region string `db:",key"`
	Name   string
	Code   string
	Email  *string
	Total  int
	Limit  int
}

// Customer has a generated identity and an insert-time default.
type Customer struct {
	Id        int64 `db:",identity"`
	Name      string
	Password  string
	CreatedAt string `insert:"CURRENT_TIMESTAMP" update:"-"`
}

// Ticket has nothing to insert but its defaults.
type Ticket struct {
	Id     int64  `db:",identity"`
	Issued string `db:",readonly"`
}

// RegionTotal is a read model over a join.
type RegionTotal struct {
	Region string `db:",key"`
	Total  int    `sql:"sum(a.\"Total\")"`
}

func (RegionTotal) FromClause() string { return `"Account" a` }

func (RegionTotal) SelectOptions() schema.SelectOptions {
	return schema.SelectOptions{GroupByKey: true, Trailing: "order by 2 desc"}
}

// Tag has no key at all.
type Tag struct {
	Label string
}

func describe(t *testing.T, row interface{}) *schema.Table {
	t.Helper()
	tbl, err := schema.NewRegistry(ansiQuote).DescribeValue(row)
	require.NoError(t, err)
	return tbl
}

func builderFor(t *testing.T, dialect string) *Builder {
	t.Helper()
	d, err := dialects.Lookup(dialect)
	require.NoError(t, err)
	return NewBuilder(d)
}

func params(kv ...interface{}) Params {
	out := make(Params, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, Param{Name: kv[i].(string), Value: kv[i+1]})
	}
	return out
}
