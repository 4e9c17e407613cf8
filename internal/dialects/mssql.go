package dialects

import "fmt"

// MSSQLDialect implements SQL Server-specific SQL dialect.
type MSSQLDialect struct{}

func init() {
	RegisterDialect("mssql", &MSSQLDialect{})
	RegisterDialect("sqlserver", &MSSQLDialect{})
}

var mssqlLiterals = literalStyle{
	quote:      func(s string) string { return "N" + standardQuote(s) },
	trueLit:    "1",
	falseLit:   "0",
	timeLayout: "2006-01-02T15:04:05.999",
	bytes: func(b []byte) string {
		return fmt.Sprintf("0x%X", b)
	},
}

// Name returns "mssql".
func (d *MSSQLDialect) Name() string { return "mssql" }

// QuoteIdentifier quotes an identifier using square brackets.
func (d *MSSQLDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, '[', ']')
}

// Placeholder returns the positional form @p1, @p2, ...
func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// NamedParams returns true.
func (d *MSSQLDialect) NamedParams() bool { return true }

// IdentityClause appends a secondary statement returning scope_identity().
func (d *MSSQLDialect) IdentityClause(_, _ string) string {
	return ";select cast(scope_identity() as bigint)"
}

// IdentityInBatch returns true: scope_identity() is only visible within the
// batch that ran the insert.
func (d *MSSQLDialect) IdentityInBatch() bool { return true }

// SupportsTruncate returns true.
func (d *MSSQLDialect) SupportsTruncate() bool { return true }

// BulkInsert issues one statement per row.
func (d *MSSQLDialect) BulkInsert() BulkStrategy { return BulkPerRow }

// MaxStatementLength returns the default batch bound.
func (d *MSSQLDialect) MaxStatementLength() int { return DefaultMaxStatementLength }

// Literal renders v as a SQL Server literal.
func (d *MSSQLDialect) Literal(v interface{}) (string, error) {
	return mssqlLiterals.render(v)
}

// UpsertSQL returns "": SQL Server needs MERGE, which is not generated.
func (d *MSSQLDialect) UpsertSQL(_ string, _, _ []string) string {
	return ""
}
