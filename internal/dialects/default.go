package dialects

// DefaultDialect is used when no engine is configured: ANSI double-quoted
// identifiers, named @parameters and one statement per bulk row.
type DefaultDialect struct{}

func init() {
	RegisterDialect("default", &DefaultDialect{})
	RegisterDialect("", &DefaultDialect{})
}

var defaultLiterals = literalStyle{
	quote:      standardQuote,
	trueLit:    "true",
	falseLit:   "false",
	timeLayout: "2006-01-02 15:04:05.999999999",
	bytes:      hexBytes,
}

// Name returns "default".
func (d *DefaultDialect) Name() string { return "default" }

// QuoteIdentifier quotes an identifier using double quotes.
func (d *DefaultDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, '"', '"')
}

// Placeholder returns "?".
func (d *DefaultDialect) Placeholder(_ int) string { return "?" }

// NamedParams returns true.
func (d *DefaultDialect) NamedParams() bool { return true }

// IdentityClause appends a RETURNING clause.
func (d *DefaultDialect) IdentityClause(_, column string) string {
	return " returning " + column
}

// SupportsTruncate returns true.
func (d *DefaultDialect) SupportsTruncate() bool { return true }

// BulkInsert issues one statement per row.
func (d *DefaultDialect) BulkInsert() BulkStrategy { return BulkPerRow }

// MaxStatementLength returns the default batch bound.
func (d *DefaultDialect) MaxStatementLength() int { return DefaultMaxStatementLength }

// Literal renders v with standard SQL quoting.
func (d *DefaultDialect) Literal(v interface{}) (string, error) {
	return defaultLiterals.render(v)
}

// UpsertSQL uses the SQL:2003-style ON CONFLICT shared by PostgreSQL and SQLite.
func (d *DefaultDialect) UpsertSQL(table string, conflictColumns, updateCols []string) string {
	return (&SQLiteDialect{}).UpsertSQL(table, conflictColumns, updateCols)
}
