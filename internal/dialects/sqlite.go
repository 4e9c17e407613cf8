package dialects

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

var sqliteLiterals = literalStyle{
	quote:      standardQuote,
	trueLit:    "1",
	falseLit:   "0",
	timeLayout: "2006-01-02 15:04:05.999999999-07:00",
	bytes:      hexBytes,
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteWith(s, '"', '"')
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// NamedParams returns true: SQLite binds @name natively.
func (d *SQLiteDialect) NamedParams() bool { return true }

// IdentityClause appends a secondary statement returning the last rowid.
func (d *SQLiteDialect) IdentityClause(_, _ string) string {
	return ";select last_insert_rowid()"
}

// SupportsTruncate returns false: SQLite has no truncate statement.
func (d *SQLiteDialect) SupportsTruncate() bool { return false }

// BulkInsert issues one statement per row.
func (d *SQLiteDialect) BulkInsert() BulkStrategy { return BulkPerRow }

// MaxStatementLength returns SQLite's default SQLITE_MAX_SQL_LENGTH.
func (d *SQLiteDialect) MaxStatementLength() int { return 1000000000 }

// Literal renders v as a SQLite literal.
func (d *SQLiteDialect) Literal(v interface{}) (string, error) {
	return sqliteLiterals.render(v)
}

// UpsertSQL generates SQLite UPSERT syntax using ON CONFLICT.
func (d *SQLiteDialect) UpsertSQL(_ string, conflictColumns, updateCols []string) string {
	if len(updateCols) == 0 {
		if len(conflictColumns) > 0 {
			return fmt.Sprintf(" on conflict (%s) do nothing", strings.Join(conflictColumns, ", "))
		}
		return " on conflict do nothing"
	}

	return fmt.Sprintf(" on conflict (%s) do update set %s",
		strings.Join(conflictColumns, ", "),
		buildUpdateSet(updateCols, "excluded"))
}
