package dialects

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultMaxStatementLength bounds literal-batched inserts for engines without a
// hard protocol limit.
const DefaultMaxStatementLength = 1 << 20

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct {
	// MaxLength overrides DefaultMaxStatementLength when positive.
	MaxLength int
}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pq", &PostgresDialect{})
}

var postgresLiterals = literalStyle{
	quote:      pq.QuoteLiteral,
	trueLit:    "true",
	falseLit:   "false",
	timeLayout: "2006-01-02 15:04:05.999999999Z07:00",
	timeCast:   "::timestamptz",
	bytes: func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	},
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// NamedParams returns false: lib/pq binds positionally.
func (d *PostgresDialect) NamedParams() bool { return false }

// IdentityClause appends a RETURNING clause for the generated column.
func (d *PostgresDialect) IdentityClause(_, column string) string {
	return " returning " + column
}

// SupportsTruncate returns true.
func (d *PostgresDialect) SupportsTruncate() bool { return true }

// BulkInsert renders literal value tuples.
func (d *PostgresDialect) BulkInsert() BulkStrategy { return BulkLiterals }

// MaxStatementLength returns the literal batch bound.
func (d *PostgresDialect) MaxStatementLength() int {
	if d.MaxLength > 0 {
		return d.MaxLength
	}
	return DefaultMaxStatementLength
}

// Literal renders v as a PostgreSQL literal.
func (d *PostgresDialect) Literal(v interface{}) (string, error) {
	return postgresLiterals.render(v)
}

// UpsertSQL generates PostgreSQL UPSERT syntax using ON CONFLICT.
func (d *PostgresDialect) UpsertSQL(_ string, conflictColumns, updateCols []string) string {
	if len(updateCols) == 0 {
		if len(conflictColumns) > 0 {
			return fmt.Sprintf(" on conflict (%s) do nothing", strings.Join(conflictColumns, ", "))
		}
		return " on conflict do nothing"
	}

	return fmt.Sprintf(" on conflict (%s) do update set %s",
		strings.Join(conflictColumns, ", "),
		buildUpdateSet(updateCols, "excluded"),
	)
}

// buildUpdateSet builds the SET clause taking values from the proposed row.
func buildUpdateSet(cols []string, source string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%s.%s", col, source, col)
	}
	return strings.Join(parts, ", ")
}
