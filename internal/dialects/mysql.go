package dialects

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// packetSlack is kept free below max_allowed_packet for the protocol header.
const packetSlack = 1024

// MySQLDialect implements MySQL-specific SQL dialect.
//
// The generated id is fetched with a trailing "select last_insert_id()". The
// executor runs it as a second statement on the connection that ran the insert.
type MySQLDialect struct {
	// ANSIQuotes quotes identifiers with double quotes (sql_mode=ANSI_QUOTES)
	// instead of backticks.
	ANSIQuotes bool
	// MaxLength overrides DefaultMaxStatementLength when positive.
	MaxLength int
}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// NewMySQLDialectFromDSN derives the dialect settings from a driver DSN: the
// quote style follows sql_mode and the literal batch bound follows
// maxAllowedPacket.
func NewMySQLDialectFromDSN(dsn string) (*MySQLDialect, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dialect: %w", err)
	}

	d := &MySQLDialect{}
	if mode, ok := cfg.Params["sql_mode"]; ok {
		d.ANSIQuotes = strings.Contains(strings.ToUpper(mode), "ANSI")
	}
	if cfg.MaxAllowedPacket > 2*packetSlack {
		d.MaxLength = cfg.MaxAllowedPacket - packetSlack
	}
	return d, nil
}

func (d *MySQLDialect) quoteChar() byte {
	if d.ANSIQuotes {
		return '"'
	}
	return '`'
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks, or double quotes
// under ANSI_QUOTES.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	q := d.quoteChar()
	return quoteWith(s, q, q)
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// NamedParams returns false.
func (d *MySQLDialect) NamedParams() bool { return false }

// IdentityClause appends a secondary statement returning the generated id.
func (d *MySQLDialect) IdentityClause(_, _ string) string {
	return ";select last_insert_id()"
}

// SupportsTruncate returns true.
func (d *MySQLDialect) SupportsTruncate() bool { return true }

// BulkInsert renders literal value tuples.
func (d *MySQLDialect) BulkInsert() BulkStrategy { return BulkLiterals }

// MaxStatementLength returns the literal batch bound.
func (d *MySQLDialect) MaxStatementLength() int {
	if d.MaxLength > 0 {
		return d.MaxLength
	}
	return DefaultMaxStatementLength
}

// Literal renders v as a MySQL literal using backslash escapes.
func (d *MySQLDialect) Literal(v interface{}) (string, error) {
	style := literalStyle{
		quote:      backslashQuote(d.quoteChar()),
		trueLit:    "true",
		falseLit:   "false",
		timeLayout: "2006-01-02 15:04:05.999999",
		bytes:      hexBytes,
	}
	return style.render(v)
}

// UpsertSQL generates MySQL UPSERT syntax using ON DUPLICATE KEY UPDATE.
func (d *MySQLDialect) UpsertSQL(_ string, conflictColumns, updateCols []string) string {
	if len(updateCols) == 0 {
		// MySQL has no DO NOTHING; assigning a key column to itself is a no-op update.
		if len(conflictColumns) == 0 {
			return ""
		}
		updateCols = conflictColumns[:1]
	}

	updates := make([]string, len(updateCols))
	for i, col := range updateCols {
		updates[i] = fmt.Sprintf("%s=values(%s)", col, col)
	}

	return " on duplicate key update " + strings.Join(updates, ", ")
}
