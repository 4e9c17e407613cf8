// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, SQLite and SQL Server, handling identifier quoting,
// placeholders, generated id retrieval, truncate fallback, bulk insert strategy
// and literal rendering.
package dialects

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// BulkStrategy selects how multi-row inserts are issued.
type BulkStrategy int

const (
	// BulkPerRow issues one parameterized insert per row.
	BulkPerRow BulkStrategy = iota
	// BulkLiterals renders rows as literal value tuples in as few statements as
	// the dialect's maximum statement length allows.
	BulkLiterals
)

// String returns the strategy name.
func (s BulkStrategy) String() string {
	if s == BulkLiterals {
		return "literals"
	}
	return "per-row"
}

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string
	// QuoteIdentifier escapes a table or column identifier.
	QuoteIdentifier(string) string
	// Placeholder returns the positional placeholder for the n-th (1-based) argument.
	Placeholder(int) string
	// NamedParams reports whether the driver binds sql.Named arguments as @name.
	NamedParams() bool
	// IdentityClause returns the text appended to an insert so that executing it
	// yields the generated value of column (already quoted).
	IdentityClause(table, column string) string
	// SupportsTruncate reports whether "truncate table" is available.
	SupportsTruncate() bool
	// BulkInsert returns the multi-row insert strategy.
	BulkInsert() BulkStrategy
	// MaxStatementLength bounds a literal-batched insert statement.
	MaxStatementLength() int
	// Literal renders v as SQL literal text.
	Literal(v interface{}) (string, error)
	// UpsertSQL returns the conflict clause appended to an insert.
	UpsertSQL(string, []string, []string) string
}

// BatchIdentity is implemented by dialects whose identity retrieval must run
// in the same batch as the insert instead of as a follow-up statement.
type BatchIdentity interface {
	IdentityInBatch() bool
}

// ErrUnsupportedDialect is returned when a dialect name is not registered.
var ErrUnsupportedDialect = errors.New("unsupported database dialect")

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[strings.ToLower(name)] = d
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic("unsupported dialect: " + name)
	}
	return d
}

// quoteWith wraps s in begin/end, doubling any embedded end character.
func quoteWith(s string, begin, end byte) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(begin)
	for i := 0; i < len(s); i++ {
		if s[i] == end {
			sb.WriteByte(end)
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte(end)
	return sb.String()
}
