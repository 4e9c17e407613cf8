// Package sqlmap generates SQL statements for plain Go structs and runs them
// through database/sql. Row types are described once from their struct tags;
// predicates are composed from values and compiled into parameterized
// fragments; dialects decide quoting, placeholders, identity retrieval and
// literal rendering for PostgreSQL, MySQL, SQLite and SQL Server.
package sqlmap

import (
	"github.com/coregx/sqlmap/internal/config"
	"github.com/coregx/sqlmap/internal/core"
	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/eval"
	"github.com/coregx/sqlmap/internal/metrics"
	"github.com/coregx/sqlmap/internal/schema"
	"github.com/coregx/sqlmap/internal/security"
)

type (
	// DB is a database handle that builds, binds and executes statements.
	DB = core.DB
	// Tx is a transaction with the same operations as DB.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions
	// Option is a functional option for configuring DB.
	Option = core.Option
	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after every statement execution.
	QueryHook = core.QueryHook

	// Builder generates statements for one dialect without executing them.
	Builder = core.Builder
	// Statement is generated SQL with its named parameters.
	Statement = core.Statement
	// Kind is the kind of a generated statement.
	Kind = core.Kind
	// StatementOption customizes a generated statement.
	StatementOption = core.StatementOption
	// Assignments maps field names to new values for UpdateWhere.
	Assignments = core.Assignments
	// Param is a named statement parameter.
	Param = core.Param
	// Params is an ordered parameter list.
	Params = core.Params
	// Compiled is a compiled predicate fragment.
	Compiled = core.Compiled

	// Predicate is a boolean filter over a row type.
	Predicate = core.Predicate
	// ColumnRef names a mapped field inside a predicate.
	ColumnRef = core.ColumnRef
	// RawSQL is SQL text inserted verbatim.
	RawSQL = core.RawSQL

	// Table is the metadata of a row type.
	Table = schema.Table
	// Column is the metadata of one mapped field.
	Column = schema.Column
	// Registry caches table metadata per row type.
	Registry = schema.Registry
	// SelectOptions customize the select statement of a read model.
	SelectOptions = schema.SelectOptions

	// Dialect renders SQL for one database engine.
	Dialect = dialects.Dialect

	// Node is a deferred value expression.
	Node = eval.Node

	// Config describes a database handle in YAML.
	Config = config.Config
	// Metrics samples executed statements into Prometheus collectors.
	Metrics = metrics.Collector

	// Validator screens hand-written SQL.
	Validator = security.Validator
	// Auditor records executed statements.
	Auditor = security.Auditor
	// AuditLevel selects which statement kinds are audited.
	AuditLevel = security.AuditLevel
)

// Audit levels.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditReads  = security.AuditReads
	AuditAll    = security.AuditAll
)

// Statement kinds.
const (
	KindSelect   = core.KindSelect
	KindCount    = core.KindCount
	KindExists   = core.KindExists
	KindInsert   = core.KindInsert
	KindUpsert   = core.KindUpsert
	KindUpdate   = core.KindUpdate
	KindDelete   = core.KindDelete
	KindTruncate = core.KindTruncate
)

// Re-export core functions.
var (
	Open                = core.Open
	WrapDB              = core.WrapDB
	WithMaxOpenConns    = core.WithMaxOpenConns
	WithMaxIdleConns    = core.WithMaxIdleConns
	WithDialect         = core.WithDialect
	WithRegistry        = core.WithRegistry
	WithLogger          = core.WithLogger
	WithSensitiveFields = core.WithSensitiveFields
	WithTracer          = core.WithTracer
	WithQueryHook       = core.WithQueryHook
	WithStmtCache       = core.WithStmtCache
	WithValidator       = core.WithValidator
	WithAuditor         = core.WithAuditor

	// Statement building
	NewBuilder   = core.NewBuilder
	Columns      = core.Columns
	Trailing     = core.Trailing
	Compile      = core.Compile
	KeyPredicate = core.KeyPredicate
	Bind         = core.Bind

	// Predicates
	Col        = core.Col
	Eq         = core.Eq
	NotEq      = core.NotEq
	Lt         = core.Lt
	Gt         = core.Gt
	Le         = core.Le
	Ge         = core.Ge
	And        = core.And
	Or         = core.Or
	Not        = core.Not
	In         = core.In
	NotIn      = core.NotIn
	InSQL      = core.InSQL
	Like       = core.Like
	NotLike    = core.NotLike
	Between    = core.Between
	NotBetween = core.NotBetween
	Eval       = core.Eval
	Test       = core.Test
	True       = core.True
	False      = core.False

	// Metadata
	NewRegistry          = schema.NewRegistry
	WithPluralTableNames = schema.WithPluralTableNames
	LookupDialect        = dialects.Lookup
	RegisterDialect      = dialects.RegisterDialect

	// Value expressions
	Value    = eval.Value
	Evaluate = eval.Evaluate

	// Configuration and metrics
	LoadConfig  = config.Load
	ParseConfig = config.Parse
	OpenConfig  = config.Open
	NewMetrics  = metrics.New

	// Security
	NewValidator  = security.NewValidator
	WithStrict    = security.WithStrict
	NewAuditor    = security.NewAuditor
	WithUser      = security.WithUser
	WithClientIP  = security.WithClientIP
	WithRequestID = security.WithRequestID
)

// Errors returned by statement building and execution.
var (
	ErrConfiguration        = core.ErrConfiguration
	ErrColumnNotFound       = core.ErrColumnNotFound
	ErrInvalidRowType       = core.ErrInvalidRowType
	ErrUnevaluable          = core.ErrUnevaluable
	ErrUnsupportedDialect   = core.ErrUnsupportedDialect
	ErrUnsupportedPredicate = core.ErrUnsupportedPredicate
	ErrNoKey                = core.ErrNoKey
	ErrUnsupported          = core.ErrUnsupported
	ErrNoRows               = core.ErrNoRows
	ErrUnsafeSQL            = security.ErrUnsafeSQL
)
