// Package core generates SQL statements for mapped row types and executes
// them through database/sql.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/coregx/sqlmap/internal/cache"
	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/logger"
	"github.com/coregx/sqlmap/internal/schema"
	"github.com/coregx/sqlmap/internal/security"
	"github.com/coregx/sqlmap/internal/tracer"
)

// DB executes generated statements against a database/sql pool.
type DB struct {
	*session

	sqlDB      *sql.DB
	driverName string
	builder    *Builder

	dialect  dialects.Dialect
	registry *schema.Registry

	logger     logger.Logger
	logEnabled bool
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
	queryHook  QueryHook

	stmts     *cache.StmtCache
	validator *security.Validator
	auditor   *security.Auditor
}

// Tx is a database transaction. It offers the same operations as DB.
type Tx struct {
	*session
	tx *sql.Tx
}

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithDialect overrides the dialect chosen from the driver name.
func WithDialect(d dialects.Dialect) Option {
	return func(db *DB) {
		db.dialect = d
	}
}

// WithRegistry sets the table metadata registry used to describe row types.
func WithRegistry(r *schema.Registry) Option {
	return func(db *DB) {
		db.registry = r
	}
}

// WithLogger logs every executed statement through l. Parameters whose
// names look sensitive are masked.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l == nil {
			return
		}
		db.logger = logger.NewSlogAdapter(l)
		db.logEnabled = true
	}
}

// WithSensitiveFields replaces the default list of masked parameter names.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer wraps every executed statement in an OpenTelemetry span.
func WithTracer(t trace.Tracer) Option {
	return func(db *DB) {
		if t != nil {
			db.tracer = tracer.NewOtelTracer(t)
		}
	}
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithStmtCache prepares generated statements once and reuses them for
// calls on the pool, keeping up to capacity statements. Transactions and
// hand-written SQL are not cached.
func WithStmtCache(capacity int) Option {
	return func(db *DB) {
		db.stmts = cache.New(capacity)
	}
}

// WithValidator rejects hand-written SQL that matches v's patterns, both in
// ExecContext and in RawSQL fragments of predicates and assignments.
func WithValidator(v *security.Validator) Option {
	return func(db *DB) {
		db.validator = v
	}
}

// WithAuditor records executed statements through a.
func WithAuditor(a *security.Auditor) Option {
	return func(db *DB) {
		db.auditor = a
	}
}

// Open opens a pool for driverName and picks the dialect registered under
// the same name. MySQL DSNs are inspected for ANSI_QUOTES and
// maxAllowedPacket.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db := newDB(sqlDB, driverName)
	if driverName == "mysql" {
		d, err := dialects.NewMySQLDialectFromDSN(dsn)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		db.dialect = d
	}

	if err := db.init(opts); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// WrapDB wraps an existing pool. The caller keeps ownership of sqlDB's
// configuration, but Close closes it.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	if sqlDB == nil {
		return nil, errors.New("sqlmap: WrapDB needs a non-nil *sql.DB")
	}
	db := newDB(sqlDB, driverName)
	if err := db.init(opts); err != nil {
		return nil, err
	}
	return db, nil
}

func newDB(sqlDB *sql.DB, driverName string) *DB {
	return &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}
}

func (db *DB) init(opts []Option) error {
	for _, opt := range opts {
		opt(db)
	}

	if db.dialect == nil {
		d, err := dialects.Lookup(db.driverName)
		if err != nil {
			return err
		}
		db.dialect = d
	}

	var bopts []BuilderOption
	if db.registry != nil {
		bopts = append(bopts, WithRegistry(db.registry))
	}
	if db.validator != nil {
		bopts = append(bopts, WithRawSQLCheck(db.validator.ValidateQuery))
	}
	db.builder = NewBuilder(db.dialect, bopts...)
	db.session = &session{db: db, q: db.sqlDB, pin: db.pin}
	return nil
}

// pin reserves one pooled connection so that a follow-up statement sees
// connection-scoped state such as last_insert_id().
func (db *DB) pin(ctx context.Context) (querier, func(), error) {
	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, WrapError(err, "reserve connection")
	}
	return conn, func() { _ = conn.Close() }, nil
}

// Close releases cached statements and closes the underlying pool.
func (db *DB) Close() error {
	if db.stmts != nil {
		db.stmts.Clear()
	}
	return db.sqlDB.Close()
}

// StmtCacheStats reports statement cache usage. It is zero when
// WithStmtCache was not given.
func (db *DB) StmtCacheStats() cache.Stats {
	if db.stmts == nil {
		return cache.Stats{}
	}
	return db.stmts.Stats()
}

// DB returns the underlying pool.
func (db *DB) DB() *sql.DB {
	return db.sqlDB
}

// Builder returns the statement builder for this database's dialect.
func (db *DB) Builder() *Builder {
	return db.builder
}

// Dialect returns the dialect statements are generated for.
func (db *DB) Dialect() dialects.Dialect {
	return db.dialect
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with the given options.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
	}

	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, WrapError(err, "begin transaction")
	}
	return &Tx{
		session: &session{db: db, q: tx, pin: func(context.Context) (querier, func(), error) {
			return tx, func() {}, nil
		}},
		tx: tx,
	}, nil
}

// Transactional runs fn in a transaction, committing when fn returns nil
// and rolling back otherwise. A panic in fn rolls back and is re-raised.
func (db *DB) Transactional(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}
