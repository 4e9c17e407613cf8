package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlmap/internal/dialects"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// session runs statements on a pool or a transaction.
type session struct {
	db  *DB
	q   querier
	pin func(context.Context) (querier, func(), error)
}

// ExecContext runs hand-written SQL. Parameters are logged masked when the
// statement mentions a sensitive column.
func (s *session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := s.db.screen(ctx, query, args); err != nil {
		return nil, err
	}
	res, _, err := s.execOn(ctx, s.q, &execution{kind: KindRaw, query: query, args: args})
	return res, err
}

// Exec binds and runs a generated statement.
func (s *session) Exec(ctx context.Context, stmt *Statement) (sql.Result, error) {
	e, err := s.bind(stmt, stmt.SQL)
	if err != nil {
		return nil, err
	}
	res, _, err := s.execOn(ctx, s.q, e)
	return res, err
}

// Query runs stmt and appends every returned row to dest, a pointer to a
// slice of the statement's row type or pointers to it.
func (s *session) Query(ctx context.Context, stmt *Statement, dest interface{}) error {
	slice, elem, isPtr, err := sliceTarget(dest)
	if err != nil {
		return err
	}
	if stmt.Table == nil || stmt.Table.Type != elem {
		return fmt.Errorf("%w: cannot scan %s rows into %T", ErrInvalidRowType, stmtType(stmt), dest)
	}
	e, err := s.bind(stmt, stmt.SQL)
	if err != nil {
		return err
	}
	return s.queryOn(ctx, e, func(rows *sql.Rows) (int64, error) {
		return scanAll(rows, stmt.Table, slice, isPtr)
	})
}

// Get runs stmt and scans the first row into dest, a pointer to the
// statement's row type. It returns ErrNoRows when nothing matches.
func (s *session) Get(ctx context.Context, stmt *Statement, dest interface{}) error {
	row, err := structTarget(dest)
	if err != nil {
		return err
	}
	if stmt.Table == nil || stmt.Table.Type != row.Type() {
		return fmt.Errorf("%w: cannot scan %s rows into %T", ErrInvalidRowType, stmtType(stmt), dest)
	}
	e, err := s.bind(stmt, stmt.SQL)
	if err != nil {
		return err
	}
	return s.queryOn(ctx, e, func(rows *sql.Rows) (int64, error) {
		if err := scanOne(rows, stmt.Table, row); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// Select loads the rows matching where into dest, a pointer to a slice.
func (s *session) Select(ctx context.Context, dest interface{}, where Predicate, opts ...StatementOption) error {
	_, elem, _, err := sliceTarget(dest)
	if err != nil {
		return err
	}
	stmt, err := s.db.builder.Select(elem, where, opts...)
	if err != nil {
		return err
	}
	return s.Query(ctx, stmt, dest)
}

// GetByKey loads the row identified by key into dest. See Builder.SelectByKey.
func (s *session) GetByKey(ctx context.Context, dest interface{}, key interface{}) error {
	row, err := structTarget(dest)
	if err != nil {
		return err
	}
	stmt, err := s.db.builder.SelectByKey(row.Type(), key)
	if err != nil {
		return err
	}
	return s.Get(ctx, stmt, dest)
}

// Count returns the number of rows of rowType matching where.
func (s *session) Count(ctx context.Context, rowType interface{}, where Predicate) (int64, error) {
	stmt, err := s.db.builder.Count(rowType, where)
	if err != nil {
		return 0, err
	}
	return s.scalar(ctx, stmt)
}

// Exists reports whether any row of rowType matches where.
func (s *session) Exists(ctx context.Context, rowType interface{}, where Predicate) (bool, error) {
	stmt, err := s.db.builder.Exists(rowType, where)
	if err != nil {
		return false, err
	}
	n, err := s.scalar(ctx, stmt)
	return n != 0, err
}

// Insert inserts row. When the table has an identity column, row must be a
// pointer and the generated value is written back into it.
func (s *session) Insert(ctx context.Context, row interface{}, opts ...StatementOption) error {
	stmt, err := s.db.builder.Insert(row, opts...)
	if err != nil {
		return err
	}
	return s.insert(ctx, stmt, row)
}

// InsertList inserts every element of rows, a slice of rows or row
// pointers, and returns the number of rows inserted. Rows inserted one by one
// get their identities written back into the elements.
func (s *session) InsertList(ctx context.Context, rows interface{}, opts ...StatementOption) (int64, error) {
	rv, err := sliceValue(rows)
	if err != nil {
		return 0, err
	}
	if rv.Len() == 0 {
		return 0, nil
	}
	perRow, err := s.db.builder.rowByRow(rv.Type().Elem(), opts)
	if err != nil {
		return 0, err
	}
	if perRow {
		return s.insertEach(ctx, rv, opts)
	}

	stmts, err := s.db.builder.InsertList(rows, opts...)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, stmt := range stmts {
		e, err := s.bind(stmt, stmt.SQL)
		if err != nil {
			return total, err
		}
		e.prepared = false // literal tuples make every statement unique
		_, n, err := s.execOn(ctx, s.q, e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *session) insertEach(ctx context.Context, rv reflect.Value, opts []StatementOption) (int64, error) {
	var total int64
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Kind() != reflect.Ptr && elem.CanAddr() {
			elem = elem.Addr()
		}
		if err := s.Insert(ctx, elem.Interface(), opts...); err != nil {
			return total, fmt.Errorf("row %d: %w", i, err)
		}
		total++
	}
	return total, nil
}

// Upsert inserts row or updates the existing row with the same key.
func (s *session) Upsert(ctx context.Context, row interface{}, opts ...StatementOption) (int64, error) {
	stmt, err := s.db.builder.Upsert(row, opts...)
	if err != nil {
		return 0, err
	}
	return s.affected(ctx, stmt)
}

// Update writes row's updatable columns to the row with the same key.
func (s *session) Update(ctx context.Context, row interface{}, opts ...StatementOption) (int64, error) {
	stmt, err := s.db.builder.Update(row, opts...)
	if err != nil {
		return 0, err
	}
	return s.affected(ctx, stmt)
}

// UpdateWhere assigns values to every row of rowType matching where.
func (s *session) UpdateWhere(ctx context.Context, rowType interface{}, values Assignments, where Predicate) (int64, error) {
	stmt, err := s.db.builder.UpdateWhere(rowType, values, where)
	if err != nil {
		return 0, err
	}
	return s.affected(ctx, stmt)
}

// Delete deletes the row with row's key.
func (s *session) Delete(ctx context.Context, row interface{}) (int64, error) {
	stmt, err := s.db.builder.Delete(row)
	if err != nil {
		return 0, err
	}
	return s.affected(ctx, stmt)
}

// DeleteWhere deletes every row of rowType matching where.
func (s *session) DeleteWhere(ctx context.Context, rowType interface{}, where Predicate) (int64, error) {
	stmt, err := s.db.builder.DeleteWhere(rowType, where)
	if err != nil {
		return 0, err
	}
	return s.affected(ctx, stmt)
}

// Truncate empties the table of rowType.
func (s *session) Truncate(ctx context.Context, rowType interface{}) error {
	stmt, err := s.db.builder.Truncate(rowType)
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, stmt)
	return err
}

func (s *session) affected(ctx context.Context, stmt *Statement) (int64, error) {
	e, err := s.bind(stmt, stmt.SQL)
	if err != nil {
		return 0, err
	}
	_, n, err := s.execOn(ctx, s.q, e)
	return n, err
}

// insert runs an insert statement and writes the retrieved identity back.
// A "returning" clause, or a batch for a BatchIdentity dialect, yields the
// identity from the statement itself. A ";select" suffix otherwise runs as
// a second statement on the same connection.
func (s *session) insert(ctx context.Context, stmt *Statement, row interface{}) error {
	if stmt.Identity == nil {
		_, err := s.affected(ctx, stmt)
		return err
	}

	rv := reflect.ValueOf(row)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: %T has an identity column, insert a pointer to receive it",
			ErrInvalidRowType, row)
	}

	main, secondary := stmt.Split()
	var id sql.NullInt64
	if secondary == "" || inBatch(s.db.dialect) {
		e, err := s.bind(stmt, stmt.SQL)
		if err != nil {
			return err
		}
		if err := s.queryOn(ctx, e, scanInt64(&id)); err != nil {
			return err
		}
	} else {
		q, release, err := s.pin(ctx)
		if err != nil {
			return err
		}
		defer release()

		e, err := s.bind(stmt, main)
		if err != nil {
			return err
		}
		if _, _, err := s.execOn(ctx, q, e); err != nil {
			return err
		}
		e = &execution{kind: KindInsert, table: e.table, query: secondary}
		if err := s.queryOnWith(ctx, q, e, scanInt64(&id)); err != nil {
			return err
		}
	}

	if !id.Valid {
		return fmt.Errorf("insert into %s: no identity value returned", stmt.Table.Name)
	}
	return stmt.Identity.Accessor.SetInt64(rv.Elem(), id.Int64)
}

func inBatch(d dialects.Dialect) bool {
	b, ok := d.(dialects.BatchIdentity)
	return ok && b.IdentityInBatch()
}

// scalar runs a single-value query such as count(*).
func (s *session) scalar(ctx context.Context, stmt *Statement) (int64, error) {
	e, err := s.bind(stmt, stmt.SQL)
	if err != nil {
		return 0, err
	}
	var n sql.NullInt64
	if err := s.queryOn(ctx, e, scanInt64(&n)); err != nil {
		return 0, err
	}
	return n.Int64, nil
}

func scanInt64(dest *sql.NullInt64) func(*sql.Rows) (int64, error) {
	return func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		if err := rows.Scan(dest); err != nil {
			return 0, fmt.Errorf("scanner: scan failed: %w", err)
		}
		return 1, rows.Err()
	}
}

func (s *session) bind(stmt *Statement, query string) (*execution, error) {
	bound, args, err := bindSQL(s.db.dialect, query, stmt.Params)
	if err != nil {
		return nil, err
	}
	e := &execution{
		kind:     stmt.Kind,
		query:    bound,
		args:     args,
		names:    stmt.Params.Names(),
		values:   stmt.Params.Values(),
		prepared: true,
	}
	if stmt.Table != nil {
		e.table = stmt.Table.Name
	}
	return e, nil
}

func (s *session) execOn(ctx context.Context, q querier, e *execution) (sql.Result, int64, error) {
	ctx, done := s.db.observe(ctx, e)
	res, err := s.db.execContext(ctx, q, e)
	var n int64
	if err == nil {
		n, _ = res.RowsAffected()
	}
	done(n, err)
	if err != nil {
		return nil, 0, WrapError(err, operation(e.kind))
	}
	return res, n, nil
}

func (s *session) queryOn(ctx context.Context, e *execution, scan func(*sql.Rows) (int64, error)) error {
	return s.queryOnWith(ctx, s.q, e, scan)
}

func (s *session) queryOnWith(ctx context.Context, q querier, e *execution, scan func(*sql.Rows) (int64, error)) error {
	ctx, done := s.db.observe(ctx, e)
	rows, release, err := s.db.queryContext(ctx, q, e)
	if err != nil {
		done(0, err)
		return WrapError(err, operation(e.kind))
	}
	defer release()
	defer func() { _ = rows.Close() }()

	n, err := scan(rows)
	if errors.Is(err, ErrNoRows) {
		done(0, nil)
		return err
	}
	done(n, err)
	return err
}

// cached returns the pool's prepared statement for e, or nil when e runs
// unprepared on q.
func (db *DB) cached(ctx context.Context, q querier, e *execution) (*sql.Stmt, func(), error) {
	if db.stmts == nil || !e.prepared || q != querier(db.sqlDB) {
		return nil, nil, nil
	}
	return db.stmts.Prepare(ctx, db.sqlDB, e.query)
}

func (db *DB) execContext(ctx context.Context, q querier, e *execution) (sql.Result, error) {
	stmt, release, err := db.cached(ctx, q, e)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return q.ExecContext(ctx, e.query, e.args...)
	}
	defer release()
	return stmt.ExecContext(ctx, e.args...)
}

// queryContext returns rows for e and a release function to call after the
// rows are closed.
func (db *DB) queryContext(ctx context.Context, q querier, e *execution) (*sql.Rows, func(), error) {
	stmt, release, err := db.cached(ctx, q, e)
	if err != nil {
		return nil, nil, err
	}
	if stmt == nil {
		rows, err := q.QueryContext(ctx, e.query, e.args...)
		return rows, func() {}, err
	}
	rows, err := stmt.QueryContext(ctx, e.args...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return rows, release, nil
}

// screen validates hand-written SQL and its arguments. Rejections are
// reported to the auditor.
func (db *DB) screen(ctx context.Context, query string, args []interface{}) error {
	if db.validator == nil {
		return nil
	}
	err := db.validator.ValidateQuery(query)
	if err == nil {
		err = db.validator.ValidateParams(args)
	}
	if err != nil && db.auditor != nil {
		db.auditor.Blocked(ctx, query, err)
	}
	return err
}

func operation(k Kind) string {
	return strings.ToLower(string(k)) + " failed"
}

func stmtType(stmt *Statement) string {
	if stmt.Table == nil {
		return "untyped"
	}
	return stmt.Table.Type.String()
}
