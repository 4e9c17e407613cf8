package core

import (
	"context"
	"time"

	"github.com/coregx/sqlmap/internal/security"
	"github.com/coregx/sqlmap/internal/tracer"
)

// QueryEvent describes one executed statement. It is passed to QueryHook
// callbacks for logging, metrics or debugging.
type QueryEvent struct {
	// SQL is the bound statement text as sent to the driver.
	SQL string
	// Args are the driver arguments, unmasked.
	Args []interface{}
	// Duration is the time spent in the driver.
	Duration time.Duration
	// RowsAffected is reported for statements executed with Exec.
	RowsAffected int64
	// Error is the execution error, nil on success.
	Error error
	// Operation is the statement kind (SELECT, INSERT, ...), or RAW for
	// hand-written SQL.
	Operation string
	// Table is the quoted table name, empty for raw SQL.
	Table string
}

// QueryHook is invoked after every statement execution.
//
//	db, _ := sqlmap.Open("postgres", dsn,
//	    sqlmap.WithQueryHook(func(ctx context.Context, e sqlmap.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// KindRaw marks events for hand-written SQL run through ExecContext.
const KindRaw Kind = "RAW"

// execution carries what observe needs to report one statement.
type execution struct {
	kind   Kind
	table  string
	query  string
	args   []interface{}
	names  []string // parameter names, nil for raw SQL
	values []interface{}

	prepared bool // eligible for the statement cache
}

// observe starts a span for e and returns the function that finishes it:
// it logs the outcome, annotates the span and invokes the query hook.
func (db *DB) observe(ctx context.Context, e *execution) (context.Context, func(rows int64, err error)) {
	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanName(string(e.kind)))
	start := time.Now()

	return ctx, func(rows int64, err error) {
		elapsed := time.Since(start)

		if db.logEnabled {
			db.logResult(e, rows, err, elapsed)
		}

		tracer.Annotate(span, &tracer.Statement{
			Dialect:      db.builder.Dialect().Name(),
			Kind:         string(e.kind),
			Table:        e.table,
			SQL:          e.query,
			Params:       len(e.args),
			RowsAffected: rows,
			Duration:     elapsed,
			Err:          err,
		})
		span.End()

		if db.auditor != nil {
			db.auditor.Record(ctx, security.Operation{
				Kind:     string(e.kind),
				Table:    e.table,
				SQL:      e.query,
				Args:     e.args,
				Rows:     rows,
				Err:      err,
				Duration: elapsed,
			})
		}

		if db.queryHook != nil {
			db.queryHook(ctx, QueryEvent{
				SQL:          e.query,
				Args:         e.args,
				Duration:     elapsed,
				RowsAffected: rows,
				Error:        err,
				Operation:    string(e.kind),
				Table:        e.table,
			})
		}
	}
}

func (db *DB) logResult(e *execution, rows int64, err error, elapsed time.Duration) {
	params := db.maskedParams(e)
	if err != nil {
		db.logger.Error("query execution failed",
			"sql", e.query,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"database", db.driverName,
			"error", err,
		)
		return
	}
	db.logger.Info("query executed",
		"sql", e.query,
		"params", params,
		"duration_ms", elapsed.Milliseconds(),
		"rows_affected", rows,
		"database", db.driverName,
	)
}

func (db *DB) maskedParams(e *execution) string {
	if e.names != nil {
		return db.sanitizer.FormatParams(db.sanitizer.MaskNamed(e.names, e.values))
	}
	return db.sanitizer.FormatParams(db.sanitizer.MaskParams(e.query, e.args))
}
