package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// AuditLevel selects which statements are audited.
type AuditLevel int

const (
	// AuditNone disables audit logging.
	AuditNone AuditLevel = iota
	// AuditWrites audits INSERT, UPSERT, UPDATE, DELETE and TRUNCATE.
	AuditWrites
	// AuditReads also audits SELECT, COUNT and EXISTS.
	AuditReads
	// AuditAll also audits hand-written SQL.
	AuditAll
)

// Operation is one executed statement as seen by the auditor.
type Operation struct {
	Kind     string // statement kind: SELECT, INSERT, ..., RAW
	Table    string
	SQL      string
	Args     []interface{}
	Rows     int64
	Err      error
	Duration time.Duration
}

// Auditor writes audit events through a slog.Logger. Parameter values are
// never logged, only a hash of them.
type Auditor struct {
	logger *slog.Logger
	level  AuditLevel
}

// NewAuditor creates an auditor. A nil logger disables it.
func NewAuditor(logger *slog.Logger, level AuditLevel) *Auditor {
	return &Auditor{logger: logger, level: level}
}

// Record audits op when the level covers its kind. Failed statements are
// logged at warn level.
func (a *Auditor) Record(ctx context.Context, op Operation) {
	if !a.covers(op.Kind) {
		return
	}

	level := slog.LevelInfo
	errText := ""
	if op.Err != nil {
		level = slog.LevelWarn
		errText = op.Err.Error()
	}
	a.logger.LogAttrs(ctx, level, "audit_event",
		slog.String("operation", op.Kind),
		slog.String("table", op.Table),
		slog.Int64("affected_rows", op.Rows),
		slog.String("sql", op.SQL),
		slog.String("params_hash", hashParams(op.Args)),
		slog.String("user", User(ctx)),
		slog.String("client_ip", ClientIP(ctx)),
		slog.String("request_id", RequestID(ctx)),
		slog.Bool("success", op.Err == nil),
		slog.String("error", errText),
		slog.Int64("duration_ms", op.Duration.Milliseconds()),
	)
}

// Blocked records a statement rejected before execution.
func (a *Auditor) Blocked(ctx context.Context, query string, err error) {
	if a.logger == nil {
		return
	}
	a.logger.LogAttrs(ctx, slog.LevelWarn, "security_event",
		slog.String("event_type", "query_blocked"),
		slog.String("user", User(ctx)),
		slog.String("client_ip", ClientIP(ctx)),
		slog.String("request_id", RequestID(ctx)),
		slog.String("query", query),
		slog.String("error", err.Error()),
	)
}

func (a *Auditor) covers(kind string) bool {
	if a.logger == nil {
		return false
	}
	switch kind {
	case "INSERT", "UPSERT", "UPDATE", "DELETE", "TRUNCATE":
		return a.level >= AuditWrites
	case "SELECT", "COUNT", "EXISTS":
		return a.level >= AuditReads
	}
	return a.level >= AuditAll
}

// hashParams returns a SHA-256 over the parameter values, empty without
// parameters.
func hashParams(params []interface{}) string {
	if len(params) == 0 {
		return ""
	}
	h := sha256.New()
	for _, p := range params {
		_, _ = fmt.Fprintf(h, "%v\x00", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type contextKey string

const (
	userKey      contextKey = "sqlmap:user"
	clientIPKey  contextKey = "sqlmap:client_ip"
	requestIDKey contextKey = "sqlmap:request_id"
)

// WithUser adds the acting user to ctx for audit events.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP adds the client address to ctx for audit events.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// WithRequestID adds a request id to ctx for audit events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// User returns the user stored by WithUser.
func User(ctx context.Context) string {
	s, _ := ctx.Value(userKey).(string)
	return s
}

// ClientIP returns the address stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	s, _ := ctx.Value(clientIPKey).(string)
	return s
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
