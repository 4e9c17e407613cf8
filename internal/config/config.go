// Package config loads database handle settings from YAML.
//
//	driver: mysql
//	dsn: ${MYSQL_DSN}
//	plural_table_names: true
//	max_statement_length: 4194304
//	pool:
//	  max_open_conns: 20
//	stmt_cache: 500
//	log:
//	  level: debug
//	  format: json
//	security:
//	  validate_raw_sql: true
//	  audit: writes
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coregx/sqlmap/internal/core"
	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/logger"
	"github.com/coregx/sqlmap/internal/schema"
	"github.com/coregx/sqlmap/internal/security"
)

// Config describes one database handle.
type Config struct {
	// Driver is the database/sql driver name.
	Driver string `yaml:"driver"`
	// DSN is the data source name. ${VAR} references are expanded from the
	// environment.
	DSN string `yaml:"dsn"`
	// Dialect overrides the dialect registered under Driver.
	Dialect string `yaml:"dialect,omitempty"`

	// ANSIQuotes quotes MySQL identifiers with double quotes. When unset the
	// DSN's sql_mode decides.
	ANSIQuotes *bool `yaml:"ansi_quotes,omitempty"`
	// MaxStatementLength bounds literal-batched inserts on MySQL and PostgreSQL.
	MaxStatementLength int `yaml:"max_statement_length,omitempty"`
	// PluralTableNames derives default table names by pluralizing type names.
	PluralTableNames bool `yaml:"plural_table_names,omitempty"`
	// SensitiveFields replaces the parameter names masked in logs.
	SensitiveFields []string `yaml:"sensitive_fields,omitempty"`
	// StmtCache keeps up to this many prepared statements. Zero disables it.
	StmtCache int `yaml:"stmt_cache,omitempty"`

	Pool     PoolConfig     `yaml:"pool,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Security SecurityConfig `yaml:"security,omitempty"`
}

// PoolConfig sizes the connection pool. Zero keeps the database/sql default.
type PoolConfig struct {
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
	MaxIdleConns int `yaml:"max_idle_conns,omitempty"`
}

// LogConfig enables statement logging when Level is set.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text (default) or json
}

// SecurityConfig screens hand-written SQL and audits statements. Audit
// events are written as JSON next to the statement log.
type SecurityConfig struct {
	ValidateRawSQL bool   `yaml:"validate_raw_sql,omitempty"`
	Strict         bool   `yaml:"strict,omitempty"`
	Audit          string `yaml:"audit,omitempty"` // none (default), writes, reads or all
}

var auditLevels = map[string]security.AuditLevel{
	"":       security.AuditNone,
	"none":   security.AuditNone,
	"writes": security.AuditWrites,
	"reads":  security.AuditReads,
	"all":    security.AuditAll,
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Config
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.DSN = os.ExpandEnv(c.DSN)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the settings that do not need a connection.
func (c *Config) Validate() error {
	if c.Driver == "" {
		return errors.New("config: driver is required")
	}
	if c.MaxStatementLength < 0 {
		return fmt.Errorf("config: max_statement_length must not be negative, got %d", c.MaxStatementLength)
	}
	if c.StmtCache < 0 {
		return fmt.Errorf("config: stmt_cache must not be negative, got %d", c.StmtCache)
	}
	if _, ok := auditLevels[strings.ToLower(c.Security.Audit)]; !ok {
		return fmt.Errorf("config: unknown audit level %q", c.Security.Audit)
	}
	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// BuildDialect returns a dialect instance carrying the configured settings.
func (c *Config) BuildDialect() (dialects.Dialect, error) {
	name := c.Dialect
	if name == "" {
		name = c.Driver
	}
	base, err := dialects.Lookup(name)
	if err != nil {
		return nil, err
	}

	switch base.(type) {
	case *dialects.MySQLDialect:
		d := &dialects.MySQLDialect{}
		if c.DSN != "" {
			if d, err = dialects.NewMySQLDialectFromDSN(c.DSN); err != nil {
				return nil, err
			}
		}
		if c.ANSIQuotes != nil {
			d.ANSIQuotes = *c.ANSIQuotes
		}
		if c.MaxStatementLength > 0 {
			d.MaxLength = c.MaxStatementLength
		}
		return d, nil
	case *dialects.PostgresDialect:
		return &dialects.PostgresDialect{MaxLength: c.MaxStatementLength}, nil
	}
	return base, nil
}

// Options converts c into handle options. Statement logs go to w.
func (c *Config) Options(w io.Writer) ([]core.Option, error) {
	d, err := c.BuildDialect()
	if err != nil {
		return nil, err
	}
	opts := []core.Option{core.WithDialect(d)}

	if c.PluralTableNames {
		opts = append(opts, core.WithRegistry(schema.NewRegistry(d.QuoteIdentifier, schema.WithPluralTableNames())))
	}
	if c.Pool.MaxOpenConns > 0 {
		opts = append(opts, core.WithMaxOpenConns(c.Pool.MaxOpenConns))
	}
	if c.Pool.MaxIdleConns > 0 {
		opts = append(opts, core.WithMaxIdleConns(c.Pool.MaxIdleConns))
	}
	if len(c.SensitiveFields) > 0 {
		opts = append(opts, core.WithSensitiveFields(c.SensitiveFields...))
	}
	if c.StmtCache > 0 {
		opts = append(opts, core.WithStmtCache(c.StmtCache))
	}
	if c.Security.ValidateRawSQL {
		opts = append(opts, core.WithValidator(security.NewValidator(security.WithStrict(c.Security.Strict))))
	}
	if level := auditLevels[strings.ToLower(c.Security.Audit)]; level != security.AuditNone {
		audit := slog.New(slog.NewJSONHandler(w, nil))
		opts = append(opts, core.WithAuditor(security.NewAuditor(audit, level)))
	}

	if c.Log.Level != "" {
		level, err := logger.ParseLevel(c.Log.Level)
		if err != nil {
			return nil, err
		}
		handlerOpts := &slog.HandlerOptions{Level: level}
		var h slog.Handler = slog.NewTextHandler(w, handlerOpts)
		if strings.EqualFold(c.Log.Format, "json") {
			h = slog.NewJSONHandler(w, handlerOpts)
		}
		opts = append(opts, core.WithLogger(slog.New(h)))
	}
	return opts, nil
}

// Open opens the configured handle, logging to stderr. extra options are
// applied after the configured ones.
func Open(c *Config, extra ...core.Option) (*core.DB, error) {
	opts, err := c.Options(os.Stderr)
	if err != nil {
		return nil, err
	}
	return core.Open(c.Driver, c.DSN, append(opts, extra...)...)
}
