//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"

	"github.com/coregx/sqlmap"
)

// backend describes one database engine under test. start is nil for
// engines that run in process.
type backend struct {
	driver string
	envDSN string
	start  func(ctx context.Context) (testcontainers.Container, string, error)
	dsn    func(string) string
	ddl    []string
}

var backends = map[string]backend{
	"postgres": {
		driver: "postgres",
		envDSN: "POSTGRES_TEST_DSN",
		start:  startPostgres,
		ddl: []string{
			`create table if not exists mailboxes (id integer primary key, name text not null)`,
			`create table if not exists messages (
				id serial primary key,
				mailbox_id integer not null,
				status integer not null default 1,
				subject text,
				created_at timestamp not null default current_timestamp)`,
		},
	},
	"mysql": {
		driver: "mysql",
		envDSN: "MYSQL_TEST_DSN",
		start:  startMySQL,
		dsn:    withParseTime,
		ddl: []string{
			`create table if not exists mailboxes (id int primary key, name varchar(100) not null)`,
			`create table if not exists messages (
				id int auto_increment primary key,
				mailbox_id int not null,
				status int not null default 1,
				subject text,
				created_at timestamp not null default current_timestamp)`,
		},
	},
	"sqlite": {
		driver: "sqlite",
		ddl: []string{
			`create table if not exists mailboxes (id integer primary key, name text not null)`,
			`create table if not exists messages (
				id integer primary key autoincrement,
				mailbox_id integer not null,
				status integer not null default 1,
				subject text,
				created_at timestamp not null default current_timestamp)`,
		},
	},
}

// open connects to the backend, creates the schema and registers cleanup.
// Container backends are skipped when neither the DSN variable nor Docker is
// available.
func (b backend) open(t *testing.T, opts ...sqlmap.Option) *sqlmap.DB {
	t.Helper()
	ctx := context.Background()

	dsn := ":memory:"
	switch {
	case b.envDSN != "" && os.Getenv(b.envDSN) != "":
		dsn = os.Getenv(b.envDSN)
	case b.start != nil:
		container, connStr, err := b.start(ctx)
		if err != nil {
			t.Skipf("docker not available for %s: %v", b.driver, err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })
		dsn = connStr
	default:
		opts = append(opts, sqlmap.WithMaxOpenConns(1))
	}
	if b.dsn != nil {
		dsn = b.dsn(dsn)
	}

	db, err := sqlmap.Open(b.driver, dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range b.ddl {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("sqlmap"),
		postgres.WithUsername("sqlmap"),
		postgres.WithPassword("sqlmap"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	return c, dsn, err
}

func startMySQL(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("sqlmap"),
		mysql.WithUsername("sqlmap"),
		mysql.WithPassword("sqlmap"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := c.ConnectionString(ctx)
	return c, dsn, err
}

// withParseTime makes the MySQL driver scan DATETIME columns into time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
