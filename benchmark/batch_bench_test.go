package benchmark

import (
	"context"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/coregx/sqlmap"
)

type User struct {
	ID    int64  `db:"id,identity"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Age   int    `db:"age"`
}

func (User) TableName() string { return "users" }

// setupBenchDB creates an in-memory SQLite database for benchmarking.
func setupBenchDB(b *testing.B) *sqlmap.DB {
	db, err := sqlmap.Open("sqlite", ":memory:", sqlmap.WithMaxOpenConns(1))
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			age INTEGER
		)
	`)
	if err != nil {
		b.Fatalf("Failed to create table: %v", err)
	}

	b.Cleanup(func() {
		db.Close()
	})

	return db
}

func makeUsers(n int) []User {
	users := make([]User, n)
	for i := range users {
		users[i] = User{
			Name:  fmt.Sprintf("User %d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
			Age:   20 + i%50,
		}
	}
	return users
}

// BenchmarkInsertList_PerRow benchmarks row-by-row inserts with identity
// retrieval on SQLite.
func BenchmarkInsertList_PerRow(b *testing.B) {
	for _, n := range []int{10, 100} {
		b.Run(fmt.Sprintf("%drows", n), func(b *testing.B) {
			db := setupBenchDB(b)
			ctx := context.Background()
			users := makeUsers(n)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := db.InsertList(ctx, users); err != nil {
					b.Fatalf("InsertList failed: %v", err)
				}
				db.ExecContext(ctx, "DELETE FROM users")
			}
		})
	}
}

// BenchmarkInsertList_Literals benchmarks rendering multi-row literal
// inserts without a database.
func BenchmarkInsertList_Literals(b *testing.B) {
	for _, dialect := range []string{"postgres", "mysql"} {
		d, err := sqlmap.LookupDialect(dialect)
		if err != nil {
			b.Fatal(err)
		}
		builder := sqlmap.NewBuilder(d)

		for _, n := range []int{10, 1000} {
			users := makeUsers(n)
			b.Run(fmt.Sprintf("%s/%drows", dialect, n), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := builder.InsertList(users); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
