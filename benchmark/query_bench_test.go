package benchmark

import (
	"context"
	"testing"

	"github.com/coregx/sqlmap"
)

var filter = sqlmap.And(
	sqlmap.Col("Age").Ge(21),
	sqlmap.Or(sqlmap.Like("Email", "%@example.com"), sqlmap.In("Name", []string{"a", "b", "c"})),
)

// BenchmarkSelect_Build benchmarks statement generation and binding.
func BenchmarkSelect_Build(b *testing.B) {
	d, err := sqlmap.LookupDialect("postgres")
	if err != nil {
		b.Fatal(err)
	}
	builder := sqlmap.NewBuilder(d)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stmt, err := builder.Select(User{}, filter)
		if err != nil {
			b.Fatal(err)
		}
		if _, _, err := sqlmap.Bind(d, stmt); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSelect_Execute benchmarks a filtered select scanned into structs.
func BenchmarkSelect_Execute(b *testing.B) {
	db := setupBenchDB(b)
	ctx := context.Background()
	if _, err := db.InsertList(ctx, makeUsers(100)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var users []User
		if err := db.Select(ctx, &users, filter); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGetByKey benchmarks loading one row by its identity.
func BenchmarkGetByKey(b *testing.B) {
	db := setupBenchDB(b)
	ctx := context.Background()
	u := &User{Name: "n", Email: "e"}
	if err := db.Insert(ctx, u); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var got User
		if err := db.GetByKey(ctx, &got, u.ID); err != nil {
			b.Fatal(err)
		}
	}
}
