package sqlmap_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/sqlmap"
)

type Person struct {
	Id    int64 `db:",identity"`
	Name  string
	Email *string
	Age   int
}

func openMemory(t testing.TB) *sqlmap.DB {
	t.Helper()
	// One connection: every :memory: connection is a separate database.
	db, err := sqlmap.Open("sqlite", ":memory:", sqlmap.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), `create table "Person" (
		"Id" integer primary key autoincrement,
		"Name" text not null,
		"Email" text,
		"Age" integer not null)`)
	require.NoError(t, err)
	return db
}

func TestDB_Wrapper(t *testing.T) {
	t.Run("WrapDB", func(t *testing.T) {
		sqlDB, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		defer sqlDB.Close()

		db, err := sqlmap.WrapDB(sqlDB, "sqlite")
		require.NoError(t, err)
		assert.Same(t, sqlDB, db.DB())
		assert.Equal(t, "sqlite", db.Dialect().Name())
	})

	t.Run("unknown dialect", func(t *testing.T) {
		sqlDB, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		defer sqlDB.Close()

		_, err = sqlmap.WrapDB(sqlDB, "informix")
		assert.ErrorIs(t, err, sqlmap.ErrUnsupportedDialect)
	})

	t.Run("round trip", func(t *testing.T) {
		db := openMemory(t)
		ctx := context.Background()

		ann := &Person{Name: "Ann", Age: 30}
		require.NoError(t, db.Insert(ctx, ann))
		assert.Equal(t, int64(1), ann.Id)

		_, err := db.InsertList(ctx, []*Person{{Name: "Bob", Age: 17}, {Name: "Cy", Age: 45}})
		require.NoError(t, err)

		var adults []Person
		where := sqlmap.And(sqlmap.Col("Age").Ge(18), sqlmap.Not(sqlmap.Like("Name", "B%")))
		require.NoError(t, db.Select(ctx, &adults, where, sqlmap.Trailing(`order by "Age"`)))
		require.Len(t, adults, 2)
		assert.Equal(t, "Ann", adults[0].Name)
		assert.Equal(t, "Cy", adults[1].Name)

		var got Person
		require.NoError(t, db.GetByKey(ctx, &got, sqlmap.Value(ann)))
		assert.Equal(t, *ann, got)

		_, err = db.UpdateWhere(ctx, Person{}, sqlmap.Assignments{"Age": sqlmap.RawSQL(`"Age" + 1`)}, sqlmap.True)
		require.NoError(t, err)
		n, err := db.Count(ctx, Person{}, sqlmap.Between("Age", 18, 31))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestBuilder_PublicAPI(t *testing.T) {
	d, err := sqlmap.LookupDialect("postgres")
	require.NoError(t, err)
	b := sqlmap.NewBuilder(d)

	stmt, err := b.Select(Person{}, sqlmap.Or(sqlmap.Eq(sqlmap.Col("Name"), "x"), sqlmap.In("Age", []int{1, 2})))
	require.NoError(t, err)
	assert.Equal(t, `select "Id", "Name", "Email", "Age" from "Person" where ("Name"=@Name) or ("Age" in (@Age))`, stmt.SQL)

	query, args, err := sqlmap.Bind(d, stmt)
	require.NoError(t, err)
	assert.Equal(t, `select "Id", "Name", "Email", "Age" from "Person" where ("Name"=$1) or ("Age" in ($2,$3))`, query)
	assert.Equal(t, []interface{}{"x", 1, 2}, args)
}

func BenchmarkDB_Select(b *testing.B) {
	db := openMemory(b)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(b, db.Insert(ctx, &Person{Name: "p", Age: i}))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out []Person
		if err := db.Select(ctx, &out, sqlmap.Col("Age").Lt(50)); err != nil {
			b.Fatal(err)
		}
	}
}
