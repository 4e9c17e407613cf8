package core

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlmap/internal/dialects"
)

func TestBind(t *testing.T) {
	query := `select * from "Account" where "Name"=@Name and "Code" in (@Code)`
	ps := params("Name", "x", "Code", []string{"a", "b"})

	tests := []struct {
		dialect  string
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			dialect:  "postgres",
			wantSQL:  `select * from "Account" where "Name"=$1 and "Code" in ($2,$3)`,
			wantArgs: []interface{}{"x", "a", "b"},
		},
		{
			dialect:  "mysql",
			wantSQL:  `select * from "Account" where "Name"=? and "Code" in (?,?)`,
			wantArgs: []interface{}{"x", "a", "b"},
		},
		{
			dialect: "sqlite",
			wantSQL: `select * from "Account" where "Name"=@Name and "Code" in (@Code_1,@Code_2)`,
			wantArgs: []interface{}{
				sql.Named("Name", "x"), sql.Named("Code_1", "a"), sql.Named("Code_2", "b"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			d, err := dialects.Lookup(tt.dialect)
			require.NoError(t, err)

			got, args, err := Bind(d, &Statement{SQL: query, Params: ps})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBind_RepeatedMarker(t *testing.T) {
	query := `select @Id, @Id`
	ps := params("Id", 7)

	got, args, err := bindSQL(&dialects.PostgresDialect{}, query, ps)
	require.NoError(t, err)
	assert.Equal(t, `select $1, $2`, got)
	assert.Equal(t, []interface{}{7, 7}, args)

	got, args, err = bindSQL(&dialects.SQLiteDialect{}, query, ps)
	require.NoError(t, err)
	assert.Equal(t, `select @Id, @Id`, got)
	assert.Equal(t, []interface{}{sql.Named("Id", 7)}, args)
}

func TestBind_SkipsQuotedText(t *testing.T) {
	ps := params("Name", "x")
	pg := &dialects.PostgresDialect{}

	got, args, err := bindSQL(pg, `select '@Name', 'it''s @Name', "@Name" from t where a=@Name`, ps)
	require.NoError(t, err)
	assert.Equal(t, `select '@Name', 'it''s @Name', "@Name" from t where a=$1`, got)
	assert.Equal(t, []interface{}{"x"}, args)

	got, _, err = bindSQL(&dialects.MSSQLDialect{}, `select [@Name], @@rowcount from t where a=@Name`, ps)
	require.NoError(t, err)
	assert.Equal(t, `select [@Name], @@rowcount from t where a=@Name`, got)

	got, _, err = bindSQL(&dialects.MySQLDialect{}, "select `@Name` from t where a=@Name", ps)
	require.NoError(t, err)
	assert.Equal(t, "select `@Name` from t where a=?", got)
}

func TestBind_EdgeCases(t *testing.T) {
	pg := &dialects.PostgresDialect{}

	t.Run("no params", func(t *testing.T) {
		got, args, err := bindSQL(pg, "select 1", nil)
		require.NoError(t, err)
		assert.Equal(t, "select 1", got)
		assert.Nil(t, args)
	})

	t.Run("unknown marker is left alone", func(t *testing.T) {
		got, _, err := bindSQL(pg, "select @Other, @Id", params("Id", 1))
		require.NoError(t, err)
		assert.Equal(t, "select @Other, $1", got)
	})

	t.Run("empty collection", func(t *testing.T) {
		got, args, err := bindSQL(pg, "select @Ids", params("Ids", []int{}))
		require.NoError(t, err)
		assert.Equal(t, "select null", got)
		assert.Empty(t, args)

		got, args, err = bindSQL(&dialects.SQLiteDialect{}, "select @Ids", params("Ids", []int{}))
		require.NoError(t, err)
		assert.Equal(t, "select null", got)
		assert.Empty(t, args)
	})

	t.Run("byte slices are scalars", func(t *testing.T) {
		got, args, err := bindSQL(pg, "select @Blob", params("Blob", []byte("ab")))
		require.NoError(t, err)
		assert.Equal(t, "select $1", got)
		assert.Equal(t, []interface{}{[]byte("ab")}, args)
	})

	t.Run("unreferenced parameter", func(t *testing.T) {
		_, _, err := bindSQL(pg, "select 1", params("Id", 1))
		assert.Error(t, err)
	})
}

func TestBind_CompiledStatement(t *testing.T) {
	b := builderFor(t, "postgres")
	stmt, err := b.Select(Account{}, And(Col("Region").Eq("east"), Between("Total", 1, 9)), Columns("Id"))
	require.NoError(t, err)

	got, args, err := Bind(b.Dialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, `select "Id" from "Account" where "Region"=$1 and "Total" between $2 and $3`, got)
	assert.Equal(t, []interface{}{"east", 1, 9}, args)
}
