package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		strict  bool
		wantErr string
	}{
		{name: "subquery", query: `select "Id" from "Promo" where "Active"=1`},
		{name: "raw assignment", query: `"Total" + 1`},
		{name: "identity suffix", query: `insert into "Customer"("Name") values (@Name);select last_insert_rowid()`},
		{name: "mssql identity suffix", query: `insert into [T]([A]) values (@A);select cast(scope_identity() as bigint)`},
		{name: "join", query: `select u.name from users u join orders o on u.id = o.user_id where u.id = $1`},

		{name: "line comment", query: "name = 'admin'-- and password = 'x'", wantErr: "line comment"},
		{name: "block comment", query: "id = 1 /*x*/", wantErr: "block comment"},
		{name: "mysql comment", query: "id = 1# and status = 0", wantErr: "mysql comment"},
		{name: "stacked drop", query: "1; drop table users", wantErr: "stacked drop"},
		{name: "stacked delete", query: "1;DELETE FROM users", wantErr: "stacked delete"},
		{name: "union", query: "1 union all select password from users", wantErr: "union select"},
		{name: "exec", query: "exec('sp')", wantErr: "exec call"},
		{name: "system procedure", query: "exec xp_regread", wantErr: "system procedure"},
		{name: "schema probe", query: "select * from information_schema.tables", wantErr: "schema probe"},
		{name: "timing", query: "pg_sleep(10)", wantErr: "pg_sleep"},
		{name: "waitfor", query: "1; waitfor delay '0:0:5'", wantErr: "waitfor delay"},
		{name: "tautology", query: "id = 5 or 1=1", wantErr: "tautology"},
		{name: "quoted tautology", query: "name = '' or '1'='1'", wantErr: "quoted tautology"},

		{name: "strict or", query: `"A"=1 or "B"=2`, strict: true, wantErr: "or"},
		{name: "strict passes plain", query: `"A"=1`, strict: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(WithStrict(tt.strict)).ValidateQuery(tt.query)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrUnsafeSQL)
			assert.Equal(t, "unsafe SQL: "+tt.wantErr, err.Error())
		})
	}
}

func TestValidator_ValidateParams(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateParams(nil))
	assert.NoError(t, v.ValidateParams([]interface{}{"O'Brien", 42, nil, []byte("';")}))

	err := v.ValidateParams([]interface{}{"ok", "x' or 'a'='a"})
	require.ErrorIs(t, err, ErrUnsafeSQL)
	assert.Contains(t, err.Error(), "parameter 2")

	assert.ErrorIs(t, v.ValidateParams([]interface{}{"a'; drop table t"}), ErrUnsafeSQL)
	assert.ErrorIs(t, v.ValidateParams([]interface{}{"exec xp_cmdshell"}), ErrUnsafeSQL)
}
