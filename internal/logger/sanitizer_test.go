package logger

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Sensitive(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name string
		want bool
	}{
		{"Password", true},
		{"password", true},
		{"PasswordP01", true},
		{"ApiKey", true},
		{"api_key", true},
		{"CreditCard", true},
		{"Token", true},
		{"Name", false},
		{"Passwordless", false},
		{"TokenCount", false},
		{"Id", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sensitive(tt.name))
		})
	}
}

func TestSanitizer_MaskNamed(t *testing.T) {
	s := NewSanitizer(nil)

	got := s.MaskNamed(
		[]string{"Name", "Password", "Id"},
		[]interface{}{"Alice", "hunter2", 7},
	)
	assert.Equal(t, []interface{}{"Alice", Mask, 7}, got)
}

func TestSanitizer_MaskNamed_CustomFields(t *testing.T) {
	s := NewSanitizer([]string{"salary"})

	got := s.MaskNamed([]string{"Salary", "Password"}, []interface{}{100000, "hunter2"})
	assert.Equal(t, []interface{}{Mask, "hunter2"}, got)
}

func TestSanitizer_MaskParams(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name   string
		sql    string
		params []interface{}
		want   []interface{}
	}{
		{
			name:   "sensitive column masks everything",
			sql:    `update "User" set "password"=$1 where "Id"=$2`,
			params: []interface{}{"secret", 1},
			want:   []interface{}{Mask, Mask},
		},
		{
			name:   "case insensitive",
			sql:    "UPDATE users SET PASSWORD = ? WHERE id = ?",
			params: []interface{}{"secret", 1},
			want:   []interface{}{Mask, Mask},
		},
		{
			name:   "plain statement untouched",
			sql:    "select * from users where id = ? and name = ?",
			params: []interface{}{1, "Alice"},
			want:   []interface{}{1, "Alice"},
		},
		{
			name:   "word boundary",
			sql:    "select * from passwordless_auth where user_id = ?",
			params: []interface{}{123},
			want:   []interface{}{123},
		},
		{
			name:   "no params",
			sql:    "select count(*) from secrets",
			params: nil,
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MaskParams(tt.sql, tt.params))
		})
	}
}

func TestSanitizer_FormatParams(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name   string
		params []interface{}
		want   string
	}{
		{"empty", nil, "[]"},
		{"mixed", []interface{}{1, "test", nil, true, 3.14}, "[1, test, NULL, true, 3.14]"},
		{"masked", []interface{}{Mask}, "[***REDACTED***]"},
		{"truncated", []interface{}{strings.Repeat("a", 150)}, "[" + strings.Repeat("a", 100) + "...]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.FormatParams(tt.params))
		})
	}
}

func TestSanitizer_Concurrent(t *testing.T) {
	s := NewSanitizer(nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.MaskNamed([]string{"Password"}, []interface{}{"x"})
			_ = s.MaskParams("update u set password = ?", []interface{}{"x"})
		}()
	}
	wg.Wait()
}

func BenchmarkSanitizer_MaskNamed(b *testing.B) {
	s := NewSanitizer(nil)
	names := []string{"Name", "Password", "Id"}
	values := []interface{}{"Alice", "secret", 1}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.MaskNamed(names, values)
	}
}
