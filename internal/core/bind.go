package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/coregx/sqlmap/internal/dialects"
)

// Bind converts the @name markers in a statement into the driver's
// placeholder style and returns the matching arguments. Markers inside quoted
// strings and identifiers are left alone. Collection parameters expand to one
// placeholder per element.
//
// Named dialects keep @name markers and receive sql.Named arguments; the
// others receive positional placeholders ($1, ?) with arguments in order of
// appearance.
func Bind(d dialects.Dialect, stmt *Statement) (string, []interface{}, error) {
	return bindSQL(d, stmt.SQL, stmt.Params)
}

func bindSQL(d dialects.Dialect, query string, params Params) (string, []interface{}, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	var sb strings.Builder
	var args []interface{}
	named := d.NamedParams()
	brackets := strings.HasPrefix(d.QuoteIdentifier("x"), "[")
	seen := make(map[string]string, len(params))
	sb.Grow(len(query) + 16)

	for i := 0; i < len(query); {
		ch := query[i]
		switch ch {
		case '[':
			if !brackets {
				break
			}
			end := skipQuoted(query, i)
			sb.WriteString(query[i:end])
			i = end
			continue
		case '\'', '"', '`':
			end := skipQuoted(query, i)
			sb.WriteString(query[i:end])
			i = end
			continue
		case '@':
			if i+1 < len(query) && query[i+1] == '@' {
				// @@identifiers are server variables.
				end := i + 2
				for end < len(query) && isWordByte(query[end]) {
					end++
				}
				sb.WriteString(query[i:end])
				i = end
				continue
			}
			end := i + 1
			for end < len(query) && isWordByte(query[end]) {
				end++
			}
			name := query[i+1 : end]
			value, ok := params.Lookup(name)
			if !ok {
				sb.WriteString(query[i:end])
				i = end
				continue
			}

			if named {
				text, done := seen[name]
				if !done {
					var namedArgs []interface{}
					text, namedArgs = expandNamed(name, value)
					seen[name] = text
					args = append(args, namedArgs...)
				}
				sb.WriteString(text)
			} else {
				seen[name] = name
				values := expand(value)
				if len(values) == 0 {
					sb.WriteString("null")
				}
				for j, v := range values {
					if j > 0 {
						sb.WriteByte(',')
					}
					args = append(args, v)
					sb.WriteString(d.Placeholder(len(args)))
				}
			}
			i = end
			continue
		}
		sb.WriteByte(ch)
		i++
	}

	for _, p := range params {
		if _, ok := seen[p.Name]; !ok {
			return "", nil, fmt.Errorf("bind: parameter @%s is not referenced by %q", p.Name, query)
		}
	}
	return sb.String(), args, nil
}

// expandNamed returns the marker text for a named parameter and its arguments.
func expandNamed(name string, value interface{}) (string, []interface{}) {
	if _, ok := collectionLen(value); !ok {
		return "@" + name, []interface{}{sql.Named(name, value)}
	}
	values := expand(value)
	if len(values) == 0 {
		return "null", nil
	}
	markers := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		n := name + "_" + strconv.Itoa(i+1)
		markers[i] = "@" + n
		args[i] = sql.Named(n, v)
	}
	return strings.Join(markers, ","), args
}

// expand flattens a collection parameter into its elements.
func expand(value interface{}) []interface{} {
	n, ok := collectionLen(value)
	if !ok {
		return []interface{}{value}
	}
	rv := reflect.ValueOf(value)
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// skipQuoted returns the index just past the quoted section starting at i.
// Doubled closing characters are escapes; an unterminated section runs to the end.
func skipQuoted(s string, i int) int {
	closing := s[i]
	if closing == '[' {
		closing = ']'
	}
	for j := i + 1; j < len(s); j++ {
		if s[j] != closing {
			continue
		}
		if j+1 < len(s) && s[j+1] == closing {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
