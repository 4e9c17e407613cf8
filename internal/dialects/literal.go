package dialects

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// literalStyle describes how a dialect renders SQL literals for bulk inserts.
type literalStyle struct {
	quote      func(string) string
	trueLit    string
	falseLit   string
	timeLayout string
	timeCast   string // appended after the quoted timestamp, e.g. "::timestamptz"
	bytes      func([]byte) string
}

// render converts v into literal SQL text.
//
//nolint:cyclop,gocyclo // One case per value family.
func (s literalStyle) render(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}

	switch x := v.(type) {
	case string:
		return s.quote(x), nil
	case []byte:
		if x == nil {
			return "null", nil
		}
		return s.bytes(x), nil
	case bool:
		return s.boolean(x), nil
	case time.Time:
		return s.quote(x.Format(s.timeLayout)) + s.timeCast, nil
	case uuid.UUID:
		return s.quote(x.String()), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return "", fmt.Errorf("literal: %T: %w", v, err)
		}
		return s.render(dv)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "null", nil
		}
		return s.render(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Named integer types ("enums") render as their underlying number even
		// when they implement fmt.Stringer.
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.Bool:
		return s.boolean(rv.Bool()), nil
	case reflect.String:
		return s.quote(rv.String()), nil
	}

	return s.quote(fmt.Sprint(v)), nil
}

func (s literalStyle) boolean(b bool) string {
	if b {
		return s.trueLit
	}
	return s.falseLit
}

// standardQuote quotes s per the SQL standard: only the apostrophe is special.
func standardQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// backslashQuote returns a quote func for engines that honour backslash escapes
// inside string literals. identQuote is escaped as well so that the literal can
// never terminate an identifier when embedded by mistake.
func backslashQuote(identQuote byte) func(string) string {
	return func(s string) string {
		var sb strings.Builder
		sb.Grow(len(s) + 2)
		sb.WriteByte('\'')
		for i := 0; i < len(s); i++ {
			c := s[i]
			switch c {
			case 0:
				sb.WriteString(`\0`)
			case '\'':
				sb.WriteString(`\'`)
			case '\\':
				sb.WriteString(`\\`)
			case '\b':
				sb.WriteString(`\b`)
			case '\t':
				sb.WriteString(`\t`)
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case 0x1a:
				sb.WriteString(`\Z`)
			case identQuote:
				sb.WriteByte('\\')
				sb.WriteByte(c)
			default:
				sb.WriteByte(c)
			}
		}
		sb.WriteByte('\'')
		return sb.String()
	}
}

// hexBytes renders b as X'..'.
func hexBytes(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
