package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Mask replaces sensitive values in logged parameters.
const Mask = "***REDACTED***"

// DefaultSensitiveFields are masked when NewSanitizer gets no fields.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// Sanitizer masks sensitive parameter values before they are logged.
// Statement parameters are matched by name; raw SQL falls back to scanning
// the statement text for sensitive column names.
type Sanitizer struct {
	fields   []string
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given field names.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}
	fields := make([]string, len(sensitiveFields))
	patterns := make([]*regexp.Regexp, len(sensitiveFields))
	for i, f := range sensitiveFields {
		fields[i] = normalize(f)
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(f) + `\b`)
	}
	return &Sanitizer{fields: fields, patterns: patterns}
}

// Sensitive reports whether a parameter name refers to a sensitive field.
// Names are compared ignoring case and underscores, and generated suffixes
// such as P01 still match ("PasswordP01" is sensitive).
func (s *Sanitizer) Sensitive(name string) bool {
	n := normalize(name)
	for _, f := range s.fields {
		if n == f || strings.HasPrefix(n, f) && isSuffix(n[len(f):]) {
			return true
		}
	}
	return false
}

// MaskNamed returns a copy of values with the entries whose name is
// sensitive replaced by Mask. names and values are parallel.
func (s *Sanitizer) MaskNamed(names []string, values []interface{}) []interface{} {
	masked := make([]interface{}, len(values))
	for i, v := range values {
		if i < len(names) && s.Sensitive(names[i]) {
			masked[i] = Mask
			continue
		}
		masked[i] = v
	}
	return masked
}

// MaskParams masks positional parameters of hand-written SQL. Without names
// to go on, every parameter is masked once the statement mentions a
// sensitive column.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.mentionsSensitive(sql) {
		return params
	}
	masked := make([]interface{}, len(params))
	for i := range masked {
		masked[i] = Mask
	}
	return masked
}

func (s *Sanitizer) mentionsSensitive(sql string) bool {
	for _, p := range s.patterns {
		if p.MatchString(sql) {
			return true
		}
	}
	return false
}

// FormatParams renders parameters for a log line, truncating long values.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

func normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// isSuffix matches the collision suffix appended to repeated parameter names.
func isSuffix(s string) bool {
	if len(s) < 2 || s[0] != 'p' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
