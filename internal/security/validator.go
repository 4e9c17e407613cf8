// Package security screens hand-written SQL for injection patterns and
// writes an audit trail of executed statements.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL is returned when SQL text or a parameter matches a dangerous
// pattern.
var ErrUnsafeSQL = errors.New("unsafe SQL")

// Validator checks verbatim SQL (raw statements, RawSQL values, Eval and
// InSQL predicates) before it reaches a statement. Generated SQL is never
// validated: its values travel as parameters.
type Validator struct {
	patterns []rule
	strict   bool
}

type rule struct {
	name string
	re   *regexp.Regexp
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict also rejects any OR, AND, UNION or EXEC keyword. Expect false
// positives.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a validator with the default pattern set.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{patterns: compileRules(dangerousPatterns)}
	for _, opt := range opts {
		opt(v)
	}
	if v.strict {
		v.patterns = append(v.patterns, compileRules(strictPatterns)...)
	}
	return v
}

// Patterns are matched against upper-cased text.
var dangerousPatterns = [][2]string{
	{"line comment", `--\s`},
	{"block comment", `/\*.*\*/`},
	{"mysql comment", `#\s`},

	{"stacked drop", `;\s*DROP\s+`},
	{"stacked delete", `;\s*DELETE\s+`},
	{"stacked truncate", `;\s*TRUNCATE\s+`},
	{"stacked alter", `;\s*ALTER\s+`},
	{"stacked create", `;\s*CREATE\s+`},

	{"union select", `UNION\s+(ALL\s+)?SELECT`},

	{"xp_cmdshell", `XP_CMDSHELL`},
	{"exec call", `\bEXEC(UTE)?\s*\(`},
	{"sp_executesql", `SP_EXECUTESQL`},
	{"system procedure", `\bEXEC\s+(XP|SP)_`},

	{"schema probe", `INFORMATION_SCHEMA`},
	{"pg_sleep", `PG_SLEEP\s*\(`},
	{"benchmark", `BENCHMARK\s*\(`},
	{"waitfor delay", `WAITFOR\s+DELAY`},

	{"tautology", `\s+OR\s+1\s*=\s*1\b`},
	{"quoted tautology", `\s+OR\s+'1'\s*=\s*'1'`},
	{"contradiction", `\s+AND\s+1\s*=\s*0\b`},
}

var strictPatterns = [][2]string{
	{"or", `\bOR\b`},
	{"and", `\bAND\b`},
	{"union", `\bUNION\b`},
	{"exec", `\bEXEC(UTE)?\b`},
}

// ValidateQuery returns ErrUnsafeSQL naming the first matching pattern.
func (v *Validator) ValidateQuery(query string) error {
	upper := strings.ToUpper(query)
	for _, r := range v.patterns {
		if r.re.MatchString(upper) {
			return fmt.Errorf("%w: %s", ErrUnsafeSQL, r.name)
		}
	}
	return nil
}

// ValidateParams rejects string parameters that look like an attempt to
// break out of a quoted literal.
func (v *Validator) ValidateParams(params []interface{}) error {
	for i, param := range params {
		s, ok := param.(string)
		if !ok {
			continue
		}
		upper := strings.ToUpper(s)
		for _, indicator := range paramIndicators {
			if strings.Contains(upper, indicator) {
				return fmt.Errorf("%w: parameter %d contains %q", ErrUnsafeSQL, i+1, indicator)
			}
		}
	}
	return nil
}

var paramIndicators = []string{
	"'--", "';", "' OR ", "' AND ", "/*", "*/", "' UNION ", "' DROP ", "XP_",
}

func compileRules(patterns [][2]string) []rule {
	rules := make([]rule, len(patterns))
	for i, p := range patterns {
		rules[i] = rule{name: p[0], re: regexp.MustCompile(p[1])}
	}
	return rules
}
