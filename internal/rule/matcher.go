package rule

import (
	"fmt"
	"regexp"

	"github.com/jmespath/go-jmespath"
)

// Matcher is the predicate half of a rule. Both variants are compiled at
// configuration load; Match never returns an error on the hot path.
type Matcher interface {
	// Match reports whether the record satisfies the predicate. It may record
	// captured values on the record for later template expansion.
	Match(rec *Record) bool
}

// JMESPathMatcher evaluates a compiled JMESPath expression against the JSON
// parse of one record field. A field that does not parse as a JSON object
// yields no-match.
type JMESPathMatcher struct {
	path  string
	expr  *jmespath.JMESPath
	field string
}

func NewJMESPathMatcher(path, field string) (*JMESPathMatcher, error) {
	expr, err := jmespath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jmespath expression %q: %w", path, err)
	}
	return &JMESPathMatcher{path: path, expr: expr, field: field}, nil
}

func (m *JMESPathMatcher) Match(rec *Record) bool {
	tree, ok := rec.parseField(m.field)
	if !ok {
		return false
	}

	result, err := m.expr.Search(tree)
	if err != nil {
		return false
	}
	// The match succeeds iff the addressed value exists and is non-null.
	return result != nil
}

func (m *JMESPathMatcher) String() string {
	return fmt.Sprintf("jmespath(%s) on %s", m.path, m.field)
}

// RegexMatcher applies a compiled regular expression to the raw text of one
// record field. Semantics are "contains a match": the expression is
// unanchored, so `.*` is a legitimate catch-all.
type RegexMatcher struct {
	re    *regexp.Regexp
	field string
}

func NewRegexMatcher(pattern, field string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return &RegexMatcher{re: re, field: field}, nil
}

func (m *RegexMatcher) Match(rec *Record) bool {
	text, ok := rec.Fields[m.field]
	if !ok {
		return false
	}

	match := m.re.FindStringSubmatch(text)
	if match == nil {
		return false
	}

	for i, name := range m.re.SubexpNames() {
		if name != "" && i < len(match) {
			rec.setCapture(name, match[i])
		}
	}
	return true
}

func (m *RegexMatcher) String() string {
	return fmt.Sprintf("regex(%s) on %s", m.re.String(), m.field)
}
