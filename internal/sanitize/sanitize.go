package sanitize

import (
	"fmt"
	"regexp"
)

// Rule is the sanitizer's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer redacts string cells of query results with regex replacements.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer creates a new Sanitizer. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return s != nil && len(s.rules) > 0
}

// SanitizeRows rewrites every cell of rows in place. Row arity is unchanged.
func (s *Sanitizer) SanitizeRows(rows [][]any) {
	if !s.HasRules() {
		return
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = s.SanitizeValue(cell)
		}
	}
}

// SanitizeValue applies every rule, in order, to a string value. Decoded
// json/jsonb documents (maps and slices) are walked; other values pass through.
func (s *Sanitizer) SanitizeValue(v any) any {
	if !s.HasRules() {
		return v
	}
	switch val := v.(type) {
	case string:
		for _, rule := range s.rules {
			val = rule.pattern.ReplaceAllString(val, rule.replacement)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = s.SanitizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = s.SanitizeValue(item)
		}
		return val
	default:
		return v
	}
}
