// Package errprompt attaches guidance text to diagnostics handed to agents.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is the error prompt matcher's own rule type.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks diagnostics against patterns and returns guidance prompts.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher creates a new Matcher. Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Annotate returns diagnostic followed by a blank line and every matching
// prompt, one per line. With no match the diagnostic is returned unchanged.
func (m *Matcher) Annotate(diagnostic string) string {
	if m == nil || len(m.rules) == 0 {
		return diagnostic
	}
	var prompts []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(diagnostic) {
			prompts = append(prompts, rule.message)
		}
	}
	if len(prompts) == 0 {
		return diagnostic
	}
	return diagnostic + "\n\n" + strings.Join(prompts, "\n")
}

// MatchedPatterns returns the regex patterns that matched the given diagnostic.
func (m *Matcher) MatchedPatterns(diagnostic string) []string {
	if m == nil {
		return nil
	}
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(diagnostic) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
