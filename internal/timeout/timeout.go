// Package timeout picks the deadline a caller puts around a statement.
//
// The database facade itself never imposes deadlines; the CLI and the MCP
// tool handlers wrap each call with the context returned by [Manager.Context].
package timeout

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Rule is the timeout manager's own rule type.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	// DefaultTimeout applies when no rule matches. Zero means no deadline.
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves statement timeouts based on SQL pattern matching.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager creates a new Manager. Returns an error on invalid regex patterns
// or non-positive rule timeouts.
func NewManager(config Config) (*Manager, error) {
	if config.DefaultTimeout < 0 {
		return nil, fmt.Errorf("timeout: default timeout must be >= 0, got %s", config.DefaultTimeout)
	}
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q must have a timeout > 0", r.Pattern)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}, nil
}

// GetTimeout returns the timeout for the given SQL and the pattern of the rule
// that produced it (empty for the default). First matching rule wins.
func (m *Manager) GetTimeout(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}

// Context derives a context bounded by the timeout for sql. When the resolved
// timeout is zero the returned context only inherits ctx's deadline.
func (m *Manager) Context(ctx context.Context, sql string) (context.Context, context.CancelFunc, string) {
	d, rule := m.GetTimeout(sql)
	if d == 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, rule
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, cancel, rule
}
