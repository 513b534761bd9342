// Package stmtlog prepares caller-supplied statement text for log lines.
//
// Statements run through the facade are arbitrary and may carry secrets in
// literals. When the text parses, constants are replaced with $n placeholders
// by pg_query before it reaches a log sink.
package stmtlog

import (
	"unicode/utf8"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// DefaultMaxLen is the byte budget for a statement in a single log line.
const DefaultMaxLen = 200

// Summary returns sql normalized and truncated to maxLen bytes. Text that
// does not parse is truncated as-is.
func Summary(sql string, maxLen int) string {
	normalized, err := pg_query.Normalize(sql)
	if err != nil {
		return Truncate(sql, maxLen)
	}
	return Truncate(normalized, maxLen)
}

// Truncate cuts s to at most maxLen bytes on a rune boundary and marks the cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
